/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Room codes avoid visually ambiguous characters (0/O, 1/I).
const (
	roomCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	roomCodeLength   = 6
)

// roomStore owns the authoritative room table. All game-state mutation flows
// through it: a room's mutex is held for the whole validate-mutate-broadcast
// cycle, so concurrent actions on one room serialize while distinct rooms
// proceed in parallel.
type roomStore struct {
	cfg      *Config
	deck     *wordDeck
	sessions *sessionRegistry

	mu    sync.Mutex
	rooms map[string]*RoomState
}

func newRoomStore(cfg *Config, deck *wordDeck) *roomStore {
	return &roomStore{
		cfg:      cfg,
		deck:     deck,
		sessions: newSessionRegistry(),
		rooms:    make(map[string]*RoomState),
	}
}

func (s *roomStore) room(code string) *RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rooms[code]
}

// newRoomCode generates a crypto-random code and retries on collision
// against the live table. Caller must hold s.mu.
func (s *roomStore) newRoomCodeLocked() string {
	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
		}
		code := string(out)

		if _, exists := s.rooms[code]; !exists {
			return code
		}
	}
}

func (s *roomStore) createRoom(c *client, username, password string, timed bool) (*RoomState, *Player) {
	s.mu.Lock()
	code := s.newRoomCodeLocked()
	room := newRoomState(code, password, timed)
	s.rooms[code] = room
	s.mu.Unlock()

	room.mu.Lock()
	defer room.mu.Unlock()

	owner := &Player{
		ID:          newPlayerID(),
		Username:    username,
		IsRoomOwner: true,
		Connected:   true,
	}
	room.Players = append(room.Players, owner)
	s.attachLocked(room, c, owner)

	log.Info().Str("room", code).Str("player", username).Msg("room created")

	return room, owner
}

// joinRoom resolves, in order: reconnect by id, reconnect by username,
// password gate, new player. Reconnecting by bare username intentionally
// bypasses the password: with no real authentication the name is the only
// recovery key a client that lost its id has. Accepted risk, not a bug.
func (s *roomStore) joinRoom(c *client, code, username, password, reconnectID string) (*RoomState, *Player, bool, *opError) {
	room := s.room(code)
	if room == nil {
		return nil, nil, false, opErr(errRoomNotFound, "no room with that code")
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return nil, nil, false, opErr(errRoomNotFound, "no room with that code")
	}

	var existing *Player
	if reconnectID != "" {
		if p := room.playerByID(reconnectID); p != nil && p.Username == username {
			existing = p
		}
	}
	if existing == nil {
		if p := room.playerByName(username); p != nil && !p.IsBot {
			existing = p
		}
	}

	if existing != nil {
		existing.Connected = true
		s.attachLocked(room, c, existing)
		log.Debug().Str("room", code).Str("player", username).Msg("player reconnected")
		return room, existing, true, nil
	}

	if room.hasPassword() && password != room.password {
		return nil, nil, false, opErr(errWrongPassword, "wrong room password")
	}
	if room.playerByName(username) != nil {
		return nil, nil, false, opErr(errNameTaken, "that name is taken in this room")
	}

	p := &Player{
		ID:          newPlayerID(),
		Username:    username,
		IsRoomOwner: len(room.Players) == 0,
		Connected:   true,
	}
	room.Players = append(room.Players, p)
	s.attachLocked(room, c, p)

	log.Info().Str("room", code).Str("player", username).Msg("player joined")

	return room, p, false, nil
}

// attachLocked binds c as the player's authoritative connection, evicting a
// still-open predecessor first so no player ever has two live connections.
func (s *roomStore) attachLocked(room *RoomState, c *client, p *Player) {
	if old := s.sessions.bind(p.ID, c); old != nil {
		delete(room.clients, old)
		old.shutdown()
	}

	c.playerID = p.ID
	c.roomCode = room.Code
	room.clients[c] = true
}

// disconnect handles a closed connection: the player stays a full member
// (team, role, ownership preserved), only the liveness flag drops.
func (s *roomStore) disconnect(c *client) {
	if c.roomCode == "" {
		return
	}

	room := s.room(c.roomCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	delete(room.clients, c)

	// A stale connection closing after its player reconnected must not
	// flag the player as gone.
	if !s.sessions.unbind(c.playerID, c) {
		return
	}

	if p := room.playerByID(c.playerID); p != nil {
		p.Connected = false
		log.Debug().Str("room", room.Code).Str("player", p.Username).Msg("player disconnected")
		broadcastRoomLocked(room, "player_disconnected")
	}
}

// removePlayer drops a player from a room entirely (explicit leave or kick),
// restores the ownership invariant, and deletes the room when it empties.
// With evict set the player's connection is told and closed; a voluntary
// leaver keeps their connection for the room directory.
func (s *roomStore) removePlayer(code, playerID string, evict bool) *Player {
	room := s.room(code)
	if room == nil {
		return nil
	}

	room.mu.Lock()

	removed := room.removePlayerLocked(playerID)
	if removed == nil {
		room.mu.Unlock()
		return nil
	}

	s.sessions.drop(removed.ID)
	if target := clientOfLocked(room, removed.ID); target != nil {
		delete(room.clients, target)
		if evict {
			target.trySend(outboundMessage{
				Type:    "kicked",
				Payload: simplePayload{Message: "you have been removed by the room owner"},
			})
			target.shutdown()
		}
	}

	empty := len(room.Players) == 0
	if empty {
		room.closed = true
		room.cancelClockLocked()
	} else {
		broadcastRoomLocked(room, "player_left")
	}
	room.mu.Unlock()

	if empty {
		s.mu.Lock()
		delete(s.rooms, code)
		s.mu.Unlock()
		log.Info().Str("room", code).Msg("room deleted")
	}

	return removed
}

func clientOfLocked(room *RoomState, playerID string) *client {
	for c := range room.clients {
		if c.playerID == playerID {
			return c
		}
	}
	return nil
}

// sweepLoop is a safety net behind the delete-on-last-leave path: it reaps
// rooms whose player list emptied through a race. Populated rooms live
// forever; only emptiness kills a room.
func (s *roomStore) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *roomStore) sweep() {
	s.mu.Lock()
	candidates := make([]*RoomState, 0, len(s.rooms))
	for _, room := range s.rooms {
		candidates = append(candidates, room)
	}
	s.mu.Unlock()

	for _, room := range candidates {
		room.mu.Lock()
		empty := len(room.Players) == 0 && !room.closed
		if empty {
			room.closed = true
			room.cancelClockLocked()
		}
		room.mu.Unlock()

		if empty {
			s.mu.Lock()
			delete(s.rooms, room.Code)
			s.mu.Unlock()
			log.Debug().Str("room", room.Code).Msg("swept empty room")
		}
	}
}

// roomListing is the public directory entry: no cards, no identities.
type roomListing struct {
	Code        string    `json:"code"`
	PlayerCount int       `json:"playerCount"`
	HasPassword bool      `json:"hasPassword"`
	Phase       Phase     `json:"phase"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *roomStore) listRooms() []roomListing {
	s.mu.Lock()
	rooms := make([]*RoomState, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()

	listings := make([]roomListing, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		if !room.closed {
			listings = append(listings, roomListing{
				Code:        room.Code,
				PlayerCount: len(room.Players),
				HasPassword: room.hasPassword(),
				Phase:       room.Phase,
				CreatedAt:   room.CreatedAt,
			})
		}
		room.mu.Unlock()
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})

	return listings
}
