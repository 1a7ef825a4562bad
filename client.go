/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Sustained inbound message budget per connection, with burst headroom for
// reconnect catch-up.
const (
	clientSendBuffer = 16
	inboundPerSecond = 15
	inboundBurst     = 30
)

type client struct {
	conn    *websocket.Conn
	send    chan outboundMessage
	limiter *rate.Limiter

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool

	// Bound while the connection belongs to a room; written only by this
	// connection's own dispatch path.
	playerID string
	roomCode string
}

// shutdown closes the send channel (the write pump drains what is buffered,
// then closes the socket). Safe to call from any path that drops the client.
// The closed flag is flipped under c.mu before the close so trySend never
// races a send onto the closing channel.
func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// trySend delivers outside any room lock, fire-and-forget. A connection that
// was already shut down (kicked, evicted by a reconnect) silently drops the
// message; its read loop may still be working through in-flight input.
func (c *client) trySend(msg outboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(s *roomStore) {
	defer func() {
		s.disconnect(c)
		c.shutdown()
		_ = c.conn.Close()
	}()

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.replyError(s, opErr(errRateLimited, "too many messages, slow down"))
			continue
		}

		s.dispatch(c, msg)
	}
}

// replyError answers the sender alone. Inside a room the send is serialized
// under the room lock like every other delivery to this connection.
func (c *client) replyError(s *roomStore, e *opError) {
	msg := outboundMessage{Type: "error", Payload: e}

	if room := s.room(c.roomCode); room != nil {
		room.mu.Lock()
		if room.clients[c] {
			sendLocked(room, c, msg)
			room.mu.Unlock()
			return
		}
		room.mu.Unlock()
	}

	c.trySend(msg)
}

func decodePayload(raw json.RawMessage, v interface{ validate() *opError }) *opError {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return opErr(errBadPayload, "malformed payload")
	}
	return v.validate()
}

func (s *roomStore) dispatch(c *client, msg inboundMessage) {
	switch msg.Type {
	case "create_room":
		s.handleCreateRoom(c, msg.Payload)

	case "join_room":
		s.handleJoinRoom(c, msg.Payload)

	case "leave_room":
		s.handleLeaveRoom(c)

	case "kick_player":
		s.handleKickPlayer(c, msg.Payload)

	case "select_team":
		var pl selectTeamPayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "team_selected", func(r *RoomState, p *Player) *opError {
			return r.selectTeamLocked(p, pl.Team)
		}, nil)

	case "select_role":
		var pl selectRolePayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "role_selected", func(r *RoomState, p *Player) *opError {
			return r.selectRoleLocked(p, pl.Role)
		}, nil)

	case "add_bot":
		var pl addBotPayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "bot_added", func(r *RoomState, p *Player) *opError {
			_, err := r.addBotLocked(p, pl.Team, pl.Role)
			return err
		}, nil)

	case "update_team_name":
		var pl updateTeamNamePayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "team_name_updated", func(r *RoomState, p *Player) *opError {
			return r.updateTeamNameLocked(p, pl.Team, pl.Name)
		}, nil)

	case "start_game":
		var pl startGamePayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "game_started", func(r *RoomState, p *Player) *opError {
			return r.startGameLocked(p, s.deck, pl.WithIntro, pl.WithForesight)
		}, sendForesightLocked)

	case "begin_playing":
		s.apply(c, "introduction_ended", func(r *RoomState, p *Player) *opError {
			return r.beginPlayingLocked(p)
		}, nil)

	case "give_clue":
		var pl giveCluePayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "clue_given", func(r *RoomState, p *Player) *opError {
			return r.giveClueLocked(p, pl.Word, pl.Count)
		}, nil)

	case "reveal_card":
		var pl revealCardPayload
		if e := decodePayload(msg.Payload, &pl); e != nil {
			c.replyError(s, e)
			return
		}
		s.apply(c, "card_revealed", func(r *RoomState, p *Player) *opError {
			return r.revealCardLocked(p, pl.CardID)
		}, nil)

	case "end_turn":
		s.apply(c, "turn_ended", func(r *RoomState, p *Player) *opError {
			return r.endTurnLocked(p)
		}, nil)

	case "restart_game":
		s.apply(c, "game_restarted", func(r *RoomState, p *Player) *opError {
			return r.restartGameLocked(p, s.deck)
		}, sendForesightLocked)

	case "return_to_lobby":
		s.apply(c, "returned_to_lobby", func(r *RoomState, p *Player) *opError {
			return r.returnToLobbyLocked(p)
		}, nil)

	default:
		c.replyError(s, opErr(errUnknownType, "unknown message type"))
	}
}

// apply runs one operation to completion for the sender's room: resolve the
// player, mutate through the engine, re-arm the clock, broadcast. The room
// lock covers the whole cycle so concurrent actions on one room serialize.
func (s *roomStore) apply(c *client, event string, fn func(r *RoomState, p *Player) *opError, post func(r *RoomState)) {
	room := s.room(c.roomCode)
	if room == nil {
		c.replyError(s, opErr(errNotInRoom, "join a room first"))
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	p := room.playerByID(c.playerID)
	if p == nil {
		sendLocked(room, c, outboundMessage{Type: "error", Payload: opErr(errPlayerNotFound, "you are not in this room")})
		return
	}

	if err := fn(room, p); err != nil {
		sendLocked(room, c, outboundMessage{Type: "error", Payload: err})
		return
	}

	room.replaceClockLocked(s.cfg)
	broadcastRoomLocked(room, event)
	if post != nil {
		post(room)
	}
}

func (s *roomStore) handleCreateRoom(c *client, raw json.RawMessage) {
	if c.roomCode != "" {
		c.replyError(s, opErr(errBadPhase, "leave your current room first"))
		return
	}

	var pl createRoomPayload
	if e := decodePayload(raw, &pl); e != nil {
		c.replyError(s, e)
		return
	}

	room, owner := s.createRoom(c, pl.Username, pl.Password, pl.Timed)

	room.mu.Lock()
	defer room.mu.Unlock()

	sendLocked(room, c, outboundMessage{
		Type: "joined",
		Payload: joinedPayload{
			RoomCode: room.Code,
			PlayerID: owner.ID,
			Username: owner.Username,
		},
	})
	broadcastRoomLocked(room, "room_created")
}

func (s *roomStore) handleJoinRoom(c *client, raw json.RawMessage) {
	if c.roomCode != "" {
		c.replyError(s, opErr(errBadPhase, "leave your current room first"))
		return
	}

	var pl joinRoomPayload
	if e := decodePayload(raw, &pl); e != nil {
		c.replyError(s, e)
		return
	}

	room, p, isReconnect, err := s.joinRoom(c, pl.RoomCode, pl.Username, pl.Password, pl.ReconnectID)
	if err != nil {
		c.replyError(s, err)
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	sendLocked(room, c, outboundMessage{
		Type: "joined",
		Payload: joinedPayload{
			RoomCode:    room.Code,
			PlayerID:    p.ID,
			Username:    p.Username,
			IsReconnect: isReconnect,
		},
	})

	event := "player_joined"
	if isReconnect {
		event = "player_reconnected"
	}
	broadcastRoomLocked(room, event)

	// A reconnecting foresight holder gets their known set again.
	if ids, ok := room.foresight[p.ID]; ok {
		known := make([]int, len(ids))
		copy(known, ids)
		sendLocked(room, c, outboundMessage{
			Type:    "foresight",
			Payload: foresightPayload{CardIDs: known},
		})
	}
}

func (s *roomStore) handleLeaveRoom(c *client) {
	if c.roomCode == "" {
		c.replyError(s, opErr(errNotInRoom, "you are not in a room"))
		return
	}

	s.removePlayer(c.roomCode, c.playerID, false)
	c.roomCode = ""
	c.playerID = ""

	c.trySend(outboundMessage{Type: "left", Payload: simplePayload{Message: "you left the room"}})
}

func (s *roomStore) handleKickPlayer(c *client, raw json.RawMessage) {
	var pl kickPlayerPayload
	if e := decodePayload(raw, &pl); e != nil {
		c.replyError(s, e)
		return
	}

	room := s.room(c.roomCode)
	if room == nil {
		c.replyError(s, opErr(errNotInRoom, "join a room first"))
		return
	}

	room.mu.Lock()
	p := room.playerByID(c.playerID)
	var err *opError
	switch {
	case p == nil:
		err = opErr(errPlayerNotFound, "you are not in this room")
	case !p.IsRoomOwner:
		err = opErr(errNotOwner, "only the room owner can kick")
	case pl.TargetPlayerID == p.ID:
		err = opErr(errBadPayload, "use leave_room to leave")
	case room.playerByID(pl.TargetPlayerID) == nil:
		err = opErr(errPlayerNotFound, "no such player")
	}
	if err != nil {
		sendLocked(room, c, outboundMessage{Type: "error", Payload: err})
		room.mu.Unlock()
		return
	}
	room.mu.Unlock()

	s.removePlayer(room.Code, pl.TargetPlayerID, true)
}

func serveWS(cfg *Config, s *roomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := &client{
			conn:    conn,
			send:    make(chan outboundMessage, clientSendBuffer),
			limiter: rate.NewLimiter(rate.Limit(inboundPerSecond), inboundBurst),
		}

		go c.writePump()
		c.readPump(s)
	}
}
