/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import "time"

// Per-recipient state fan-out. Views are computed fresh from the
// authoritative state on every broadcast, never cached pre-filtered.

type playerView struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	Team        Team           `json:"team,omitempty"`
	Role        Role           `json:"role,omitempty"`
	IsRoomOwner bool           `json:"isRoomOwner"`
	IsBot       bool           `json:"isBot"`
	Connected   bool           `json:"connected"`
	Votes       *AudienceTally `json:"votes,omitempty"`
}

type roomSnapshot struct {
	Code                string          `json:"code"`
	Phase               Phase           `json:"phase"`
	Players             []playerView    `json:"players"`
	Cards               []Card          `json:"cards"`
	CurrentTeam         Team            `json:"currentTeam,omitempty"`
	CurrentClue         *Clue           `json:"currentClue,omitempty"`
	TeamNames           map[Team]string `json:"teamNames"`
	DarkCardsRemaining  int             `json:"darkCardsRemaining"`
	LightCardsRemaining int             `json:"lightCardsRemaining"`
	Winner              Team            `json:"winner,omitempty"`
	History             []HistoryEntry  `json:"history"`
	HasPassword         bool            `json:"hasPassword"`
	Timed               bool            `json:"timed"`
	EndedByAssassin     bool            `json:"endedByAssassin"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type roomStatePayload struct {
	Event string       `json:"event"`
	You   string       `json:"you,omitempty"`
	Room  roomSnapshot `json:"room"`
}

// maskCardsForLocked applies the information-hiding rule: unrevealed card
// types collapse to neutral unless the viewer is a spymaster or was granted
// foresight on that card id. Once the game is settled the full board is
// visible to everyone.
func maskCardsForLocked(r *RoomState, viewer *Player) []Card {
	cards := make([]Card, len(r.Cards))
	copy(cards, r.Cards)

	if r.Phase == PhaseEnded {
		return cards
	}
	if viewer != nil && viewer.Role == RoleSpymaster {
		return cards
	}

	var known map[int]bool
	if viewer != nil {
		if ids, ok := r.foresight[viewer.ID]; ok {
			known = make(map[int]bool, len(ids))
			for _, id := range ids {
				known[id] = true
			}
		}
	}

	for i := range cards {
		if !cards[i].Revealed && !known[cards[i].ID] {
			cards[i].Type = CardNeutral
		}
	}

	return cards
}

func snapshotForLocked(r *RoomState, viewer *Player) roomSnapshot {
	players := make([]playerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, playerView{
			ID:          p.ID,
			Username:    p.Username,
			Team:        p.Team,
			Role:        p.Role,
			IsRoomOwner: p.IsRoomOwner,
			IsBot:       p.IsBot,
			Connected:   p.Connected,
			Votes:       r.votes[p.ID],
		})
	}

	history := make([]HistoryEntry, len(r.History))
	copy(history, r.History)

	return roomSnapshot{
		Code:                r.Code,
		Phase:               r.Phase,
		Players:             players,
		Cards:               maskCardsForLocked(r, viewer),
		CurrentTeam:         r.CurrentTeam,
		CurrentClue:         r.CurrentClue,
		TeamNames:           r.TeamNames,
		DarkCardsRemaining:  r.DarkCardsRemaining,
		LightCardsRemaining: r.LightCardsRemaining,
		Winner:              r.Winner,
		History:             history,
		HasPassword:         r.hasPassword(),
		Timed:               r.Timed,
		EndedByAssassin:     r.lastRevealWasAssassinLocked(),
		CreatedAt:           r.CreatedAt,
	}
}

// broadcastRoomLocked pushes one freshly filtered snapshot to every live
// connection in the room.
func broadcastRoomLocked(r *RoomState, event string) {
	for c := range r.clients {
		viewer := r.playerByID(c.playerID)
		sendLocked(r, c, outboundMessage{
			Type: "room_state",
			Payload: roomStatePayload{
				Event: event,
				You:   c.playerID,
				Room:  snapshotForLocked(r, viewer),
			},
		})
	}
}

// broadcastEventLocked pushes a narrow event (tick, expiry, audience votes)
// to every live connection without a full snapshot.
func broadcastEventLocked(r *RoomState, typ string, payload any) {
	for c := range r.clients {
		sendLocked(r, c, outboundMessage{Type: typ, Payload: payload})
	}
}

// sendLocked delivers fire-and-forget: a connection whose buffer is full is
// dropped from the room so a dead peer never stalls the rest. Dropping the
// connection does not touch game state; that happens on its close
// notification. A connection no longer in the room was evicted and its
// channel closed, both under this same lock, so the message is dropped
// rather than sent into a closed channel.
func sendLocked(r *RoomState, c *client, msg outboundMessage) {
	if !r.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		delete(r.clients, c)
		c.shutdown()
	}
}

// sendForesightLocked whispers each foresight holder their known card ids.
func sendForesightLocked(r *RoomState) {
	for c := range r.clients {
		if ids, ok := r.foresight[c.playerID]; ok {
			known := make([]int, len(ids))
			copy(known, ids)
			sendLocked(r, c, outboundMessage{
				Type:    "foresight",
				Payload: foresightPayload{CardIDs: known},
			})
		}
	}
}
