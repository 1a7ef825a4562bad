/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"sync"
	"time"
)

type Team string

const (
	TeamDark  Team = "dark"
	TeamLight Team = "light"
)

func (t Team) other() Team {
	if t == TeamDark {
		return TeamLight
	}
	return TeamDark
}

func (t Team) valid() bool {
	return t == TeamDark || t == TeamLight
}

type Role string

const (
	RoleSpymaster Role = "spymaster"
	RoleGuesser   Role = "guesser"
)

type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseIntroduction Phase = "introduction"
	PhasePlaying      Phase = "playing"
	PhaseEnded        Phase = "ended"
)

type CardType string

const (
	CardDark     CardType = "dark"
	CardLight    CardType = "light"
	CardNeutral  CardType = "neutral"
	CardAssassin CardType = "assassin"
)

// Card identity (id, word, type) is fixed at deal time; only Revealed changes.
type Card struct {
	ID       int      `json:"id"`
	Word     string   `json:"word"`
	Type     CardType `json:"type"`
	Revealed bool     `json:"revealed"`
}

type Clue struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
	Team  Team   `json:"team"`
}

type Player struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Team        Team   `json:"team,omitempty"`
	Role        Role   `json:"role,omitempty"`
	IsRoomOwner bool   `json:"isRoomOwner"`
	IsBot       bool   `json:"isBot"`
	Connected   bool   `json:"connected"`
}

// AudienceTally is advisory input pushed by the external chat service during
// the introduction phase. It never influences game rules.
type AudienceTally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// HistoryEntry variants form the append-only room log. Each variant carries
// only its own fields and is told apart by the kind tag.
type HistoryEntry interface {
	entryKind() string
}

type RevealEntry struct {
	Kind     string   `json:"kind"`
	Player   string   `json:"player"`
	Team     Team     `json:"team"`
	CardID   int      `json:"cardId"`
	Word     string   `json:"word"`
	CardType CardType `json:"cardType"`
}

func (RevealEntry) entryKind() string { return "reveal" }

type ClueEntry struct {
	Kind   string `json:"kind"`
	Player string `json:"player"`
	Team   Team   `json:"team"`
	Word   string `json:"word"`
	Count  int    `json:"count"`
}

func (ClueEntry) entryKind() string { return "clue" }

type EndTurnEntry struct {
	Kind   string `json:"kind"`
	Player string `json:"player"`
	Team   Team   `json:"team"`
}

func (EndTurnEntry) entryKind() string { return "endTurn" }

type TeamChangeEntry struct {
	Kind   string `json:"kind"`
	Player string `json:"player"`
	Team   Team   `json:"team"`
}

func (TeamChangeEntry) entryKind() string { return "teamChange" }

type RoleChangeEntry struct {
	Kind   string `json:"kind"`
	Player string `json:"player"`
	Role   Role   `json:"role"`
}

func (RoleChangeEntry) entryKind() string { return "roleChange" }

// RoomState is the root aggregate for one room. Every mutation happens with
// mu held; across rooms nothing is shared.
type RoomState struct {
	mu sync.Mutex

	Code        string
	Phase       Phase
	Players     []*Player
	Cards       []Card
	CurrentTeam Team
	CurrentClue *Clue
	TeamNames   map[Team]string

	DarkCardsRemaining  int
	LightCardsRemaining int
	Winner              Team
	History             []HistoryEntry

	// Guess bookkeeping for the active clue; never leaves the server.
	remainingGuesses int
	maxGuesses       int

	password  string
	Timed     bool
	CreatedAt time.Time

	// playerID -> card ids whose true type that player may see.
	foresight map[string][]int
	// playerID -> audience tally, populated only during introduction.
	votes map[string]*AudienceTally

	clients map[*client]bool
	clock   *turnClock
	// Set when the room is being torn down; joins racing the deletion
	// treat a closed room as gone.
	closed bool
	// Time the running turn segment started; basis for clock_tick math.
	turnStart time.Time
}

func newRoomState(code, password string, timed bool) *RoomState {
	return &RoomState{
		Code:     code,
		Phase:    PhaseLobby,
		password: password,
		Timed:    timed,
		TeamNames: map[Team]string{
			TeamDark:  "Dark",
			TeamLight: "Light",
		},
		CreatedAt: time.Now(),
		foresight: make(map[string][]int),
		votes:     make(map[string]*AudienceTally),
		clients:   make(map[*client]bool),
	}
}

func (r *RoomState) hasPassword() bool {
	return r.password != ""
}

func (r *RoomState) playerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *RoomState) playerByName(name string) *Player {
	for _, p := range r.Players {
		if p.Username == name {
			return p
		}
	}
	return nil
}

func (r *RoomState) spymasterOf(team Team) *Player {
	for _, p := range r.Players {
		if p.Team == team && p.Role == RoleSpymaster {
			return p
		}
	}
	return nil
}

func (r *RoomState) ownerLocked() *Player {
	for _, p := range r.Players {
		if p.IsRoomOwner {
			return p
		}
	}
	return nil
}

// lastRevealWasAssassinLocked reports whether the game-ending action was an
// assassin reveal; the presentation layer keys its finale off this.
func (r *RoomState) lastRevealWasAssassinLocked() bool {
	if r.Phase != PhaseEnded || len(r.History) == 0 {
		return false
	}
	reveal, ok := r.History[len(r.History)-1].(RevealEntry)
	return ok && reveal.CardType == CardAssassin
}
