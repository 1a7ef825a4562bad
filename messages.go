/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Wire envelopes. Every inbound payload is validated against its type's
// schema before any state is touched; a failure answers the sender alone.

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

var (
	// Unicode letters and digits plus a few name-friendly characters.
	usernameRegexp = regexp.MustCompile(`^[\p{L}\p{N} '\-_.]{1,24}$`)
	clueWordRegexp = regexp.MustCompile(`^[\p{L}\p{N}\-]{1,32}$`)
	roomCodeRegexp = regexp.MustCompile(`^[` + roomCodeAlphabet + `]{6}$`)
)

func validUsername(name string) bool {
	return usernameRegexp.MatchString(strings.TrimSpace(name)) && strings.TrimSpace(name) == name
}

type createRoomPayload struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Timed    bool   `json:"timed,omitempty"`
}

func (p *createRoomPayload) validate() *opError {
	if !validUsername(p.Username) {
		return opErr(errBadPayload, "invalid username")
	}
	if len(p.Password) > 64 {
		return opErr(errBadPayload, "password too long")
	}
	return nil
}

type joinRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	ReconnectID string `json:"reconnectId,omitempty"`
}

func (p *joinRoomPayload) validate() *opError {
	p.RoomCode = strings.ToUpper(strings.TrimSpace(p.RoomCode))
	if !roomCodeRegexp.MatchString(p.RoomCode) {
		return opErr(errBadPayload, "invalid room code")
	}
	if !validUsername(p.Username) {
		return opErr(errBadPayload, "invalid username")
	}
	return nil
}

type selectTeamPayload struct {
	Team Team `json:"team"`
}

func (p *selectTeamPayload) validate() *opError {
	if !p.Team.valid() {
		return opErr(errBadPayload, "unknown team")
	}
	return nil
}

type selectRolePayload struct {
	Role Role `json:"role"`
}

func (p *selectRolePayload) validate() *opError {
	if p.Role != RoleSpymaster && p.Role != RoleGuesser {
		return opErr(errBadPayload, "unknown role")
	}
	return nil
}

type addBotPayload struct {
	Team Team `json:"team"`
	Role Role `json:"role"`
}

func (p *addBotPayload) validate() *opError {
	if !p.Team.valid() {
		return opErr(errBadPayload, "unknown team")
	}
	if p.Role != RoleSpymaster && p.Role != RoleGuesser {
		return opErr(errBadPayload, "unknown role")
	}
	return nil
}

type updateTeamNamePayload struct {
	Team Team   `json:"team"`
	Name string `json:"name"`
}

func (p *updateTeamNamePayload) validate() *opError {
	if !p.Team.valid() {
		return opErr(errBadPayload, "unknown team")
	}
	if !validUsername(p.Name) {
		return opErr(errBadPayload, "invalid team name")
	}
	return nil
}

type giveCluePayload struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

func (p *giveCluePayload) validate() *opError {
	if !clueWordRegexp.MatchString(p.Word) {
		return opErr(errBadPayload, "clue must be a single word")
	}
	if p.Count < minClueCount || p.Count > maxClueCount {
		return opErr(errBadPayload, "clue count must be between 0 and 9")
	}
	return nil
}

type revealCardPayload struct {
	CardID int `json:"cardId"`
}

func (p *revealCardPayload) validate() *opError {
	if p.CardID < 0 || p.CardID >= boardSize {
		return opErr(errBadPayload, "card id out of range")
	}
	return nil
}

type startGamePayload struct {
	WithIntro     bool `json:"withIntro,omitempty"`
	WithForesight bool `json:"withForesight,omitempty"`
}

func (p *startGamePayload) validate() *opError {
	return nil
}

type kickPlayerPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

func (p *kickPlayerPayload) validate() *opError {
	if p.TargetPlayerID == "" {
		return opErr(errBadPayload, "missing target player")
	}
	return nil
}

// Outbound payload bodies.

type joinedPayload struct {
	RoomCode    string `json:"roomCode"`
	PlayerID    string `json:"playerId"`
	Username    string `json:"username"`
	IsReconnect bool   `json:"isReconnect"`
}

type foresightPayload struct {
	CardIDs []int `json:"cardIds"`
}

type audienceVotesPayload struct {
	PlayerID string `json:"playerId"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
}

type simplePayload struct {
	Message string `json:"message"`
}
