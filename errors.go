/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

// Stable error codes surfaced to clients. Precondition failures are routine
// (stale clients, races between guessers) and never mutate state.
const (
	errAlreadyRevealed = "already_revealed"
	errBadPayload      = "bad_payload"
	errBadPhase        = "bad_phase"
	errClueActive      = "clue_active"
	errNameTaken       = "name_taken"
	errNoActiveClue    = "no_active_clue"
	errNotInRoom       = "not_in_room"
	errNotOwner        = "not_owner"
	errNotSpymaster    = "not_spymaster"
	errNotYourTurn     = "not_your_turn"
	errPlayerNotFound  = "player_not_found"
	errRateLimited     = "rate_limited"
	errRoomNotFound    = "room_not_found"
	errTeamsIncomplete = "teams_incomplete"
	errUnknownType     = "unknown_type"
	errWrongPassword   = "wrong_password"
	errWrongRole       = "wrong_role"
)

// opError is the no-op result of a rejected operation: the room it was aimed
// at is left untouched and only the sender hears about it.
type opError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *opError) Error() string {
	return e.Code + ": " + e.Message
}

func opErr(code, message string) *opError {
	return &opError{Code: code, Message: message}
}
