/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"fmt"
	"time"
)

// Game rules. Every method below assumes r.mu is held by the caller and
// either applies a full transition or returns an opError leaving the room
// untouched.

const (
	minClueCount = 0
	maxClueCount = 9
	// Number of card ids revealed to a foresight holder.
	foresightCards = 3
)

func (r *RoomState) requireOwnerLocked(p *Player) *opError {
	if !p.IsRoomOwner {
		return opErr(errNotOwner, "only the room owner can do that")
	}
	return nil
}

func (r *RoomState) selectTeamLocked(p *Player, team Team) *opError {
	if !team.valid() {
		return opErr(errBadPayload, "unknown team")
	}
	if p.Team == team {
		return nil
	}

	p.Team = team
	if p.Role == "" {
		p.Role = RoleGuesser
	}
	r.History = append(r.History, TeamChangeEntry{
		Kind:   "teamChange",
		Player: p.Username,
		Team:   team,
	})

	// A spymaster switching onto a team that already has one steps down;
	// the incumbent keeps the role.
	if p.Role == RoleSpymaster {
		if incumbent := r.spymasterOf(team); incumbent != nil && incumbent != p {
			p.Role = RoleGuesser
			r.History = append(r.History, RoleChangeEntry{
				Kind:   "roleChange",
				Player: p.Username,
				Role:   RoleGuesser,
			})
		}
	}

	return nil
}

func (r *RoomState) selectRoleLocked(p *Player, role Role) *opError {
	if role != RoleSpymaster && role != RoleGuesser {
		return opErr(errBadPayload, "unknown role")
	}
	if p.Team == "" {
		return opErr(errWrongRole, "select a team before a role")
	}
	if p.Role == role {
		return nil
	}

	// Claiming spymaster demotes the team's current one.
	if role == RoleSpymaster {
		if incumbent := r.spymasterOf(p.Team); incumbent != nil {
			incumbent.Role = RoleGuesser
			r.History = append(r.History, RoleChangeEntry{
				Kind:   "roleChange",
				Player: incumbent.Username,
				Role:   RoleGuesser,
			})
		}
	}

	p.Role = role
	r.History = append(r.History, RoleChangeEntry{
		Kind:   "roleChange",
		Player: p.Username,
		Role:   role,
	})

	return nil
}

func (r *RoomState) addBotLocked(p *Player, team Team, role Role) (*Player, *opError) {
	if err := r.requireOwnerLocked(p); err != nil {
		return nil, err
	}
	if !team.valid() {
		return nil, opErr(errBadPayload, "unknown team")
	}
	if role != RoleSpymaster && role != RoleGuesser {
		return nil, opErr(errBadPayload, "unknown role")
	}

	name := ""
	for n := 1; ; n++ {
		name = fmt.Sprintf("Bot %d", n)
		if r.playerByName(name) == nil {
			break
		}
	}

	if role == RoleSpymaster {
		if incumbent := r.spymasterOf(team); incumbent != nil {
			incumbent.Role = RoleGuesser
			r.History = append(r.History, RoleChangeEntry{
				Kind:   "roleChange",
				Player: incumbent.Username,
				Role:   RoleGuesser,
			})
		}
	}

	// Bots never hold a connection but count as present members.
	bot := &Player{
		ID:        newPlayerID(),
		Username:  name,
		Team:      team,
		Role:      role,
		IsBot:     true,
		Connected: true,
	}
	r.Players = append(r.Players, bot)

	return bot, nil
}

func (r *RoomState) updateTeamNameLocked(p *Player, team Team, name string) *opError {
	if !team.valid() {
		return opErr(errBadPayload, "unknown team")
	}
	r.TeamNames[team] = name
	return nil
}

// resetForDealLocked wipes everything a fresh deal starts over: clue, winner,
// history, guess counters, foresight grants and audience tallies.
func (r *RoomState) resetForDealLocked() {
	r.CurrentClue = nil
	r.Winner = ""
	r.History = nil
	r.remainingGuesses = 0
	r.maxGuesses = 0
	r.foresight = make(map[string][]int)
	r.votes = make(map[string]*AudienceTally)
}

func (r *RoomState) dealLocked(deck *wordDeck) {
	cards, starting := deck.deal()
	r.Cards = cards
	r.CurrentTeam = starting
	r.DarkCardsRemaining = 0
	r.LightCardsRemaining = 0
	for _, c := range cards {
		switch c.Type {
		case CardDark:
			r.DarkCardsRemaining++
		case CardLight:
			r.LightCardsRemaining++
		}
	}
}

// assignForesightLocked grants one non-spymaster, non-bot player per team a
// private fixed set of card ids whose true types they may see all game.
func (r *RoomState) assignForesightLocked() {
	for _, team := range []Team{TeamDark, TeamLight} {
		var candidates []*Player
		for _, p := range r.Players {
			if p.Team == team && p.Role == RoleGuesser && !p.IsBot {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		ids := make([]int, len(r.Cards))
		for i := range ids {
			ids[i] = i
		}
		secureShuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})
		secureShuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})

		known := make([]int, foresightCards)
		copy(known, ids[:foresightCards])
		r.foresight[candidates[0].ID] = known
	}
}

func (r *RoomState) startGameLocked(p *Player, deck *wordDeck, withIntro, withForesight bool) *opError {
	if err := r.requireOwnerLocked(p); err != nil {
		return err
	}
	if r.Phase != PhaseLobby {
		return opErr(errBadPhase, "the game has already started")
	}
	for _, team := range []Team{TeamDark, TeamLight} {
		hasPlayer := false
		for _, member := range r.Players {
			if member.Team == team {
				hasPlayer = true
				break
			}
		}
		if !hasPlayer {
			return opErr(errTeamsIncomplete, "both teams need at least one player")
		}
		if r.spymasterOf(team) == nil {
			return opErr(errTeamsIncomplete, "both teams need a spymaster")
		}
	}

	r.resetForDealLocked()
	r.dealLocked(deck)
	if withForesight {
		r.assignForesightLocked()
	}

	if withIntro {
		r.Phase = PhaseIntroduction
	} else {
		r.Phase = PhasePlaying
		r.turnStart = time.Now()
	}

	return nil
}

func (r *RoomState) beginPlayingLocked(p *Player) *opError {
	if err := r.requireOwnerLocked(p); err != nil {
		return err
	}
	if r.Phase != PhaseIntroduction {
		return opErr(errBadPhase, "no introduction in progress")
	}

	r.Phase = PhasePlaying
	r.turnStart = time.Now()

	return nil
}

func (r *RoomState) giveClueLocked(p *Player, word string, count int) *opError {
	if r.Phase != PhasePlaying {
		return opErr(errBadPhase, "clues can only be given mid-game")
	}
	if p.Team != r.CurrentTeam {
		return opErr(errNotYourTurn, "it is not your team's turn")
	}
	if p.Role != RoleSpymaster {
		return opErr(errNotSpymaster, "only the spymaster gives clues")
	}
	if r.CurrentClue != nil {
		return opErr(errClueActive, "your team already has an active clue")
	}
	if count < minClueCount || count > maxClueCount {
		return opErr(errBadPayload, "clue count must be between 0 and 9")
	}

	r.CurrentClue = &Clue{
		Word:  word,
		Count: count,
		Team:  p.Team,
	}
	// One bonus guess past the stated count, by rule.
	r.maxGuesses = count + 1
	r.remainingGuesses = r.maxGuesses
	r.turnStart = time.Now()
	r.History = append(r.History, ClueEntry{
		Kind:   "clue",
		Player: p.Username,
		Team:   p.Team,
		Word:   word,
		Count:  count,
	})

	return nil
}

func (r *RoomState) revealCardLocked(p *Player, cardID int) *opError {
	if r.Phase != PhasePlaying {
		return opErr(errBadPhase, "cards can only be revealed mid-game")
	}
	if p.Team != r.CurrentTeam {
		return opErr(errNotYourTurn, "it is not your team's turn")
	}
	if p.Role != RoleGuesser {
		return opErr(errWrongRole, "spymasters do not reveal cards")
	}
	if r.CurrentClue == nil {
		return opErr(errNoActiveClue, "wait for your spymaster's clue")
	}
	if cardID < 0 || cardID >= len(r.Cards) {
		return opErr(errBadPayload, "no such card")
	}

	card := &r.Cards[cardID]
	if card.Revealed {
		return opErr(errAlreadyRevealed, "that card is already revealed")
	}

	card.Revealed = true
	r.History = append(r.History, RevealEntry{
		Kind:     "reveal",
		Player:   p.Username,
		Team:     p.Team,
		CardID:   card.ID,
		Word:     card.Word,
		CardType: card.Type,
	})

	switch card.Type {
	case CardAssassin:
		r.finishLocked(p.Team.other())

	case CardType(p.Team):
		r.decrementRemainingLocked(p.Team)
		if r.cardsRemainingLocked(p.Team) == 0 {
			r.finishLocked(p.Team)
			break
		}
		r.remainingGuesses--
		if r.remainingGuesses <= 0 {
			r.switchTurnLocked()
		}

	case CardType(p.Team.other()):
		// Revealing the other team's card always helps them, possibly
		// handing them the win outright.
		other := p.Team.other()
		r.decrementRemainingLocked(other)
		if r.cardsRemainingLocked(other) == 0 {
			r.finishLocked(other)
			break
		}
		r.switchTurnLocked()

	default:
		r.switchTurnLocked()
	}

	return nil
}

func (r *RoomState) endTurnLocked(p *Player) *opError {
	if r.Phase != PhasePlaying {
		return opErr(errBadPhase, "no turn to end")
	}
	if p.Team != r.CurrentTeam {
		return opErr(errNotYourTurn, "it is not your team's turn")
	}
	if p.Role != RoleGuesser {
		return opErr(errWrongRole, "only a guesser ends the turn early")
	}
	if r.CurrentClue == nil {
		return opErr(errNoActiveClue, "there is no active clue")
	}

	r.History = append(r.History, EndTurnEntry{
		Kind:   "endTurn",
		Player: p.Username,
		Team:   p.Team,
	})
	r.switchTurnLocked()

	return nil
}

func (r *RoomState) restartGameLocked(p *Player, deck *wordDeck) *opError {
	if err := r.requireOwnerLocked(p); err != nil {
		return err
	}
	if r.Phase == PhaseLobby {
		return opErr(errBadPhase, "there is no game to restart")
	}

	withForesight := len(r.foresight) > 0
	r.resetForDealLocked()
	r.dealLocked(deck)
	if withForesight {
		r.assignForesightLocked()
	}
	r.Phase = PhasePlaying
	r.turnStart = time.Now()

	return nil
}

func (r *RoomState) returnToLobbyLocked(p *Player) *opError {
	if err := r.requireOwnerLocked(p); err != nil {
		return err
	}
	if r.Phase == PhaseLobby {
		return opErr(errBadPhase, "already in the lobby")
	}

	r.resetForDealLocked()
	r.Cards = nil
	r.CurrentTeam = ""
	r.DarkCardsRemaining = 0
	r.LightCardsRemaining = 0
	r.Phase = PhaseLobby

	return nil
}

func (r *RoomState) switchTurnLocked() {
	r.CurrentTeam = r.CurrentTeam.other()
	r.CurrentClue = nil
	r.remainingGuesses = 0
	r.maxGuesses = 0
	r.turnStart = time.Now()
}

func (r *RoomState) finishLocked(winner Team) {
	r.Winner = winner
	r.Phase = PhaseEnded
	r.CurrentClue = nil
	r.remainingGuesses = 0
	r.maxGuesses = 0
}

func (r *RoomState) cardsRemainingLocked(team Team) int {
	if team == TeamDark {
		return r.DarkCardsRemaining
	}
	return r.LightCardsRemaining
}

func (r *RoomState) decrementRemainingLocked(team Team) {
	if team == TeamDark {
		r.DarkCardsRemaining--
	} else {
		r.LightCardsRemaining--
	}
}

// removePlayerLocked drops a player from the room, restoring the ownership
// invariant: if the owner left and anyone remains, the first player in join
// order inherits the room.
func (r *RoomState) removePlayerLocked(playerID string) *Player {
	idx := -1
	for i, p := range r.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	removed := r.Players[idx]
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	delete(r.foresight, removed.ID)
	delete(r.votes, removed.ID)

	if removed.IsRoomOwner && len(r.Players) > 0 {
		removed.IsRoomOwner = false
		r.Players[0].IsRoomOwner = true
	}

	return removed
}
