package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardMasking(t *testing.T) {
	t.Run("spymaster sees every true type", func(t *testing.T) {
		r, players := playingRoom(t)
		cards := maskCardsForLocked(r, players["ayse"])
		for i, c := range cards {
			assert.Equal(t, r.Cards[i].Type, c.Type)
		}
	})

	t.Run("guesser sees unrevealed cards as neutral", func(t *testing.T) {
		r, players := playingRoom(t)
		cards := maskCardsForLocked(r, players["darkbot"])
		for _, c := range cards {
			assert.Equal(t, CardNeutral, c.Type)
		}
	})

	t.Run("revealed cards keep their type for everyone", func(t *testing.T) {
		r, players := playingRoom(t)
		r.Cards[0].Revealed = true
		r.Cards[24].Revealed = true

		cards := maskCardsForLocked(r, players["lightbot"])
		assert.Equal(t, CardDark, cards[0].Type)
		assert.Equal(t, CardAssassin, cards[24].Type)
		assert.Equal(t, CardNeutral, cards[1].Type)
	})

	t.Run("foresight exposes exactly the granted set", func(t *testing.T) {
		r, players := playingRoom(t)
		r.foresight[players["darkbot"].ID] = []int{3, 9, 24}

		cards := maskCardsForLocked(r, players["darkbot"])
		assert.Equal(t, CardDark, cards[3].Type)
		assert.Equal(t, CardLight, cards[9].Type)
		assert.Equal(t, CardAssassin, cards[24].Type)
		for _, id := range []int{0, 1, 2, 4, 10, 17, 23} {
			assert.Equal(t, CardNeutral, cards[id].Type)
		}

		// The grant is private to its holder.
		other := maskCardsForLocked(r, players["lightbot"])
		assert.Equal(t, CardNeutral, other[3].Type)
	})

	t.Run("ended games are fully visible", func(t *testing.T) {
		r, players := playingRoom(t)
		r.Phase = PhaseEnded
		r.Winner = TeamLight

		cards := maskCardsForLocked(r, players["darkbot"])
		for i, c := range cards {
			assert.Equal(t, r.Cards[i].Type, c.Type)
		}
	})

	t.Run("masking never mutates the authoritative board", func(t *testing.T) {
		r, players := playingRoom(t)
		_ = maskCardsForLocked(r, players["darkbot"])
		assert.Equal(t, CardDark, r.Cards[0].Type)
		assert.Equal(t, CardAssassin, r.Cards[24].Type)
	})
}

func TestSnapshot(t *testing.T) {
	t.Run("carries players, counts and history", func(t *testing.T) {
		r, players := playingRoom(t)
		require.Nil(t, r.giveClueLocked(players["ayse"], "ORMAN", 2))

		snap := snapshotForLocked(r, players["ayse"])
		assert.Equal(t, r.Code, snap.Code)
		assert.Equal(t, PhasePlaying, snap.Phase)
		assert.Len(t, snap.Players, 4)
		assert.Equal(t, 9, snap.DarkCardsRemaining)
		assert.Equal(t, "ORMAN", snap.CurrentClue.Word)
		assert.Len(t, snap.History, 1)
		assert.False(t, snap.EndedByAssassin)
	})

	t.Run("flags an assassin finale", func(t *testing.T) {
		r, players := playingRoom(t)
		require.Nil(t, r.giveClueLocked(players["ayse"], "ORMAN", 2))
		require.Nil(t, r.revealCardLocked(players["darkbot"], 24))

		snap := snapshotForLocked(r, players["mert"])
		assert.True(t, snap.EndedByAssassin)
		assert.Equal(t, TeamLight, snap.Winner)
	})

	t.Run("includes audience tallies", func(t *testing.T) {
		r, players := playingRoom(t)
		r.Phase = PhaseIntroduction
		r.votes[players["ayse"].ID] = &AudienceTally{Likes: 12, Dislikes: 3}

		snap := snapshotForLocked(r, players["mert"])
		for _, pv := range snap.Players {
			if pv.ID == players["ayse"].ID {
				require.NotNil(t, pv.Votes)
				assert.Equal(t, 12, pv.Votes.Likes)
			} else {
				assert.Nil(t, pv.Votes)
			}
		}
	})
}

func TestBroadcastDelivery(t *testing.T) {
	t.Run("every live connection gets its own filtered view", func(t *testing.T) {
		r, players := playingRoom(t)
		spy := testClient()
		spy.playerID = players["ayse"].ID
		guesser := testClient()
		guesser.playerID = players["darkbot"].ID
		r.clients[spy] = true
		r.clients[guesser] = true

		broadcastRoomLocked(r, "card_revealed")

		spyMsgs := drainMessages(spy)
		require.Len(t, spyMsgs, 1)
		spyState := spyMsgs[0].Payload.(roomStatePayload)
		assert.Equal(t, "card_revealed", spyState.Event)
		assert.Equal(t, CardDark, spyState.Room.Cards[0].Type)

		guesserMsgs := drainMessages(guesser)
		require.Len(t, guesserMsgs, 1)
		guesserState := guesserMsgs[0].Payload.(roomStatePayload)
		assert.Equal(t, CardNeutral, guesserState.Room.Cards[0].Type)
	})

	t.Run("an unwritable connection is dropped without stalling the rest", func(t *testing.T) {
		r, players := playingRoom(t)
		stuck := &client{send: make(chan outboundMessage)} // no buffer, no reader
		stuck.playerID = players["darkbot"].ID
		healthy := testClient()
		healthy.playerID = players["ayse"].ID
		r.clients[stuck] = true
		r.clients[healthy] = true

		broadcastRoomLocked(r, "turn_ended")

		assert.False(t, r.clients[stuck])
		assert.True(t, r.clients[healthy])
		assert.Len(t, drainMessages(healthy), 1)

		// Dropping the connection did not touch the player itself.
		assert.NotNil(t, r.playerByID(players["darkbot"].ID))
	})

	t.Run("foresight whispers reach only the holder", func(t *testing.T) {
		r, players := playingRoom(t)
		r.foresight[players["darkbot"].ID] = []int{1, 2, 3}
		holder := testClient()
		holder.playerID = players["darkbot"].ID
		bystander := testClient()
		bystander.playerID = players["lightbot"].ID
		r.clients[holder] = true
		r.clients[bystander] = true

		sendForesightLocked(r)

		msgs := drainMessages(holder)
		require.Len(t, msgs, 1)
		assert.Equal(t, "foresight", msgs[0].Type)
		assert.Equal(t, []int{1, 2, 3}, msgs[0].Payload.(foresightPayload).CardIDs)
		assert.Empty(t, drainMessages(bystander))
	})
}
