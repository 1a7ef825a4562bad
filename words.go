/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"crypto/rand"
	_ "embed"
	"fmt"
	"math/big"
	"os"
	"strings"
)

//go:embed words.txt
var embeddedWords string

const boardSize = 25

// Card counts per deal: the starting team holds nine cards, the other eight,
// seven neutrals and a single assassin.
const (
	startingTeamCards = 9
	otherTeamCards    = 8
	neutralCards      = 7
	assassinCards     = 1
)

// wordDeck supplies the 25 unique words for each game.
type wordDeck struct {
	words []string
}

func loadWordDeck(cfg *Config) (*wordDeck, error) {
	raw := embeddedWords
	if cfg.wordlist != "" {
		data, err := os.ReadFile(cfg.wordlist)
		if err != nil {
			return nil, fmt.Errorf("reading wordlist: %w", err)
		}
		raw = string(data)
	}

	seen := make(map[string]bool)
	var words []string
	for _, line := range strings.Split(raw, "\n") {
		word := strings.ToUpper(strings.TrimSpace(line))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}

	if len(words) < boardSize {
		return nil, fmt.Errorf("word pool holds %d words, need at least %d", len(words), boardSize)
	}

	return &wordDeck{words: words}, nil
}

// secureShuffle is a Fisher-Yates shuffle driven by crypto/rand, so boards
// are not reproducible from a process seed.
func secureShuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		swap(i, int(j.Int64()))
	}
}

func coinFlip() bool {
	b, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return b.Int64() == 1
}

// deal picks 25 unique words and assigns card types. The returned team is
// the one holding nine cards, which always moves first.
func (d *wordDeck) deal() ([]Card, Team) {
	picks := make([]string, len(d.words))
	copy(picks, d.words)
	secureShuffle(len(picks), func(i, j int) {
		picks[i], picks[j] = picks[j], picks[i]
	})
	picks = picks[:boardSize]

	starting := TeamDark
	if coinFlip() {
		starting = TeamLight
	}

	types := make([]CardType, 0, boardSize)
	for i := 0; i < startingTeamCards; i++ {
		types = append(types, CardType(starting))
	}
	for i := 0; i < otherTeamCards; i++ {
		types = append(types, CardType(starting.other()))
	}
	for i := 0; i < neutralCards; i++ {
		types = append(types, CardNeutral)
	}
	types = append(types, CardAssassin)
	secureShuffle(len(types), func(i, j int) {
		types[i], types[j] = types[j], types[i]
	})

	cards := make([]Card, boardSize)
	for i := range cards {
		cards[i] = Card{
			ID:   i,
			Word: picks[i],
			Type: types[i],
		}
	}

	return cards, starting
}
