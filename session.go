/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"sync"

	"github.com/google/uuid"
)

func newPlayerID() string {
	return uuid.NewString()
}

// sessionRegistry tracks which live connection currently speaks for each
// player id. At most one connection per player: binding a reconnect returns
// the evicted predecessor so the caller can close it.
type sessionRegistry struct {
	mu       sync.Mutex
	byPlayer map[string]*client
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		byPlayer: make(map[string]*client),
	}
}

// bind makes c the authoritative connection for playerID and returns the
// previous connection, if a different one was still bound.
func (s *sessionRegistry) bind(playerID string, c *client) *client {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.byPlayer[playerID]
	s.byPlayer[playerID] = c
	if old == c {
		return nil
	}
	return old
}

// unbind releases the binding, but only if c still owns it. A stale
// connection closing after its player reconnected must not unbind the
// replacement.
func (s *sessionRegistry) unbind(playerID string, c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byPlayer[playerID] != c {
		return false
	}
	delete(s.byPlayer, playerID)
	return true
}

func (s *sessionRegistry) current(playerID string) *client {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byPlayer[playerID]
}

func (s *sessionRegistry) drop(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byPlayer, playerID)
}
