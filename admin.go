/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const adminTokenTTL = 12 * time.Hour

// Read-only operator feed plus the thin auth endpoints in front of it, and
// the ingest endpoint for external audience vote tallies. Nothing routed
// here can mutate game rules.

func registerAPI(cfg *Config, s *roomStore, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/api/rooms", serveRoomDirectory(cfg, s))
	mux.POST(cfg.prefix+"/api/audience/votes", serveAudienceVotes(cfg, s))

	if cfg.adminPasswordHash != "" {
		mux.POST(cfg.prefix+"/api/admin/login", serveAdminLogin(cfg))
		mux.GET(cfg.prefix+"/api/admin/stats", requireOperator(cfg, serveAdminStats(cfg, s)))
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveRoomDirectory(cfg *Config, s *roomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, s.listRooms())
	}
}

func serveAdminLogin(cfg *Config) httprouter.Handle {
	type loginRequest struct {
		Password string `json:"password"`
	}
	type loginResponse struct {
		Token string `json:"token"`
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}

		match, err := argon2id.ComparePasswordAndHash(req.Password, cfg.adminPasswordHash)
		if err != nil || !match {
			log.Info().Str("remote", realIP(r)).Msg("rejected operator login")
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]string{"error": "wrong password"})
			return
		}

		now := time.Now()
		claims := jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.adminTokenSecret))
		if err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]string{"error": "token signing failed"})
			return
		}

		writeJSON(cfg, w, http.StatusOK, loginResponse{Token: token})
	}
}

func requireOperator(cfg *Config, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.adminTokenSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject != "operator" {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		next(w, r, p)
	}
}

type adminRoomStats struct {
	Code                string    `json:"code"`
	Phase               Phase     `json:"phase"`
	PlayerCount         int       `json:"playerCount"`
	ConnectedCount      int       `json:"connectedCount"`
	DarkCardsRemaining  int       `json:"darkCardsRemaining"`
	LightCardsRemaining int       `json:"lightCardsRemaining"`
	Winner              Team      `json:"winner,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

type adminStats struct {
	Rooms       int              `json:"rooms"`
	Players     int              `json:"players"`
	Connections int              `json:"connections"`
	RoomList    []adminRoomStats `json:"roomList"`
}

// statsSnapshot aggregates the live table for the operator view without
// touching any game state.
func (s *roomStore) statsSnapshot() adminStats {
	s.mu.Lock()
	rooms := make([]*RoomState, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()

	stats := adminStats{RoomList: make([]adminRoomStats, 0, len(rooms))}
	for _, room := range rooms {
		room.mu.Lock()
		if room.closed {
			room.mu.Unlock()
			continue
		}
		connected := len(room.clients)
		stats.Rooms++
		stats.Players += len(room.Players)
		stats.Connections += connected
		stats.RoomList = append(stats.RoomList, adminRoomStats{
			Code:                room.Code,
			Phase:               room.Phase,
			PlayerCount:         len(room.Players),
			ConnectedCount:      connected,
			DarkCardsRemaining:  room.DarkCardsRemaining,
			LightCardsRemaining: room.LightCardsRemaining,
			Winner:              room.Winner,
			CreatedAt:           room.CreatedAt,
		})
		room.mu.Unlock()
	}

	return stats
}

func serveAdminStats(cfg *Config, s *roomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, s.statsSnapshot())
	}
}

// serveAudienceVotes accepts aggregated like/dislike tallies from the
// external chat service. Advisory only: tallies are attached to players and
// echoed to the room, never consulted by game rules, and only accepted while
// the room is mid-introduction.
func serveAudienceVotes(cfg *Config, s *roomStore) httprouter.Handle {
	type voteRequest struct {
		RoomCode string `json:"roomCode"`
		PlayerID string `json:"playerId"`
		Likes    int    `json:"likes"`
		Dislikes int    `json:"dislikes"`
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if cfg.audienceToken == "" || r.Header.Get("X-Audience-Token") != cfg.audienceToken {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]string{"error": "bad audience token"})
			return
		}

		var req voteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Likes < 0 || req.Dislikes < 0 {
			writeJSON(cfg, w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}

		room := s.room(strings.ToUpper(req.RoomCode))
		if room == nil {
			writeJSON(cfg, w, http.StatusNotFound, map[string]string{"error": "room not found"})
			return
		}

		room.mu.Lock()
		defer room.mu.Unlock()

		if room.Phase != PhaseIntroduction {
			writeJSON(cfg, w, http.StatusConflict, map[string]string{"error": "room is not in introduction"})
			return
		}
		if room.playerByID(req.PlayerID) == nil {
			writeJSON(cfg, w, http.StatusNotFound, map[string]string{"error": "player not found"})
			return
		}

		room.votes[req.PlayerID] = &AudienceTally{Likes: req.Likes, Dislikes: req.Dislikes}
		broadcastEventLocked(room, "audience_votes", audienceVotesPayload{
			PlayerID: req.PlayerID,
			Likes:    req.Likes,
			Dislikes: req.Dislikes,
		})

		writeJSON(cfg, w, http.StatusAccepted, map[string]string{"status": "ok"})
	}
}
