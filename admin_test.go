package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminTestMux(t *testing.T, cfg *Config) (*httprouter.Router, *roomStore) {
	t.Helper()

	deck, err := loadWordDeck(cfg)
	require.NoError(t, err)

	store := newRoomStore(cfg, deck)
	mux := httprouter.New()
	registerAPI(cfg, store, mux)

	return mux, store
}

func adminTestConfig(t *testing.T, password string) *Config {
	t.Helper()

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)

	return &Config{
		adminPasswordHash: hash,
		adminTokenSecret:  "unit-test-secret",
		audienceToken:     "stream-relay-token",
		clueSeconds:       90 * time.Second,
		guessSeconds:      60 * time.Second,
		sweepInterval:     time.Minute,
	}
}

func postJSON(mux *httprouter.Router, path string, body any, header http.Header) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	for k, vs := range header {
		req.Header[k] = vs
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminLogin(t *testing.T) {
	cfg := adminTestConfig(t, "open sesame")
	mux, _ := adminTestMux(t, cfg)

	t.Run("wrong password", func(t *testing.T) {
		rec := postJSON(mux, "/api/admin/login", map[string]string{"password": "guess"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader([]byte(`{"password":`)))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("correct password yields a token", func(t *testing.T) {
		rec := postJSON(mux, "/api/admin/login", map[string]string{"password": "open sesame"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})
}

func TestAdminStatsAuth(t *testing.T) {
	cfg := adminTestConfig(t, "open sesame")
	mux, store := adminTestMux(t, cfg)

	room, _ := store.createRoom(testClient(), "Ayşe", "", false)

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get("").Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get("not-a-jwt").Code)
	})

	t.Run("valid token sees the live table", func(t *testing.T) {
		rec := postJSON(mux, "/api/admin/login", map[string]string{"password": "open sesame"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var login struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

		statsRec := get(login.Token)
		require.Equal(t, http.StatusOK, statsRec.Code)

		var stats adminStats
		require.NoError(t, json.Unmarshal(statsRec.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.Rooms)
		assert.Equal(t, 1, stats.Players)
		assert.Equal(t, 1, stats.Connections)
		require.Len(t, stats.RoomList, 1)
		assert.Equal(t, room.Code, stats.RoomList[0].Code)
		assert.Equal(t, PhaseLobby, stats.RoomList[0].Phase)
	})
}

func TestAdminRoutesAbsentWithoutHash(t *testing.T) {
	cfg := &Config{
		audienceToken: "stream-relay-token",
		clueSeconds:   90 * time.Second,
		guessSeconds:  60 * time.Second,
		sweepInterval: time.Minute,
	}
	mux, _ := adminTestMux(t, cfg)

	rec := postJSON(mux, "/api/admin/login", map[string]string{"password": "anything"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	statsRec := httptest.NewRecorder()
	mux.ServeHTTP(statsRec, req)
	assert.Equal(t, http.StatusNotFound, statsRec.Code)
}

func TestRoomDirectory(t *testing.T) {
	cfg := adminTestConfig(t, "open sesame")
	mux, store := adminTestMux(t, cfg)

	open, _ := store.createRoom(testClient(), "Ayşe", "", false)
	locked, _ := store.createRoom(testClient(), "Mert", "hunter2", false)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listings []roomListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 2)

	byCode := make(map[string]roomListing, len(listings))
	for _, l := range listings {
		byCode[l.Code] = l
	}
	assert.False(t, byCode[open.Code].HasPassword)
	assert.True(t, byCode[locked.Code].HasPassword)
	assert.Equal(t, 1, byCode[open.Code].PlayerCount)
}

func TestAudienceVotes(t *testing.T) {
	cfg := adminTestConfig(t, "open sesame")
	mux, store := adminTestMux(t, cfg)

	owner := testClient()
	room, player := store.createRoom(owner, "Ayşe", "", false)
	drainMessages(owner)

	tokenHeader := http.Header{"X-Audience-Token": []string{cfg.audienceToken}}
	vote := func(code, playerID string, likes, dislikes int, header http.Header) *httptest.ResponseRecorder {
		return postJSON(mux, "/api/audience/votes", map[string]any{
			"roomCode": code,
			"playerId": playerID,
			"likes":    likes,
			"dislikes": dislikes,
		}, header)
	}

	t.Run("missing audience token", func(t *testing.T) {
		rec := vote(room.Code, player.ID, 3, 1, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown room", func(t *testing.T) {
		rec := vote("ZZZZZZ", player.ID, 3, 1, tokenHeader)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejected outside introduction", func(t *testing.T) {
		rec := vote(room.Code, player.ID, 3, 1, tokenHeader)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	room.mu.Lock()
	room.Phase = PhaseIntroduction
	room.mu.Unlock()

	t.Run("negative tallies are malformed", func(t *testing.T) {
		rec := vote(room.Code, player.ID, -1, 0, tokenHeader)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown player", func(t *testing.T) {
		rec := vote(room.Code, "p-nobody", 3, 1, tokenHeader)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("tally stored and echoed to the room", func(t *testing.T) {
		rec := vote(room.Code, player.ID, 3, 1, tokenHeader)
		require.Equal(t, http.StatusAccepted, rec.Code)

		room.mu.Lock()
		tally := room.votes[player.ID]
		room.mu.Unlock()
		require.NotNil(t, tally)
		assert.Equal(t, 3, tally.Likes)
		assert.Equal(t, 1, tally.Dislikes)

		msgs := drainMessages(owner)
		require.NotEmpty(t, msgs)
		last := msgs[len(msgs)-1]
		assert.Equal(t, "audience_votes", last.Type)
		echoed, ok := last.Payload.(audienceVotesPayload)
		require.True(t, ok, "unexpected payload %T", last.Payload)
		assert.Equal(t, player.ID, echoed.PlayerID)
	})
}
