package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"impostor/internal/game"
)

// RoomStatus answers the room lookup used by join screens.
type RoomStatus struct {
	Exists      bool `json:"exists"`
	PlayerCount int  `json:"playerCount"`
	MaxPlayers  int  `json:"maxPlayers"`
	Full        bool `json:"full"`
	InGame      bool `json:"inGame"`
}

// Readiness is the /health/ready body.
type Readiness struct {
	Status           string `json:"status"`
	Rooms            int    `json:"rooms"`
	LocalSessions    int    `json:"localSessions"`
	ConnectedPlayers int    `json:"connectedPlayers"`
	Connections      int    `json:"connections"`
}

// GetRoomStatus reports whether a room exists and can be joined.
func (h *Handler) GetRoomStatus(w http.ResponseWriter, r *http.Request) {
	room, err := h.store.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		writeJSON(w, http.StatusOK, RoomStatus{})
		return
	}

	count, limit := room.PlayerCount(), room.MaxPlayers()
	writeJSON(w, http.StatusOK, RoomStatus{
		Exists:      true,
		PlayerCount: count,
		MaxPlayers:  limit,
		Full:        count >= limit,
		InGame:      room.InGame(),
	})
}

// ListCategories returns the category summaries, never the words.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	summaries := []game.CategorySummary{}
	if h.catalog != nil {
		summaries = h.catalog.Summaries()
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": summaries})
}

// Live always answers while the process serves HTTP.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Ready reports registry counts. It fails without a category catalog.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.catalog == nil || h.catalog.Len() == 0 {
		status, code = "no categories loaded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, Readiness{
		Status:           status,
		Rooms:            h.store.RoomCount(),
		LocalSessions:    h.store.SessionCount(),
		ConnectedPlayers: h.store.ConnectedPlayerCount(),
		Connections:      h.hub.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrRoomFull), errors.Is(err, game.ErrInvalidPhase), errors.Is(err, game.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, game.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, game.ErrNotEnoughPlayers), errors.Is(err, game.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
