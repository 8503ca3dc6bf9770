package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"impostor/internal/game"
	"impostor/internal/local"
)

// LocalResponse is the body of every pass-and-play endpoint.
type LocalResponse struct {
	Success    bool                   `json:"success"`
	Session    *local.View            `json:"session,omitempty"`
	RoleInfo   *local.RoleInfo        `json:"roleInfo,omitempty"`
	Voter      *local.VoterInfo       `json:"voter,omitempty"`
	Player     *local.Player          `json:"player,omitempty"`
	Categories []game.CategorySummary `json:"categories,omitempty"`
	Error      *WireError             `json:"error,omitempty"`
}

type playerIDPayload struct {
	PlayerID string `json:"playerId"`
}

type eliminatePayload struct {
	TargetID *string `json:"targetId"`
}

// CreateLocalSession opens a pass-and-play session.
func (h *Handler) CreateLocalSession(w http.ResponseWriter, r *http.Request) {
	sess := h.store.CreateSession()
	view := sess.Snapshot()

	resp := LocalResponse{Success: true, Session: &view}
	if h.catalog != nil {
		resp.Categories = h.catalog.Summaries()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetLocalSession returns the shared-screen view plus whatever the device
// holder may see right now.
func (h *Handler) GetLocalSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		writeLocalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, localState(sess))
}

// DeleteLocalSession ends a session.
func (h *Handler) DeleteLocalSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetSession(id); err != nil {
		writeLocalError(w, err)
		return
	}
	h.store.DeleteSession(id)
	log.Info().Str("session", id).Msg("local session ended")
	writeJSON(w, http.StatusOK, LocalResponse{Success: true})
}

// LocalIntent runs one pass-and-play intent.
func (h *Handler) LocalIntent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		writeLocalError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeLocalError(w, fmt.Errorf("%w: unreadable body", game.ErrInvalidInput))
		return
	}

	intent := chi.URLParam(r, "intent")
	added, err := runLocalIntent(sess, intent, body)
	if err != nil {
		log.Debug().Err(err).Str("session", sess.ID).Str("intent", intent).Msg("local intent rejected")
		writeLocalError(w, err)
		return
	}

	resp := localState(sess)
	resp.Player = added
	writeJSON(w, http.StatusOK, resp)
}

// runLocalIntent dispatches to the session. add-player also returns the new
// seat.
func runLocalIntent(sess *local.Session, intent string, body []byte) (*local.Player, error) {
	raw := json.RawMessage(body)
	switch intent {
	case "add-player":
		var p namePayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		player, err := sess.AddPlayer(p.Name)
		if err != nil {
			return nil, err
		}
		return &player, nil
	case "remove-player":
		var p playerIDPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return nil, sess.RemovePlayer(p.PlayerID)
	case "shuffle":
		return nil, sess.Shuffle()
	case "update-settings":
		var patch local.SettingsPatch
		if err := decodePayload(raw, &patch); err != nil {
			return nil, err
		}
		return nil, sess.UpdateSettings(patch)
	case "start-game":
		return nil, sess.Start()
	case "start-reveal":
		return nil, sess.StartReveal()
	case "player-ready":
		return nil, sess.PlayerReady()
	case "confirm-reveal":
		return nil, sess.ConfirmReveal()
	case "next-turn":
		return nil, sess.NextTurn()
	case "start-voting":
		return nil, sess.StartVoting()
	case "voter-ready":
		return nil, sess.VoterReady()
	case "submit-vote":
		var p targetPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return nil, sess.SubmitVote(p.TargetID)
	case "host-eliminate":
		var p eliminatePayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		target := ""
		if p.TargetID != nil {
			target = *p.TargetID
		}
		return nil, sess.HostEliminate(target)
	case "continue-game":
		return nil, sess.ContinueGame()
	case "play-again":
		return nil, sess.PlayAgain()
	}
	return nil, fmt.Errorf("%w: unknown intent %q", game.ErrNotFound, intent)
}

func localState(sess *local.Session) LocalResponse {
	view := sess.Snapshot()
	resp := LocalResponse{Success: true, Session: &view}
	if info, err := sess.RoleInfo(); err == nil {
		resp.RoleInfo = &info
	}
	if voter, err := sess.Voter(); err == nil {
		resp.Voter = &voter
	}
	return resp
}

func writeLocalError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), LocalResponse{Error: wireError(err)})
}
