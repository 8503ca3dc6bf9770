package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	datastar "github.com/starfederation/datastar-go/datastar"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"impostor/internal/game"
)

const watchHeartbeat = 30 * time.Second

// StreamRoom streams the public room snapshot as datastar signal patches,
// for lobby screens and TV displays. Only public events reach the bus.
func (h *Handler) StreamRoom(w http.ResponseWriter, r *http.Request) {
	roomCode := game.NormalizeCode(chi.URLParam(r, "code"))

	room, err := h.store.GetRoom(roomCode)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	// Subscribe before the first patch so nothing in between is missed
	events := h.eventBus.Subscribe(roomCode)
	defer h.eventBus.Unsubscribe(roomCode, events)

	sse := datastar.NewSSE(w, r)
	log.Debug().Str("room", roomCode).Msg("room watcher connected")

	if err := sse.MarshalAndPatchSignals(map[string]interface{}{
		"room":  room.Snapshot(),
		"event": "",
	}); err != nil {
		log.Debug().Err(err).Str("room", roomCode).Msg("failed to send initial room state")
		return
	}

	heartbeat := time.NewTicker(watchHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("room", roomCode).Msg("room watcher disconnected")
			return
		case <-heartbeat.C:
			if _, err := h.store.GetRoom(roomCode); err != nil {
				return
			}
			if err := sse.Send("keepalive", []string{fmt.Sprintf(`{"time":"%s"}`, time.Now().Format(time.RFC3339))}); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			current, err := h.store.GetRoom(roomCode)
			if err != nil || current != room {
				// room closed; tell the page and stop
				sse.MarshalAndPatchSignals(map[string]interface{}{"room": nil, "event": "room-closed"})
				return
			}

			signals := map[string]interface{}{"event": string(event.Type)}
			switch event.Type {
			case game.EventTimerUpdate:
				signals["timer"] = event.Data
			case game.EventChatMessage, game.EventHintReceived:
				signals["room"] = room.Snapshot()
				signals["last"] = event.Data
			default:
				signals["room"] = room.Snapshot()
			}
			if err := sse.MarshalAndPatchSignals(signals); err != nil {
				log.Debug().Err(err).Str("room", roomCode).Msg("room watcher send failed")
				return
			}
		}
	}
}

// RoomQR renders a PNG QR code linking to the room's join page.
func (h *Handler) RoomQR(w http.ResponseWriter, r *http.Request) {
	room, err := h.store.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	png, err := generateQRCode(h.joinURL(r, room.Code))
	if err != nil {
		log.Error().Err(err).Str("room", room.Code).Msg("failed to generate QR code")
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// generateQRCode generates a PNG QR code for the given URL
func generateQRCode(url string) ([]byte, error) {
	// Create QR code with medium error correction level
	qrc, err := qrcode.NewWith(url,
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	var buf bytes.Buffer
	writer := standard.NewWithWriter(nopCloser{&buf},
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8), // 8 pixels per module
	)
	if err := qrc.Save(writer); err != nil {
		return nil, fmt.Errorf("failed to save QR code: %w", err)
	}
	return buf.Bytes(), nil
}

// joinURL builds the link encoded in the QR code.
func (h *Handler) joinURL(r *http.Request, code string) string {
	base := strings.TrimSuffix(h.config.Server.PublicBaseURL, "/")
	if base == "" {
		base = getBaseURL(r)
	}
	return base + "/join/" + code
}

// getBaseURL constructs the base URL from the request
func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
