package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
	"github.com/wirechat/gateway-go/internal/events"
	"github.com/wirechat/gateway-go/internal/middleware"
	"github.com/wirechat/gateway-go/internal/model"
)

const sseHeartbeatInterval = 30 * time.Second

// GatewayManager is the session-manager contract this handler fronts.
type GatewayManager interface {
	CreateSession(ctx context.Context, tenantID string) error
	GetState(tenantID string) (model.ConnectionState, error)
	GetPairingChallenge(tenantID string) ([]byte, error)
	RequestDisconnect(ctx context.Context, tenantID string) error
	SendText(ctx context.Context, tenantID, to, body string) error
}

type SessionHandler struct {
	manager GatewayManager
	broker  *events.Broker
}

func NewSessionHandler(manager GatewayManager, broker *events.Broker) *SessionHandler {
	return &SessionHandler{manager: manager, broker: broker}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/session", h.CreateSession)
	r.Get("/session", h.GetSession)
	r.Get("/session/qr", h.GetPairingChallenge)
	r.Get("/session/events", h.StreamEvents)
	r.Delete("/session", h.Disconnect)
	r.Post("/messages", h.SendMessage)

	return r
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	if err := h.manager.CreateSession(r.Context(), org.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"tenantId": org.ID,
		"state":    model.ConnectionStateConnecting,
	})
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	state, err := h.manager.GetState(org.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenantId": org.ID,
		"state":    state,
		"terminal": state.Terminal(),
	})
}

func (h *SessionHandler) GetPairingChallenge(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	challenge, err := h.manager.GetPairingChallenge(org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if challenge == nil {
		writeError(w, apperrors.NotFound("pairing challenge"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"challenge": base64.StdEncoding.EncodeToString(challenge),
	})
}

func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	if err := h.manager.RequestDisconnect(r.Context(), org.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "disconnected"})
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid JSON body"))
		return
	}
	if req.To == "" || req.Text == "" {
		writeError(w, apperrors.Validation("to and text are required"))
		return
	}

	if err := h.manager.SendText(r.Context(), org.ID, req.To, req.Text); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}

// StreamEvents pushes lifecycle events over SSE so a pairing UI can show
// the QR and flip to connected without polling.
func (h *SessionHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	eventCh, cancel := h.broker.Subscribe(r.Context(), org.ID)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case event, open := <-eventCh:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("events handler: marshal event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
