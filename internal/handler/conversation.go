package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
	"github.com/wirechat/gateway-go/internal/middleware"
	"github.com/wirechat/gateway-go/internal/model"
	"github.com/wirechat/gateway-go/internal/repository"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
	statsWindow            = 24 * time.Hour
)

// ConversationHandler exposes the business records the ingestion pipeline
// writes: message history per conversation, manual conversation close, and
// per-tenant activity counters.
type ConversationHandler struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	customers     repository.CustomerRepository
}

func NewConversationHandler(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	customers repository.CustomerRepository,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		customers:     customers,
	}
}

func (h *ConversationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{conversationID}/messages", h.ListMessages)
	r.Post("/{conversationID}/close", h.CloseConversation)

	return r
}

// ownedConversation loads the conversation and enforces tenant ownership.
// A conversation belonging to another tenant reads as absent.
func (h *ConversationHandler) ownedConversation(r *http.Request) (*model.Conversation, error) {
	org := middleware.GetOrganization(r.Context())

	conv, err := h.conversations.FindByID(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		return nil, apperrors.Database("load conversation", err)
	}
	if conv == nil || conv.TenantID != org.ID {
		return nil, apperrors.NotFound("conversation")
	}
	return conv, nil
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	msgs, err := h.messages.FindByConversationID(r.Context(), conv.ID, limit, offset)
	if err != nil {
		writeError(w, apperrors.Database("list messages", err))
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": conv.ID,
		"status":         conv.Status,
		"messages":       msgs,
	})
}

func (h *ConversationHandler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.conversations.Close(r.Context(), conv.ID); err != nil {
		writeError(w, apperrors.Database("close conversation", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": conv.ID,
		"status":         model.ConversationStatusClosed,
	})
}

// Stats reports recent tenant activity: total customers and messages
// ingested inside the stats window.
func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r.Context())

	customers, err := h.customers.CountByTenantID(r.Context(), org.ID)
	if err != nil {
		writeError(w, apperrors.Database("count customers", err))
		return
	}

	since := time.Now().Add(-statsWindow)
	messages, err := h.messages.CountByTenantIDSince(r.Context(), org.ID, since)
	if err != nil {
		writeError(w, apperrors.Database("count messages", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers":       customers,
		"messagesLast24h": messages,
	})
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultMessagePageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 {
			return 0, 0, apperrors.Validation("limit must be a positive integer")
		}
		if n > maxMessagePageSize {
			n = maxMessagePageSize
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return 0, 0, apperrors.Validation("offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}
