package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/gateway-go/internal/model"
)

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindOpenByCustomerID(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	args := m.Called(ctx, tenantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Create(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	args := m.Called(ctx, tenantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockConversationRepo) Close(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockConversationRepo) CloseIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountByTenantIDSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Int(0), args.Error(1)
}

type mockCustomerRepo struct {
	mock.Mock
}

func (m *mockCustomerRepo) Upsert(ctx context.Context, params model.UpsertCustomerParams) (*model.Customer, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *mockCustomerRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func newConversationFixture() (*ConversationHandler, *mockConversationRepo, *mockMessageRepo, *mockCustomerRepo) {
	conversations := new(mockConversationRepo)
	messages := new(mockMessageRepo)
	customers := new(mockCustomerRepo)
	return NewConversationHandler(conversations, messages, customers), conversations, messages, customers
}

func ownedConv() *model.Conversation {
	return &model.Conversation{
		ID:         "conv-1",
		TenantID:   "org-1",
		CustomerID: "cust-1",
		Status:     model.ConversationStatusOpen,
	}
}

func TestListMessages(t *testing.T) {
	h, conversations, messages, _ := newConversationFixture()

	conversations.On("FindByID", mock.Anything, "conv-1").Return(ownedConv(), nil)
	messages.On("FindByConversationID", mock.Anything, "conv-1", 50, 0).
		Return([]model.Message{{ID: "msg-1", Body: "hello"}}, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/conv-1/messages", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "conv-1", body["conversationId"])
	assert.Len(t, body["messages"], 1)
	messages.AssertExpectations(t)
}

func TestListMessagesPagination(t *testing.T) {
	h, conversations, messages, _ := newConversationFixture()

	conversations.On("FindByID", mock.Anything, "conv-1").Return(ownedConv(), nil)
	// Requested limit above the cap is clamped, offset passes through.
	messages.On("FindByConversationID", mock.Anything, "conv-1", 200, 30).
		Return([]model.Message{}, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/conv-1/messages?limit=500&offset=30", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestListMessagesRejectsBadPagination(t *testing.T) {
	for _, query := range []string{"?limit=0", "?limit=abc", "?offset=-1"} {
		h, conversations, messages, _ := newConversationFixture()
		conversations.On("FindByID", mock.Anything, "conv-1").Return(ownedConv(), nil)

		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/conv-1/messages"+query, ""))

		require.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
		messages.AssertNotCalled(t, "FindByConversationID",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestListMessagesUnknownConversation(t *testing.T) {
	h, conversations, _, _ := newConversationFixture()
	conversations.On("FindByID", mock.Anything, "conv-unknown").Return(nil, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/conv-unknown/messages", ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessagesOtherTenantReadsAsAbsent(t *testing.T) {
	h, conversations, messages, _ := newConversationFixture()

	foreign := ownedConv()
	foreign.TenantID = "org-2"
	conversations.On("FindByID", mock.Anything, "conv-1").Return(foreign, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/conv-1/messages", ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
	messages.AssertNotCalled(t, "FindByConversationID",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseConversation(t *testing.T) {
	h, conversations, _, _ := newConversationFixture()

	conversations.On("FindByID", mock.Anything, "conv-1").Return(ownedConv(), nil)
	conversations.On("Close", mock.Anything, "conv-1").Return(nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/conv-1/close", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(model.ConversationStatusClosed), body["status"])
	conversations.AssertExpectations(t)
}

func TestCloseConversationUnknown(t *testing.T) {
	h, conversations, _, _ := newConversationFixture()
	conversations.On("FindByID", mock.Anything, "conv-unknown").Return(nil, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/conv-unknown/close", ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
	conversations.AssertNotCalled(t, "Close", mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	h, _, messages, customers := newConversationFixture()

	customers.On("CountByTenantID", mock.Anything, "org-1").Return(12, nil)
	messages.On("CountByTenantIDSince", mock.Anything, "org-1", mock.AnythingOfType("time.Time")).
		Return(34, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, authedRequest(http.MethodGet, "/stats", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(12), body["customers"])
	assert.Equal(t, float64(34), body["messagesLast24h"])
}
