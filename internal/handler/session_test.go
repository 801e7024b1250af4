package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
	"github.com/wirechat/gateway-go/internal/middleware"
	"github.com/wirechat/gateway-go/internal/model"
)

type mockManager struct {
	mock.Mock
}

func (m *mockManager) CreateSession(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockManager) GetState(tenantID string) (model.ConnectionState, error) {
	args := m.Called(tenantID)
	return args.Get(0).(model.ConnectionState), args.Error(1)
}

func (m *mockManager) GetPairingChallenge(tenantID string) ([]byte, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockManager) RequestDisconnect(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockManager) SendText(ctx context.Context, tenantID, to, body string) error {
	args := m.Called(ctx, tenantID, to, body)
	return args.Error(0)
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	org := &model.Organization{ID: "org-1", Name: "Test Org"}
	ctx := context.WithValue(req.Context(), middleware.OrganizationContextKey, org)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCreateSession(t *testing.T) {
	manager := new(mockManager)
	manager.On("CreateSession", mock.Anything, "org-1").Return(nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.CreateSession(rec, authedRequest(http.MethodPost, "/session", ""))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "org-1", body["tenantId"])
	assert.Equal(t, string(model.ConnectionStateConnecting), body["state"])
	manager.AssertExpectations(t)
}

func TestCreateSessionConflict(t *testing.T) {
	manager := new(mockManager)
	manager.On("CreateSession", mock.Anything, "org-1").
		Return(apperrors.AlreadyExists("session"))
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.CreateSession(rec, authedRequest(http.MethodPost, "/session", ""))

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeAlreadyExists), body["code"])
}

func TestGetSession(t *testing.T) {
	manager := new(mockManager)
	manager.On("GetState", "org-1").Return(model.ConnectionStateOpen, nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.GetSession(rec, authedRequest(http.MethodGet, "/session", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(model.ConnectionStateOpen), body["state"])
	assert.Equal(t, false, body["terminal"])
}

func TestGetSessionTerminalState(t *testing.T) {
	manager := new(mockManager)
	manager.On("GetState", "org-1").Return(model.ConnectionStateLoggedOut, nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.GetSession(rec, authedRequest(http.MethodGet, "/session", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["terminal"])
}

func TestGetSessionNotFound(t *testing.T) {
	manager := new(mockManager)
	manager.On("GetState", "org-1").Return(model.ConnectionState(""), apperrors.NotFound("session"))
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.GetSession(rec, authedRequest(http.MethodGet, "/session", ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPairingChallenge(t *testing.T) {
	manager := new(mockManager)
	challenge := []byte("2@pairing-blob")
	manager.On("GetPairingChallenge", "org-1").Return(challenge, nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.GetPairingChallenge(rec, authedRequest(http.MethodGet, "/session/qr", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, base64.StdEncoding.EncodeToString(challenge), body["challenge"])
}

func TestGetPairingChallengeNonePending(t *testing.T) {
	manager := new(mockManager)
	manager.On("GetPairingChallenge", "org-1").Return(nil, nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.GetPairingChallenge(rec, authedRequest(http.MethodGet, "/session/qr", ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisconnect(t *testing.T) {
	manager := new(mockManager)
	manager.On("RequestDisconnect", mock.Anything, "org-1").Return(nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.Disconnect(rec, authedRequest(http.MethodDelete, "/session", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decodeBody(t, rec)["status"])
	manager.AssertExpectations(t)
}

func TestSendMessage(t *testing.T) {
	manager := new(mockManager)
	manager.On("SendText", mock.Anything, "org-1", "12345@c.us", "hello").Return(nil)
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.SendMessage(rec, authedRequest(http.MethodPost, "/messages",
		`{"to":"12345@c.us","text":"hello"}`))

	require.Equal(t, http.StatusAccepted, rec.Code)
	manager.AssertExpectations(t)
}

func TestSendMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing to", `{"text":"hello"}`},
		{"missing text", `{"to":"12345@c.us"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := new(mockManager)
			h := NewSessionHandler(manager, nil)

			rec := httptest.NewRecorder()
			h.SendMessage(rec, authedRequest(http.MethodPost, "/messages", tt.body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			manager.AssertNotCalled(t, "SendText",
				mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSendMessageSessionNotReady(t *testing.T) {
	manager := new(mockManager)
	manager.On("SendText", mock.Anything, "org-1", "12345@c.us", "hello").
		Return(apperrors.NotReady("session is not open"))
	h := NewSessionHandler(manager, nil)

	rec := httptest.NewRecorder()
	h.SendMessage(rec, authedRequest(http.MethodPost, "/messages",
		`{"to":"12345@c.us","text":"hello"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeNotReady), body["code"])
}
