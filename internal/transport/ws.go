package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/config"
	"github.com/wirechat/gateway-go/internal/model"
)

// Close code the network uses when it revokes a device session.
const closeCodeAuthRevoked = 4401

type frame struct {
	Type       string          `json:"type"`
	TenantID   string          `json:"tenantId,omitempty"`
	Credential json.RawMessage `json:"credential,omitempty"`
	Version    int             `json:"version,omitempty"`
	Challenge  string          `json:"challenge,omitempty"`
	To         string          `json:"to,omitempty"`
	Body       string          `json:"body,omitempty"`
	Message    *wireMessage    `json:"message,omitempty"`
}

type wireMessage struct {
	ID       string  `json:"id"`
	From     string  `json:"from"`
	FromName *string `json:"fromName,omitempty"`
	Body     string  `json:"body"`
	Kind     string  `json:"kind"`
	SentAt   int64   `json:"sentAt"`
}

// WSDialer dials the chat network's websocket endpoint.
type WSDialer struct {
	url string
}

func NewWSDialer(url string) *WSDialer {
	return &WSDialer{url: url}
}

func (d *WSDialer) Dial(ctx context.Context, tenantID string, cred *model.Credential) (Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: config.SocketDialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	conn, _, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws connect: %w", err)
	}
	conn.SetReadLimit(config.SocketReadLimit)

	s := &wsSocket{
		tenantID: tenantID,
		conn:     conn,
		events:   make(chan Event, config.SocketEventBuffer),
		done:     make(chan struct{}),
	}

	auth := frame{Type: "auth", TenantID: tenantID}
	if cred != nil {
		auth.Credential = cred.Blob
		auth.Version = cred.Version
	}
	if err := s.writeFrame(auth); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ws auth: %w", err)
	}

	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

type wsSocket struct {
	tenantID string
	conn     *websocket.Conn
	events   chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (s *wsSocket) Events() <-chan Event {
	return s.events
}

func (s *wsSocket) SendText(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFrame(frame{Type: "send", To: to, Body: body})
}

func (s *wsSocket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

func (s *wsSocket) writeFrame(f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(config.SocketWriteTimeout)); err != nil {
		_ = s.conn.Close()
		return err
	}
	defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()

	if err := s.conn.WriteJSON(f); err != nil {
		_ = s.conn.Close()
		return err
	}
	return nil
}

// readLoop converts wire frames into Events. It owns the events channel:
// exactly one ClosedEvent is delivered before the channel closes.
func (s *wsSocket) readLoop() {
	defer close(s.events)

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.emit(ClosedEvent{Reason: classifyCloseError(err), Err: err})
			return
		}

		switch f.Type {
		case "qr":
			challenge, err := base64.StdEncoding.DecodeString(f.Challenge)
			if err != nil {
				log.Warn().Str("tenantId", s.tenantID).Err(err).Msg("transport: malformed pairing challenge")
				continue
			}
			s.emit(PairingEvent{Challenge: challenge})

		case "open":
			s.emit(OpenEvent{})

		case "credential":
			s.emit(CredentialEvent{Credential: model.Credential{
				Blob:    f.Credential,
				Version: f.Version,
			}})

		case "message":
			if f.Message == nil {
				continue
			}
			s.emit(MessageEvent{Message: InboundMessage{
				ExternalID:    f.Message.ID,
				SenderAddress: f.Message.From,
				SenderName:    f.Message.FromName,
				Body:          f.Message.Body,
				RawKind:       f.Message.Kind,
				SentAt:        time.UnixMilli(f.Message.SentAt),
			}})

		case "logged_out":
			s.emit(ClosedEvent{Reason: CloseReasonLoggedOut})
			_ = s.Close()
			return

		default:
			log.Debug().Str("tenantId", s.tenantID).Str("frameType", f.Type).Msg("transport: ignoring unknown frame")
		}
	}
}

func (s *wsSocket) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// pingLoop keeps the connection alive. A peer that stops answering pings
// fails the next read with a timeout, which surfaces as a transient close.
func (s *wsSocket) pingLoop() {
	ticker := time.NewTicker(config.SocketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(config.SocketWriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				_ = s.Close()
				return
			}
		}
	}
}

func classifyCloseError(err error) CloseReason {
	if websocket.IsCloseError(err, closeCodeAuthRevoked, websocket.ClosePolicyViolation) {
		return CloseReasonLoggedOut
	}
	return CloseReasonTransient
}
