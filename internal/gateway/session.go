package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
	"github.com/wirechat/gateway-go/internal/ingest"
	"github.com/wirechat/gateway-go/internal/model"
	"github.com/wirechat/gateway-go/internal/transport"
	"github.com/wirechat/gateway-go/internal/util"
)

// StatusReporter mirrors connection-status changes to the organization
// record. Best-effort: implementations must never block the caller and must
// swallow (log) their own failures.
type StatusReporter interface {
	SetConnectionStatus(tenantID string, status model.ConnectionStatus)
}

// LifecycleNotifier pushes lifecycle events (fresh pairing challenge, state
// changes) to interested API clients. Fire-and-forget like StatusReporter.
type LifecycleNotifier interface {
	NotifyPairing(tenantID string, challenge []byte)
	NotifyState(tenantID string, state model.ConnectionState)
}

// Ingestor consumes inbound messages from sessions.
type Ingestor interface {
	Ingest(ctx context.Context, tenantID string, msg transport.InboundMessage) (ingest.Outcome, error)
}

// SessionDeps are the collaborators a session needs. Shared by all sessions;
// everything here must be safe for concurrent use across tenants.
type SessionDeps struct {
	Dialer   transport.Dialer
	Creds    CredentialStore
	Status   StatusReporter
	Notifier LifecycleNotifier
	Ingestor Ingestor
	Backoff  Backoff

	// DialTimeout bounds one socket establishment attempt.
	DialTimeout time.Duration
	// SideEffectTimeout bounds credential writes and message ingestion
	// triggered from the event loop.
	SideEffectTimeout time.Duration

	// OnTerminal is invoked (once) after the session reaches a terminal
	// state, so the registry can drop it.
	OnTerminal func(tenantID string)
}

// Session owns one tenant's connection lifecycle. All record fields are
// mutated only under mu by the session's own event handling; the registry
// never reaches into them.
//
// Every entry into the connecting state bumps the generation counter.
// Asynchronous work (a dial in flight, a scheduled retry) captures the
// generation at schedule time and discards itself if the session has moved
// on, so two initialization attempts can never interleave.
type Session struct {
	tenantID string
	deps     SessionDeps

	mu           sync.Mutex
	state        model.ConnectionState
	challenge    []byte
	retryCount   int
	lastOpenedAt *time.Time
	generation   uint64
	socket       transport.Socket
	retryTimer   *time.Timer
	closed       bool
}

func NewSession(tenantID string, deps SessionDeps) *Session {
	return &Session{
		tenantID: tenantID,
		deps:     deps,
		state:    model.ConnectionStateIdle,
	}
}

// Start moves the session from idle into its first connection attempt.
// Non-blocking: socket establishment happens on its own goroutine.
func (s *Session) Start() {
	s.mu.Lock()
	if s.state != model.ConnectionStateIdle {
		s.mu.Unlock()
		return
	}
	gen := s.enterConnectingLocked()
	s.mu.Unlock()

	s.deps.Status.SetConnectionStatus(s.tenantID, model.ConnectionStatusPending)
	go s.connect(gen)
}

// State returns the current lifecycle state.
func (s *Session) State() model.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PairingChallenge returns the current challenge, or nil when none is
// pending. The returned slice is a copy.
func (s *Session) PairingChallenge() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		return nil
	}
	out := make([]byte, len(s.challenge))
	copy(out, s.challenge)
	return out
}

// SendText sends a text message through the active socket. Fails fast with
// NOT_READY unless the session is open.
func (s *Session) SendText(ctx context.Context, to, body string) error {
	s.mu.Lock()
	if s.state != model.ConnectionStateOpen || s.socket == nil {
		state := s.state
		s.mu.Unlock()
		return apperrors.NotReady("session is not open").WithDetails(map[string]any{"state": state})
	}
	sock := s.socket
	s.mu.Unlock()

	if err := sock.SendText(ctx, to, body); err != nil {
		return apperrors.Transport("send message", err)
	}
	return nil
}

// Disconnect performs an explicit logout. It wins over any in-flight
// reconnection: the generation bump fences pending retries and dials.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	sock := s.socket
	s.socket = nil
	s.state = model.ConnectionStateClosing
	s.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}

	if err := s.deps.Creds.Clear(ctx, s.tenantID); err != nil {
		log.Error().Str("tenantId", s.tenantID).Err(err).Msg("session: clear credential on logout")
	}

	s.mu.Lock()
	s.state = model.ConnectionStateLoggedOut
	s.challenge = nil
	s.mu.Unlock()

	log.Info().Str("tenantId", s.tenantID).Msg("session logged out")
	s.finishTerminal()
}

// Shutdown tears the socket down without logging out: credentials stay
// persisted so the session can resume after a restart.
func (s *Session) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	sock := s.socket
	s.socket = nil
	s.state = model.ConnectionStateClosing
	s.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
}

// enterConnectingLocked transitions to connecting and returns the new
// generation. Callers must hold mu.
func (s *Session) enterConnectingLocked() uint64 {
	s.generation++
	s.state = model.ConnectionStateConnecting
	return s.generation
}

func (s *Session) connect(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.DialTimeout)
	defer cancel()

	cred, err := s.deps.Creds.Load(ctx, s.tenantID)
	if err != nil {
		// A credential we cannot read is indistinguishable from none:
		// fall through to a fresh pairing flow.
		log.Error().Str("tenantId", s.tenantID).Err(err).Msg("session: load credential")
		cred = nil
	}

	sock, err := s.deps.Dialer.Dial(ctx, s.tenantID, cred)

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		if sock != nil {
			_ = sock.Close()
		}
		return
	}
	if err != nil {
		s.mu.Unlock()
		log.Warn().Str("tenantId", s.tenantID).Err(err).Msg("session: dial failed")
		s.handleClosed(gen, transport.ClosedEvent{Reason: transport.CloseReasonTransient, Err: err})
		return
	}
	s.socket = sock
	s.mu.Unlock()

	go s.consume(sock, gen)
}

// consume drains one socket's event stream. Events are handled in wire
// order; the loop exits on the socket's terminal ClosedEvent.
func (s *Session) consume(sock transport.Socket, gen uint64) {
	for ev := range sock.Events() {
		switch e := ev.(type) {
		case transport.PairingEvent:
			s.handlePairing(gen, e)
		case transport.OpenEvent:
			s.handleOpen(gen)
		case transport.CredentialEvent:
			s.handleCredential(gen, e)
		case transport.MessageEvent:
			s.handleMessage(gen, e)
		case transport.ClosedEvent:
			s.handleClosed(gen, e)
			return
		}
	}
}

func (s *Session) handlePairing(gen uint64, ev transport.PairingEvent) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state = model.ConnectionStateAwaitingPairing
	s.challenge = ev.Challenge
	s.mu.Unlock()

	log.Info().
		Str("tenantId", s.tenantID).
		Str("challenge", util.MaskCode(string(ev.Challenge))).
		Msg("pairing challenge issued")
	s.deps.Notifier.NotifyPairing(s.tenantID, ev.Challenge)
	s.deps.Notifier.NotifyState(s.tenantID, model.ConnectionStateAwaitingPairing)
}

func (s *Session) handleOpen(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	s.state = model.ConnectionStateOpen
	s.challenge = nil
	s.retryCount = 0
	s.lastOpenedAt = &now
	s.mu.Unlock()

	log.Info().Str("tenantId", s.tenantID).Msg("session open")
	s.deps.Status.SetConnectionStatus(s.tenantID, model.ConnectionStatusConnected)
	s.deps.Notifier.NotifyState(s.tenantID, model.ConnectionStateOpen)
}

func (s *Session) handleCredential(gen uint64, ev transport.CredentialEvent) {
	s.mu.Lock()
	stale := s.closed || gen != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.SideEffectTimeout)
	defer cancel()

	if err := s.deps.Creds.Save(ctx, s.tenantID, ev.Credential); err != nil {
		log.Error().Str("tenantId", s.tenantID).Err(err).Msg("session: save rotated credential")
	}
}

func (s *Session) handleMessage(gen uint64, ev transport.MessageEvent) {
	s.mu.Lock()
	stale := s.closed || gen != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.SideEffectTimeout)
	defer cancel()

	outcome, err := s.deps.Ingestor.Ingest(ctx, s.tenantID, ev.Message)
	if err != nil {
		log.Error().
			Str("tenantId", s.tenantID).
			Str("externalId", ev.Message.ExternalID).
			Err(err).
			Msg("session: ingest message")
		return
	}
	log.Debug().
		Str("tenantId", s.tenantID).
		Str("externalId", ev.Message.ExternalID).
		Str("outcome", string(outcome)).
		Msg("message ingested")
}

func (s *Session) handleClosed(gen uint64, ev transport.ClosedEvent) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state = model.ConnectionStateClosing
	s.socket = nil

	if ev.Reason == transport.CloseReasonLoggedOut {
		s.state = model.ConnectionStateLoggedOut
		s.challenge = nil
		s.mu.Unlock()

		log.Warn().Str("tenantId", s.tenantID).Msg("session logged out by network")
		s.clearCredential()
		s.finishTerminal()
		return
	}

	// A session that never completed its first handshake does not retry:
	// an abandoned pairing attempt should not keep redialing on its own.
	if s.lastOpenedAt == nil || !s.deps.Backoff.ShouldRetry(s.retryCount, ev.Reason) {
		s.state = model.ConnectionStateFailed
		s.challenge = nil
		retries := s.retryCount
		s.mu.Unlock()

		log.Warn().
			Str("tenantId", s.tenantID).
			Int("retryCount", retries).
			Err(ev.Err).
			Msg("session failed")
		s.finishTerminal()
		return
	}

	s.retryCount++
	delay := s.deps.Backoff.NextDelay(s.retryCount)
	attempt := s.retryCount
	s.retryTimer = time.AfterFunc(delay, func() { s.retry(gen) })
	s.mu.Unlock()

	log.Info().
		Str("tenantId", s.tenantID).
		Int("retryCount", attempt).
		Dur("delay", delay).
		Err(ev.Err).
		Msg("session reconnecting")
}

// retry fires from the backoff timer. gen is the generation the disconnect
// was observed at; anything newer means the retry was superseded.
func (s *Session) retry(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.retryTimer = nil
	newGen := s.enterConnectingLocked()
	s.mu.Unlock()

	s.connect(newGen)
}

func (s *Session) clearCredential() {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.SideEffectTimeout)
	defer cancel()

	if err := s.deps.Creds.Clear(ctx, s.tenantID); err != nil {
		log.Error().Str("tenantId", s.tenantID).Err(err).Msg("session: clear revoked credential")
	}
}

// finishTerminal reports the terminal status and hands the tenant back to
// the registry. Runs at most once per session by construction: every path
// here is fenced by generation or the closed flag.
func (s *Session) finishTerminal() {
	s.mu.Lock()
	s.closed = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.mu.Unlock()

	s.deps.Status.SetConnectionStatus(s.tenantID, model.ConnectionStatusDisconnected)
	s.deps.Notifier.NotifyState(s.tenantID, s.State())
	if s.deps.OnTerminal != nil {
		s.deps.OnTerminal(s.tenantID)
	}
}
