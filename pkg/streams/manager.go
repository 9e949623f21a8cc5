// Package streams owns the lifecycle of live log-tail sessions against the
// orchestration API: opening, line reassembly, and teardown. It knows
// nothing about client connections; the gateway maps subscriptions onto it.
package streams

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/logging"
	"github.com/clusterdeck/console/pkg/orchestration"
)

// Options tune session behavior.
type Options struct {
	// TailLines bounds the historical snippet fetched before the live tail.
	TailLines int
	// ReadChunk is the live tail read buffer size in bytes.
	ReadChunk int
}

func (o Options) withDefaults() Options {
	if o.TailLines <= 0 {
		o.TailLines = 100
	}
	if o.ReadChunk <= 0 {
		o.ReadChunk = 4096
	}
	return o
}

// Manager is the session registry. All registry mutation happens under mu;
// each session's byte handling happens on its own reader goroutine.
type Manager struct {
	client orchestration.Client
	logger *logging.ColoredLogger
	opts   Options

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a session manager on top of an orchestration client.
func NewManager(client orchestration.Client, logger *logging.ColoredLogger, opts Options) *Manager {
	return &Manager{
		client:   client,
		logger:   logger,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*session),
	}
}

// Start opens a log-tail session for key. An existing session under the
// same id is fully stopped first (replace, never duplicate). On return the
// session is streaming and all historical lines have been emitted; a
// non-nil error means nothing was registered.
//
// ctx bounds the startup calls only; the live tail itself runs until the
// upstream ends, errors, or Stop is called.
func (m *Manager) Start(ctx context.Context, key StreamKey, cb Callbacks) error {
	id := key.ID()

	// Replace semantics: abort the prior session's tail before opening the
	// new one.
	m.Stop(id)

	// Best-effort historical snippet. Failure here must never prevent the
	// live tail from starting.
	historical, err := m.client.FetchRecentLines(ctx, key.Namespace, key.Pod, key.Container, m.opts.TailLines)
	if err != nil {
		m.logger.ComponentWarn(logging.ComponentStreams, "historical fetch failed; continuing with live tail only",
			zap.String("stream_id", id),
			zap.Error(err))
		historical = nil
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	stream, err := m.client.OpenLiveTail(sessCtx, key.Namespace, key.Pod, key.Container)
	if err != nil {
		cancel()
		return fmt.Errorf("open live tail: %w", err)
	}

	s := &session{
		id:     id,
		key:    key,
		mgr:    m,
		cb:     cb,
		ctx:    sessCtx,
		cancel: cancel,
		stream: stream,
	}
	s.setState(stateStarting)

	m.mu.Lock()
	// A racing Start for the same key may have registered between our Stop
	// and here; last writer wins, the loser is torn down.
	if prior, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		prior.teardown()
		m.mu.Lock()
	}
	m.sessions[id] = s
	m.mu.Unlock()

	// Historical lines go out before the reader goroutine exists, so no
	// live line can overtake them.
	for _, line := range historical {
		cb.OnLine(line)
	}

	s.setState(stateStreaming)
	go s.readLoop(m.opts.ReadChunk)

	m.logger.ComponentInfo(logging.ComponentStreams, "session started",
		zap.String("stream_id", id),
		zap.String("namespace", key.Namespace),
		zap.String("pod", key.Pod),
		zap.Int("historical_lines", len(historical)))
	return nil
}

// Stop tears down the session registered under id. Idempotent: unknown or
// already-closed ids succeed silently.
func (m *Manager) Stop(id string) {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	if s == nil {
		return
	}
	s.teardown()
	m.logger.ComponentDebug(logging.ComponentStreams, "session stopped",
		zap.String("stream_id", id))
}

// StopAll tears down every active session; used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	active := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		active = append(active, s)
	}
	m.mu.Unlock()
	for _, s := range active {
		s.teardown()
	}
}

// ActiveSessions reports the number of registered sessions, for
// diagnostics.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// remove deletes the registry entry for s. The identity check keeps a
// replaced session's late teardown from evicting its successor.
func (m *Manager) remove(id string, s *session) {
	m.mu.Lock()
	if current, ok := m.sessions[id]; ok && current == s {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
}
