package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/topology"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
	appmetrics "github.com/BenjaminAGH/NocturneScope/pkg/metrics"
)

// Manager owns the editor sessions of the process. It hands out session ids,
// reaps idle sessions, and propagates configuration reloads to the pollers
// through a shared config snapshot.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	editCfg  config.EditorConfig

	ctx        context.Context
	cancel     context.CancelFunc
	api        UpstreamAPI
	logger     *zap.Logger
	collectors *appmetrics.Collectors
	reaperDone chan struct{}
}

// NewManager creates a session manager and starts its idle reaper.
func NewManager(api UpstreamAPI, editCfg config.EditorConfig, logger *zap.Logger, collectors *appmetrics.Collectors) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:   make(map[string]*Session),
		editCfg:    editCfg,
		ctx:        ctx,
		cancel:     cancel,
		api:        api,
		logger:     logger,
		collectors: collectors,
		reaperDone: make(chan struct{}),
	}
	go m.reapIdle()
	return m
}

// EditorConfig returns the current editor tunables. Sessions call this every
// poll cycle, so a hot reload takes effect within one interval.
func (m *Manager) EditorConfig() config.EditorConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.editCfg
}

// ApplyConfig swaps in reloaded editor tunables.
func (m *Manager) ApplyConfig(editCfg config.EditorConfig) {
	m.mu.Lock()
	m.editCfg = editCfg
	m.mu.Unlock()
	m.logger.Info("editor configuration applied to running sessions")
}

// Open starts a fresh editor session with an empty graph.
func (m *Manager) Open(userID, token string) *Session {
	return m.register(newSession(m.ctx, userID, token, topology.NewGraph(), "", "",
		m.api, m.EditorConfig, m.logger, m.collectors))
}

// OpenTopology starts a session preloaded with a stored topology.
func (m *Manager) OpenTopology(ctx context.Context, userID, token, topologyID string) (*Session, error) {
	record, err := m.api.GetTopology(ctx, token, topologyID)
	if err != nil {
		return nil, err
	}
	graph, err := topology.UnmarshalDocument(record.Data)
	if err != nil {
		return nil, err
	}
	return m.register(newSession(m.ctx, userID, token, graph, record.ID, record.Name,
		m.api, m.EditorConfig, m.logger, m.collectors)), nil
}

func (m *Manager) register(s *Session) *Session {
	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	if m.collectors != nil {
		m.collectors.ActiveSessions.Set(float64(count))
	}
	m.logger.Info("editor session opened", zap.String("session_id", s.ID), zap.Int("open_sessions", count))
	return s
}

// Get returns a session by id, scoped to its owner.
func (m *Manager) Get(sessionID, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}
	s.touch()
	return s, nil
}

// Close shuts one session down, flushing pending changes.
func (m *Manager) Close(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok && s.UserID == userID {
		delete(m.sessions, sessionID)
	} else {
		ok = false
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return pkgerrors.NewSessionNotFound(sessionID)
	}
	s.close(ctx)
	if m.collectors != nil {
		m.collectors.ActiveSessions.Set(float64(count))
	}
	m.logger.Info("editor session closed", zap.String("session_id", sessionID))
	return nil
}

// Shutdown closes every session and stops the reaper.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancel()
	<-m.reaperDone

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close(ctx)
	}
	if m.collectors != nil {
		m.collectors.ActiveSessions.Set(0)
	}
}

// reapIdle closes sessions whose owner walked away without closing the
// editor. Their pollers would otherwise hit the upstream forever.
func (m *Manager) reapIdle() {
	defer close(m.reaperDone)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			idleTimeout := m.EditorConfig().SessionIdleTimeout
			if idleTimeout <= 0 {
				continue
			}
			cutoff := time.Now().Add(-idleTimeout)

			m.mu.Lock()
			var expired []*Session
			for id, s := range m.sessions {
				if s.idleSince().Before(cutoff) {
					expired = append(expired, s)
					delete(m.sessions, id)
				}
			}
			count := len(m.sessions)
			m.mu.Unlock()

			for _, s := range expired {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				s.close(ctx)
				cancel()
				m.logger.Info("idle editor session reaped", zap.String("session_id", s.ID))
			}
			if len(expired) > 0 && m.collectors != nil {
				m.collectors.ActiveSessions.Set(float64(count))
			}
		}
	}
}
