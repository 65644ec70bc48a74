package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/topology"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	appmetrics "github.com/BenjaminAGH/NocturneScope/pkg/metrics"
)

// Session owns one user's open topology editor. All graph access goes
// through the session mutex: handlers mutate, pollers reconcile, autosave
// reads, and none of them see a half-applied change.
type Session struct {
	ID     string
	UserID string

	mu           sync.Mutex
	graph        *topology.Graph
	topologyID   string
	topologyName string
	autoDetect   bool
	dirty        bool
	lastActivity time.Time

	token      string
	api        UpstreamAPI
	cfg        func() config.EditorConfig
	logger     *zap.Logger
	collectors *appmetrics.Collectors

	autosave *autosaver
	cancel   context.CancelFunc
	done     sync.WaitGroup
}

// newSession builds a session around an existing graph and starts its three
// background tasks.
func newSession(parent context.Context, userID, token string, graph *topology.Graph,
	topologyID, topologyName string, api UpstreamAPI, cfg func() config.EditorConfig,
	logger *zap.Logger, collectors *appmetrics.Collectors) *Session {

	s := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		graph:        graph,
		topologyID:   topologyID,
		topologyName: topologyName,
		autoDetect:   cfg().AutoDetectGateways,
		lastActivity: time.Now(),
		token:        token,
		api:          api,
		cfg:          cfg,
		collectors:   collectors,
	}
	s.logger = logger.With(zap.String("session_id", s.ID), zap.String("user_id", userID))
	s.autosave = newAutosaver(s)

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done.Add(2)
	go s.runDevicePoller(ctx)
	go s.runAlertPoller(ctx)

	return s
}

// close stops the pollers and the autosave timer, flushing one final save
// when a saved topology has changes pending. A session the user never saved
// is discarded; closing must not mint records behind their back.
func (s *Session) close(ctx context.Context) {
	s.cancel()
	s.done.Wait()
	s.autosave.stop()

	s.mu.Lock()
	flush := s.dirty && s.topologyID != ""
	s.mu.Unlock()
	if flush {
		if err := s.save(ctx, "auto"); err != nil {
			s.logger.Warn("final save on session close failed", zap.Error(err))
		}
	}
}

// touch records user activity for idle reaping.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// markDirtyLocked flags unsaved changes and (re)arms the autosave timer.
// Autosave only runs once the topology has been saved at least once; until
// then every persisted record is an explicit user decision. Callers must
// hold s.mu.
func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.lastActivity = time.Now()
	if s.topologyID != "" {
		s.autosave.arm(s.cfg().AutosaveDelay)
	}
}

// Snapshot returns the current graph state for rendering.
func (s *Session) Snapshot() ([]topology.Node, []topology.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Nodes(), s.graph.Edges()
}

// Meta returns the persistence identity of the open topology.
func (s *Session) Meta() (topologyID, topologyName string, dirty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topologyID, s.topologyName, s.dirty
}

// AddNode inserts a node into the graph.
func (s *Session) AddNode(node topology.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.AddNode(node); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// MoveNode repositions a node.
func (s *Session) MoveNode(id string, pos topology.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.MoveNode(id, pos); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// SetNodeData replaces a node's configuration payload.
func (s *Session) SetNodeData(id string, data topology.NodeData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.SetNodeData(id, data); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// Connect adds an edge.
func (s *Session) Connect(edge topology.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.Connect(edge); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// RemoveEdges deletes edges by id.
func (s *Session) RemoveEdges(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.RemoveEdges(ids...)
	s.markDirtyLocked()
}

// RemoveNode deletes a node and its incident edges.
func (s *Session) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.RemoveNode(id); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// SetAutoDetect toggles gateway auto-detection for this session.
func (s *Session) SetAutoDetect(enabled bool) {
	s.mu.Lock()
	s.autoDetect = enabled
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// AutoDetect reports the session's gateway detection toggle.
func (s *Session) AutoDetect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoDetect
}

// Rename changes the topology's display name.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topologyName = name
	s.markDirtyLocked()
}
