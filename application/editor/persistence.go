package editor

import (
	"context"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/topology"
)

const defaultTopologyName = "Untitled topology"

// Save persists the current graph on user request.
func (s *Session) Save(ctx context.Context) error {
	s.touch()
	return s.save(ctx, "manual")
}

// save serializes the graph and creates or updates the upstream record. The
// first successful save pins the topology id; every later save updates the
// same record.
func (s *Session) save(ctx context.Context, mode string) error {
	s.mu.Lock()
	data, err := s.graph.MarshalDocument()
	topologyID := s.topologyID
	name := s.topologyName
	s.mu.Unlock()
	if err != nil {
		s.countSave(mode, "error")
		return err
	}
	if name == "" {
		name = defaultTopologyName
	}

	if topologyID == "" {
		record, err := s.api.CreateTopology(ctx, s.token, name, data)
		if err != nil {
			s.countSave(mode, "error")
			return err
		}
		s.mu.Lock()
		// A concurrent save may have won the create race; keep the first id.
		if s.topologyID == "" {
			s.topologyID = record.ID
		}
		if s.topologyName == "" {
			s.topologyName = name
		}
		s.dirty = false
		s.mu.Unlock()
		s.countSave(mode, "success")
		s.logger.Info("topology created", zap.String("topology_id", record.ID), zap.String("mode", mode))
		return nil
	}

	if _, err := s.api.UpdateTopology(ctx, s.token, topologyID, name, data); err != nil {
		s.countSave(mode, "error")
		return err
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	s.countSave(mode, "success")
	s.logger.Debug("topology saved", zap.String("topology_id", topologyID), zap.String("mode", mode))
	return nil
}

// Load replaces the session's graph with a stored topology. Transient state
// resets and derived bindings are recomputed by the document decoder; the
// next poll cycles repopulate statuses and alert highlights.
func (s *Session) Load(ctx context.Context, topologyID string) error {
	s.touch()
	record, err := s.api.GetTopology(ctx, s.token, topologyID)
	if err != nil {
		return err
	}
	graph, err := topology.UnmarshalDocument(record.Data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.graph = graph
	s.topologyID = record.ID
	s.topologyName = record.Name
	s.dirty = false
	s.mu.Unlock()

	s.logger.Info("topology loaded", zap.String("topology_id", record.ID))
	return nil
}

// Reset replaces the graph with an empty unsaved one.
func (s *Session) Reset() {
	s.touch()
	s.mu.Lock()
	s.graph = topology.NewGraph()
	s.topologyID = ""
	s.topologyName = ""
	s.dirty = false
	s.mu.Unlock()
}

func (s *Session) countSave(mode, outcome string) {
	if s.collectors != nil {
		s.collectors.TopologySaves.WithLabelValues(mode, outcome).Inc()
	}
}
