package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/application/editor"
	"github.com/BenjaminAGH/NocturneScope/domain/telemetry"
	"github.com/BenjaminAGH/NocturneScope/domain/topology"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	"github.com/BenjaminAGH/NocturneScope/pkg/common"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

const maxEditorBodyBytes = 1 << 20

// EditorHandler exposes the topology editor: session lifecycle, graph
// mutations, persistence, and the stored-topology catalog.
type EditorHandler struct {
	manager    *editor.Manager
	client     *upstream.Client
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewEditorHandler creates an editor handler.
func NewEditorHandler(manager *editor.Manager, client *upstream.Client,
	errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *EditorHandler {
	return &EditorHandler{manager: manager, client: client, errHandler: errHandler, logger: logger}
}

type sessionStateResponse struct {
	SessionID    string          `json:"session_id"`
	TopologyID   string          `json:"topology_id,omitempty"`
	TopologyName string          `json:"topology_name,omitempty"`
	Dirty        bool            `json:"dirty"`
	AutoDetect   bool            `json:"auto_detect"`
	Nodes        []topology.Node `json:"nodes"`
	Edges        []topology.Edge `json:"edges"`
}

func sessionState(s *editor.Session) sessionStateResponse {
	nodes, edges := s.Snapshot()
	topologyID, name, dirty := s.Meta()
	return sessionStateResponse{
		SessionID:    s.ID,
		TopologyID:   topologyID,
		TopologyName: name,
		Dirty:        dirty,
		AutoDetect:   s.AutoDetect(),
		Nodes:        nodes,
		Edges:        edges,
	}
}

// session resolves the request's editor session, scoped to the caller.
func (h *EditorHandler) session(r *http.Request) (*editor.Session, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return h.manager.Get(chi.URLParam(r, "sessionID"), user.UserID)
}

type openSessionRequest struct {
	TopologyID string `json:"topology_id"`
}

// OpenSession starts an editor session, optionally preloading a stored
// topology.
func (h *EditorHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	var req openSessionRequest
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
			h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
			return
		}
	}

	var editorSession *editor.Session
	if req.TopologyID != "" {
		editorSession, err = h.manager.OpenTopology(r.Context(), user.UserID, session.AccessToken, req.TopologyID)
		if err != nil {
			h.errHandler.Handle(w, r, err)
			return
		}
	} else {
		editorSession = h.manager.Open(user.UserID, session.AccessToken)
	}
	common.RespondJSON(w, http.StatusCreated, sessionState(editorSession))
}

// GetState returns the session's current graph.
func (h *EditorHandler) GetState(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, sessionState(s))
}

// CloseSession closes a session, flushing pending changes.
func (h *EditorHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := h.manager.Close(r.Context(), chi.URLParam(r, "sessionID"), user.UserID); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

type addNodeRequest struct {
	ID       string            `json:"id"`
	Type     topology.NodeType `json:"type"`
	Position topology.Position `json:"position"`
	Data     json.RawMessage   `json:"data"`
}

// AddNode inserts a node into the session graph.
func (h *EditorHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	var req addNodeRequest
	if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	data, err := decodeNodeData(req.Type, req.Data)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if req.ID == "" {
		req.ID = string(req.Type) + "-" + uuid.New().String()
	}

	node, err := topology.NewNode(req.ID, req.Position, data)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := s.AddNode(node); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, sessionState(s))
}

type updateNodeRequest struct {
	Data json.RawMessage `json:"data" validate:"required"`
}

// UpdateNode replaces a node's configuration payload.
func (h *EditorHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	node, ok := h.findNode(s, nodeID)
	if !ok {
		h.errHandler.Handle(w, r, pkgerrors.NewNodeNotFound(nodeID))
		return
	}

	var req updateNodeRequest
	if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	data, err := decodeNodeData(node.Type, req.Data)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := s.SetNodeData(nodeID, data); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, sessionState(s))
}

// MoveNode updates a node's canvas position.
func (h *EditorHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var pos topology.Position
	if err := common.ParseJSONBody(r, &pos, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := s.MoveNode(chi.URLParam(r, "nodeID"), pos); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// DeleteNode removes a node and its incident edges.
func (h *EditorHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := s.RemoveNode(chi.URLParam(r, "nodeID")); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, sessionState(s))
}

type connectRequest struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Connect adds an edge between two nodes.
func (h *EditorHandler) Connect(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req connectRequest
	if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	if req.ID == "" {
		req.ID = "edge-" + uuid.New().String()
	}
	if err := s.Connect(topology.Edge{ID: req.ID, Source: req.Source, Target: req.Target}); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, sessionState(s))
}

// DeleteEdge removes one edge.
func (h *EditorHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	s.RemoveEdges(chi.URLParam(r, "edgeID"))
	common.RespondJSON(w, http.StatusOK, sessionState(s))
}

type autoDetectRequest struct {
	Enabled bool `json:"enabled"`
}

// SetAutoDetect toggles gateway auto-detection.
func (h *EditorHandler) SetAutoDetect(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req autoDetectRequest
	if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	s.SetAutoDetect(req.Enabled)
	common.RespondNoContent(w)
}

// Save persists the session's topology immediately.
func (h *EditorHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := s.Save(r.Context()); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	topologyID, name, _ := s.Meta()
	common.RespondJSON(w, http.StatusOK, map[string]string{
		"topology_id":   topologyID,
		"topology_name": name,
	})
}

type loadRequest struct {
	TopologyID string `json:"topology_id" validate:"required"`
}

// Load replaces the session graph with a stored topology.
func (h *EditorHandler) Load(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req loadRequest
	if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	if err := s.Load(r.Context(), req.TopologyID); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, sessionState(s))
}

// Reset clears the session to an empty unsaved graph.
func (h *EditorHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	s.Reset()
	common.RespondJSON(w, http.StatusOK, sessionState(s))
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// Rename sets the topology's display name.
func (h *EditorHandler) Rename(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req renameRequest
	if err := common.ParseJSONBody(r, &req, maxEditorBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	s.Rename(req.Name)
	common.RespondNoContent(w)
}

// ListTopologies returns the caller's stored topologies.
func (h *EditorHandler) ListTopologies(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	records, err := h.client.ListTopologies(r.Context(), session.AccessToken)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"topologies": records})
}

// DeleteTopology removes a stored topology.
func (h *EditorHandler) DeleteTopology(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := h.client.DeleteTopology(r.Context(), session.AccessToken, chi.URLParam(r, "topologyID")); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

func (h *EditorHandler) findNode(s *editor.Session, nodeID string) (topology.Node, bool) {
	nodes, _ := s.Snapshot()
	for _, n := range nodes {
		if n.ID == nodeID {
			return n, true
		}
	}
	return topology.Node{}, false
}

// decodeNodeData decodes a request payload into the typed variant for the
// node type, applying editor defaults and rejecting values outside the
// metric vocabulary.
func decodeNodeData(nodeType topology.NodeType, raw json.RawMessage) (topology.NodeData, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch nodeType {
	case topology.NodeTypeDevice:
		var data topology.DeviceData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, pkgerrors.NewValidationError("invalid device data: " + err.Error())
		}
		if data.DeviceName == "" {
			return nil, pkgerrors.NewValidationError("deviceName is required")
		}
		data.Status = topology.StatusUnknown
		return data, nil

	case topology.NodeTypeMonitoring:
		var data topology.MonitoringData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, pkgerrors.NewValidationError("invalid monitoring data: " + err.Error())
		}
		// Run the chart dimensions through the same validation the
		// dashboard uses; "device" is a placeholder since the widget binds
		// through its edge.
		q, err := telemetry.NewQuery("placeholder",
			data.Metric, data.Range, data.Interval, data.Agg)
		if err != nil {
			return nil, err
		}
		data.Metric, data.Range, data.Interval, data.Agg = q.Field, q.Range, q.Interval, q.Agg
		data.ConnectedDevice = ""
		return data, nil

	case topology.NodeTypeAction:
		var data topology.ActionData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, pkgerrors.NewValidationError("invalid action data: " + err.Error())
		}
		if data.Metric == "" {
			data.Metric = telemetry.DefaultField
		}
		if data.Operator == "" {
			data.Operator = ">"
		}
		if !topology.ValidActionOperator(data.Operator) {
			return nil, pkgerrors.NewValidationError("unknown operator: " + data.Operator)
		}
		data.ConnectedDevice = ""
		data.IsActive = false
		return data, nil

	case topology.NodeTypeEmail:
		var data topology.EmailData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, pkgerrors.NewValidationError("invalid email data: " + err.Error())
		}
		data.ConnectedDevice = ""
		data.IsActive = false
		return data, nil

	case topology.NodeTypeNotification:
		var data topology.NotificationData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, pkgerrors.NewValidationError("invalid notification data: " + err.Error())
		}
		data.IsActive = false
		return data, nil

	case topology.NodeTypeRouter:
		// Routers are synthesized by gateway detection.
		return nil, pkgerrors.NewValidationError("router nodes cannot be created manually")
	}
	return nil, pkgerrors.NewValidationError("unknown node type: " + string(nodeType))
}
