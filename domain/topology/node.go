package topology

import (
	"encoding/json"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// NodeType discriminates the topology node variants.
type NodeType string

const (
	NodeTypeDevice       NodeType = "device"
	NodeTypeRouter       NodeType = "router"
	NodeTypeMonitoring   NodeType = "monitoring"
	NodeTypeAction       NodeType = "action"
	NodeTypeEmail        NodeType = "email"
	NodeTypeNotification NodeType = "notification"
)

// knownNodeTypes is the closed set of valid node types.
var knownNodeTypes = map[NodeType]bool{
	NodeTypeDevice:       true,
	NodeTypeRouter:       true,
	NodeTypeMonitoring:   true,
	NodeTypeAction:       true,
	NodeTypeEmail:        true,
	NodeTypeNotification: true,
}

// DeviceStatus is the liveness classification of a device node.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusUnknown DeviceStatus = "unknown"
)

// Position is a node's placement on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the tagged union of per-type node payloads. Every variant
// reports its own NodeType so reconciliation code can switch exhaustively
// instead of probing an untyped bag of optional fields.
type NodeData interface {
	NodeType() NodeType
}

// DeviceData is the payload of a device node.
type DeviceData struct {
	DeviceName string       `json:"deviceName"`
	Label      string       `json:"label,omitempty"`
	Status     DeviceStatus `json:"status"`
	IP         string       `json:"ip,omitempty"`
}

func (DeviceData) NodeType() NodeType { return NodeTypeDevice }

// RouterData is the payload of a synthetic gateway node. Routers are created
// and removed only by gateway detection, never by the user.
type RouterData struct {
	GatewayIP   string `json:"gatewayIP"`
	Label       string `json:"label,omitempty"`
	DeviceCount int    `json:"deviceCount"`
}

func (RouterData) NodeType() NodeType { return NodeTypeRouter }

// MonitoringData is the payload of a chart widget node. ConnectedDevice is
// derived from edge adjacency and never persisted.
type MonitoringData struct {
	Metric          string `json:"metric"`
	Range           string `json:"range,omitempty"`
	Interval        string `json:"interval,omitempty"`
	Agg             string `json:"agg,omitempty"`
	Label           string `json:"label,omitempty"`
	ConnectedDevice string `json:"connectedDevice,omitempty"`
}

func (MonitoringData) NodeType() NodeType { return NodeTypeMonitoring }

// ActionData is the payload of a threshold rule node. The rule itself is
// evaluated upstream; IsActive only mirrors the fired state reported by the
// alert feed.
type ActionData struct {
	Metric          string  `json:"metric"`
	Operator        string  `json:"operator"`
	Threshold       float64 `json:"threshold"`
	ConnectedDevice string  `json:"connectedDevice,omitempty"`
	IsActive        bool    `json:"isActive"`
}

func (ActionData) NodeType() NodeType { return NodeTypeAction }

// EmailData is the payload of an email output node.
type EmailData struct {
	To              string `json:"to,omitempty"`
	Subject         string `json:"subject,omitempty"`
	Body            string `json:"body,omitempty"`
	Cooldown        string `json:"cooldown,omitempty"`
	ConnectedDevice string `json:"connectedDevice,omitempty"`
	IsActive        bool   `json:"isActive"`
}

func (EmailData) NodeType() NodeType { return NodeTypeEmail }

// NotificationData is the payload of an in-app notification output node.
type NotificationData struct {
	Message  string `json:"message,omitempty"`
	IsActive bool   `json:"isActive"`
}

func (NotificationData) NodeType() NodeType { return NodeTypeNotification }

// Comparison operators accepted by action nodes.
var ActionOperators = []string{">", ">=", "<", "<=", "=="}

// ValidActionOperator reports whether op is one of the accepted comparisons.
func ValidActionOperator(op string) bool {
	for _, candidate := range ActionOperators {
		if op == candidate {
			return true
		}
	}
	return false
}

// Node is a typed vertex of the topology graph. Identity is the id; the type
// is immutable after creation.
type Node struct {
	ID       string
	Type     NodeType
	Position Position
	Data     NodeData
}

// NewNode builds a node after checking that the data variant matches the
// declared type.
func NewNode(id string, position Position, data NodeData) (Node, error) {
	if id == "" {
		return Node{}, pkgerrors.NewValidationError("node id cannot be empty")
	}
	if data == nil {
		return Node{}, pkgerrors.NewValidationError("node data cannot be nil")
	}
	nodeType := data.NodeType()
	if !knownNodeTypes[nodeType] {
		return Node{}, pkgerrors.NewValidationError("unknown node type: " + string(nodeType))
	}
	return Node{ID: id, Type: nodeType, Position: position, Data: data}, nil
}

// MarshalJSON renders the node in the shape the editor UI consumes,
// transient fields included. Persistence uses Document instead.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string   `json:"id"`
		Type     NodeType `json:"type"`
		Position Position `json:"position"`
		Data     NodeData `json:"data"`
	}{n.ID, n.Type, n.Position, n.Data})
}
