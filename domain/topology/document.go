package topology

import (
	"encoding/json"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// Document is the persisted shape of a graph. It carries configuration only:
// transient runtime state (device status, fired flags) and derived bindings
// never reach storage, so a reload always starts from a clean baseline.
type Document struct {
	Nodes []DocumentNode `json:"nodes"`
	Edges []DocumentEdge `json:"edges"`
}

// DocumentNode is one persisted node.
type DocumentNode struct {
	ID       string           `json:"id"`
	Type     NodeType         `json:"type"`
	Position Position         `json:"position"`
	Data     DocumentNodeData `json:"data"`
}

// DocumentNodeData is the allow-list of persistable node fields across all
// variants. Fields irrelevant to a node's type are simply absent.
type DocumentNodeData struct {
	DeviceName string `json:"deviceName,omitempty"`
	Label      string `json:"label,omitempty"`

	GatewayIP   string `json:"gatewayIP,omitempty"`
	DeviceCount int    `json:"deviceCount,omitempty"`

	Metric   string `json:"metric,omitempty"`
	Range    string `json:"range,omitempty"`
	Interval string `json:"interval,omitempty"`
	Agg      string `json:"agg,omitempty"`

	Operator  string   `json:"operator,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`

	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Body     string `json:"body,omitempty"`
	Cooldown string `json:"cooldown,omitempty"`

	Message string `json:"message,omitempty"`
}

// DocumentEdge is one persisted edge.
type DocumentEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// Document projects the graph into its persisted form.
func (g *Graph) Document() Document {
	doc := Document{
		Nodes: make([]DocumentNode, 0, len(g.nodes)),
		Edges: make([]DocumentEdge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		docNode := DocumentNode{ID: n.ID, Type: n.Type, Position: n.Position}
		switch data := n.Data.(type) {
		case DeviceData:
			docNode.Data.DeviceName = data.DeviceName
			docNode.Data.Label = data.Label
		case RouterData:
			docNode.Data.GatewayIP = data.GatewayIP
			docNode.Data.Label = data.Label
			docNode.Data.DeviceCount = data.DeviceCount
		case MonitoringData:
			docNode.Data.Metric = data.Metric
			docNode.Data.Range = data.Range
			docNode.Data.Interval = data.Interval
			docNode.Data.Agg = data.Agg
			docNode.Data.Label = data.Label
		case ActionData:
			docNode.Data.Metric = data.Metric
			docNode.Data.Operator = data.Operator
			threshold := data.Threshold
			docNode.Data.Threshold = &threshold
		case EmailData:
			docNode.Data.To = data.To
			docNode.Data.Subject = data.Subject
			docNode.Data.Body = data.Body
			docNode.Data.Cooldown = data.Cooldown
		case NotificationData:
			docNode.Data.Message = data.Message
		}
		doc.Nodes = append(doc.Nodes, docNode)
	}
	for _, e := range g.edges {
		doc.Edges = append(doc.Edges, DocumentEdge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type,
		})
	}
	return doc
}

// FromDocument rebuilds a graph from its persisted form. Device statuses
// reset to unknown, fired flags reset to off, and device bindings are
// re-derived from the edges rather than trusted from storage.
func FromDocument(doc Document) (*Graph, error) {
	g := NewGraph()
	for _, docNode := range doc.Nodes {
		data, err := nodeDataFromDocument(docNode)
		if err != nil {
			return nil, err
		}
		node, err := NewNode(docNode.ID, docNode.Position, data)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, docEdge := range doc.Edges {
		if _, exists := g.Edge(docEdge.ID); exists {
			return nil, pkgerrors.NewDuplicateEdge(docEdge.ID)
		}
		if err := g.Connect(Edge{
			ID:       docEdge.ID,
			Source:   docEdge.Source,
			Target:   docEdge.Target,
			Type:     docEdge.Type,
			Animated: docEdge.ID == RouterEdgeID(docEdge.Source, docEdge.Target),
		}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func nodeDataFromDocument(docNode DocumentNode) (NodeData, error) {
	d := docNode.Data
	switch docNode.Type {
	case NodeTypeDevice:
		return DeviceData{DeviceName: d.DeviceName, Label: d.Label, Status: StatusUnknown}, nil
	case NodeTypeRouter:
		return RouterData{GatewayIP: d.GatewayIP, Label: d.Label, DeviceCount: d.DeviceCount}, nil
	case NodeTypeMonitoring:
		return MonitoringData{Metric: d.Metric, Range: d.Range, Interval: d.Interval, Agg: d.Agg, Label: d.Label}, nil
	case NodeTypeAction:
		var threshold float64
		if d.Threshold != nil {
			threshold = *d.Threshold
		}
		return ActionData{Metric: d.Metric, Operator: d.Operator, Threshold: threshold}, nil
	case NodeTypeEmail:
		return EmailData{To: d.To, Subject: d.Subject, Body: d.Body, Cooldown: d.Cooldown}, nil
	case NodeTypeNotification:
		return NotificationData{Message: d.Message}, nil
	}
	return nil, pkgerrors.NewValidationError("unknown node type: " + string(docNode.Type))
}

// MarshalDocument serializes the graph's persisted form to JSON, the string
// stored in a topology record's Data column.
func (g *Graph) MarshalDocument() (string, error) {
	raw, err := json.Marshal(g.Document())
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to encode topology document")
	}
	return string(raw), nil
}

// UnmarshalDocument rebuilds a graph from a stored JSON document. An empty
// payload yields an empty graph.
func UnmarshalDocument(raw string) (*Graph, error) {
	if raw == "" {
		return NewGraph(), nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, pkgerrors.NewValidationError("malformed topology document: " + err.Error())
	}
	return FromDocument(doc)
}
