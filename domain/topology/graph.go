package topology

import (
	"time"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// DefaultLivenessWindow is how recent a device's last report must be for the
// device to count as online.
const DefaultLivenessWindow = 300 * time.Second

// DeviceReport is one device's outcome from a poll cycle. A nil Timestamp or
// an error upstream yields Status unknown and empty Gateway.
type DeviceReport struct {
	NodeID  string
	Status  DeviceStatus
	IP      string
	Gateway string
}

// Graph is the editor's node/edge state. It is not safe for concurrent use;
// an editor session confines it to a single goroutine behind a mutex.
type Graph struct {
	nodes []Node
	edges []Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Nodes returns a copy of the node list.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge looks up an edge by id.
func (g *Graph) Edge(id string) (Edge, bool) {
	for _, e := range g.edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// DeviceNodes returns the device nodes in insertion order.
func (g *Graph) DeviceNodes() []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Type == NodeTypeDevice {
			out = append(out, n)
		}
	}
	return out
}

// AddNode inserts a node, rejecting duplicate ids.
func (g *Graph) AddNode(n Node) error {
	if _, exists := g.Node(n.ID); exists {
		return pkgerrors.NewDuplicateNode(n.ID)
	}
	if n.Data == nil || n.Data.NodeType() != n.Type {
		return pkgerrors.NewValidationError("node data does not match node type")
	}
	g.nodes = append(g.nodes, n)
	return nil
}

// MoveNode updates a node's canvas position.
func (g *Graph) MoveNode(id string, pos Position) error {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			g.nodes[i].Position = pos
			return nil
		}
	}
	return pkgerrors.NewNodeNotFound(id)
}

// SetNodeData replaces a node's payload. The node's type is immutable, so
// the replacement variant must match.
func (g *Graph) SetNodeData(id string, data NodeData) error {
	for i := range g.nodes {
		if g.nodes[i].ID != id {
			continue
		}
		if data == nil || data.NodeType() != g.nodes[i].Type {
			return pkgerrors.NewValidationError("node data does not match node type")
		}
		g.nodes[i].Data = data
		g.deriveConnections()
		return nil
	}
	return pkgerrors.NewNodeNotFound(id)
}

// Connect inserts an edge after checking both endpoints exist, then
// re-derives device bindings. Inserting an edge whose id already exists is a
// no-op so gateway reconciliation stays idempotent.
func (g *Graph) Connect(e Edge) error {
	if _, exists := g.Edge(e.ID); exists {
		return nil
	}
	if _, ok := g.Node(e.Source); !ok {
		return pkgerrors.NewDanglingEdge(e.ID, e.Source)
	}
	if _, ok := g.Node(e.Target); !ok {
		return pkgerrors.NewDanglingEdge(e.ID, e.Target)
	}
	g.edges = append(g.edges, e)
	g.deriveConnections()
	return nil
}

// RemoveEdges deletes the given edges and re-derives device bindings, so a
// monitoring widget whose device link went away stops charting it and an
// email node bound through a removed action loses its device too.
func (g *Graph) RemoveEdges(ids ...string) {
	if len(ids) == 0 {
		return
	}
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if !doomed[e.ID] {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.deriveConnections()
}

// RemoveNode deletes a node along with every incident edge.
func (g *Graph) RemoveNode(id string) error {
	idx := -1
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return pkgerrors.NewNodeNotFound(id)
	}
	g.nodes = append(g.nodes[:idx], g.nodes[idx+1:]...)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.deriveConnections()
	return nil
}

// ApplyDeviceReports folds a full poll cycle's results into the graph:
// device statuses, and when autoDetect is set, synthetic router nodes and
// edges for every gateway seen. Routers whose gateway no longer appears in
// any report are pruned, as are their edges.
func (g *Graph) ApplyDeviceReports(reports []DeviceReport, autoDetect bool) {
	byNode := make(map[string]DeviceReport, len(reports))
	for _, r := range reports {
		byNode[r.NodeID] = r
	}

	for i := range g.nodes {
		if g.nodes[i].Type != NodeTypeDevice {
			continue
		}
		report, ok := byNode[g.nodes[i].ID]
		if !ok {
			continue
		}
		data := g.nodes[i].Data.(DeviceData)
		data.Status = report.Status
		if report.IP != "" {
			data.IP = report.IP
		}
		g.nodes[i].Data = data
	}

	if !autoDetect {
		return
	}

	// Gateways seen this cycle, with the device nodes behind each.
	gatewayDevices := make(map[string][]string)
	var gatewayOrder []string
	for _, n := range g.nodes {
		if n.Type != NodeTypeDevice {
			continue
		}
		report, ok := byNode[n.ID]
		if !ok || report.Gateway == "" {
			continue
		}
		if _, seen := gatewayDevices[report.Gateway]; !seen {
			gatewayOrder = append(gatewayOrder, report.Gateway)
		}
		gatewayDevices[report.Gateway] = append(gatewayDevices[report.Gateway], n.ID)
	}

	for _, gateway := range gatewayOrder {
		deviceIDs := gatewayDevices[gateway]
		routerID := RouterNodeID(gateway)

		if _, exists := g.Node(routerID); !exists {
			g.nodes = append(g.nodes, Node{
				ID:       routerID,
				Type:     NodeTypeRouter,
				Position: g.routerPosition(deviceIDs),
				Data:     RouterData{GatewayIP: gateway, Label: "Router " + gateway},
			})
		}
		for i := range g.nodes {
			if g.nodes[i].ID == routerID {
				data := g.nodes[i].Data.(RouterData)
				data.DeviceCount = len(deviceIDs)
				g.nodes[i].Data = data
			}
		}

		for _, deviceID := range deviceIDs {
			edgeID := RouterEdgeID(routerID, deviceID)
			if _, exists := g.Edge(edgeID); exists {
				continue
			}
			g.edges = append(g.edges, Edge{
				ID:       edgeID,
				Source:   routerID,
				Target:   deviceID,
				Animated: true,
			})
		}
	}

	g.pruneRouters(gatewayDevices)
}

// routerPosition places a new router above its first device, or at a spot
// derived from the current node count when the device has no position yet.
func (g *Graph) routerPosition(deviceIDs []string) Position {
	if len(deviceIDs) > 0 {
		if device, ok := g.Node(deviceIDs[0]); ok {
			return Position{X: device.Position.X, Y: device.Position.Y - 150}
		}
	}
	offset := float64(len(g.nodes)%5) * 120
	return Position{X: 80 + offset, Y: 80 + offset}
}

// pruneRouters removes synthetic routers whose gateway was absent from the
// latest full poll cycle, plus their edges.
func (g *Graph) pruneRouters(liveGateways map[string][]string) {
	var doomed []string
	keptNodes := g.nodes[:0]
	for _, n := range g.nodes {
		if n.Type == NodeTypeRouter {
			if _, live := liveGateways[n.Data.(RouterData).GatewayIP]; !live {
				doomed = append(doomed, n.ID)
				continue
			}
		}
		keptNodes = append(keptNodes, n)
	}
	g.nodes = keptNodes

	if len(doomed) == 0 {
		return
	}
	doomedSet := make(map[string]bool, len(doomed))
	for _, id := range doomed {
		doomedSet[id] = true
	}
	keptEdges := g.edges[:0]
	for _, e := range g.edges {
		if !doomedSet[e.Source] && !doomedSet[e.Target] {
			keptEdges = append(keptEdges, e)
		}
	}
	g.edges = keptEdges
	g.deriveConnections()
}

// ApplyRecentAlerts recomputes every action node's fired state from the
// current alert window, which carries the ids of the action nodes whose
// rules fired. The feed is the whole truth: an action absent from it is not
// firing, so stale highlights clear themselves.
func (g *Graph) ApplyRecentAlerts(recentIDs []string) {
	recent := make(map[string]bool, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = true
	}

	firingActions := make(map[string]bool)
	for i := range g.nodes {
		if g.nodes[i].Type != NodeTypeAction {
			continue
		}
		data := g.nodes[i].Data.(ActionData)
		firing := recent[g.nodes[i].ID]
		data.IsActive = firing
		g.nodes[i].Data = data
		if firing {
			firingActions[g.nodes[i].ID] = true
		}
	}

	// Output nodes light up while any adjacent action is firing.
	for i := range g.nodes {
		switch data := g.nodes[i].Data.(type) {
		case EmailData:
			data.IsActive = g.adjacentAnyFiring(g.nodes[i].ID, firingActions)
			g.nodes[i].Data = data
		case NotificationData:
			data.IsActive = g.adjacentAnyFiring(g.nodes[i].ID, firingActions)
			g.nodes[i].Data = data
		}
	}
}

func (g *Graph) adjacentAnyFiring(nodeID string, firing map[string]bool) bool {
	for _, e := range g.edges {
		if other := e.Other(nodeID); other != "" && firing[other] {
			return true
		}
	}
	return false
}

// deriveConnections recomputes every derived device binding from edge
// adjacency. Monitoring and action nodes bind to the first adjacent device;
// email nodes inherit the device of the first adjacent action that has one.
// Running the full derivation after every structural change keeps the graph
// consistent without tracking which edge fed which binding.
func (g *Graph) deriveConnections() {
	for i := range g.nodes {
		switch data := g.nodes[i].Data.(type) {
		case MonitoringData:
			data.ConnectedDevice = g.adjacentDeviceName(g.nodes[i].ID)
			g.nodes[i].Data = data
		case ActionData:
			data.ConnectedDevice = g.adjacentDeviceName(g.nodes[i].ID)
			g.nodes[i].Data = data
		}
	}
	// Second pass: email depends on action bindings computed above.
	for i := range g.nodes {
		if data, ok := g.nodes[i].Data.(EmailData); ok {
			data.ConnectedDevice = g.adjacentActionDevice(g.nodes[i].ID)
			g.nodes[i].Data = data
		}
	}
}

// adjacentDeviceName finds the device node connected to nodeID, in edge
// order, and returns its device name.
func (g *Graph) adjacentDeviceName(nodeID string) string {
	for _, e := range g.edges {
		other := e.Other(nodeID)
		if other == "" {
			continue
		}
		if n, ok := g.Node(other); ok && n.Type == NodeTypeDevice {
			return n.Data.(DeviceData).DeviceName
		}
	}
	return ""
}

// adjacentActionDevice finds the first adjacent action node that already has
// a device binding and returns that device name.
func (g *Graph) adjacentActionDevice(nodeID string) string {
	for _, e := range g.edges {
		other := e.Other(nodeID)
		if other == "" {
			continue
		}
		n, ok := g.Node(other)
		if !ok || n.Type != NodeTypeAction {
			continue
		}
		if device := n.Data.(ActionData).ConnectedDevice; device != "" {
			return device
		}
	}
	return ""
}

// Validate checks structural integrity: unique node ids, unique edge ids,
// every edge endpoint present, every payload matching its node type.
func (g *Graph) Validate() error {
	nodeIDs := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		if nodeIDs[n.ID] {
			return pkgerrors.NewDuplicateNode(n.ID)
		}
		nodeIDs[n.ID] = true
		if n.Data == nil || n.Data.NodeType() != n.Type {
			return pkgerrors.NewValidationError("node " + n.ID + ": data does not match node type")
		}
	}
	edgeIDs := make(map[string]bool, len(g.edges))
	for _, e := range g.edges {
		if edgeIDs[e.ID] {
			return pkgerrors.NewDuplicateEdge(e.ID)
		}
		edgeIDs[e.ID] = true
		if !nodeIDs[e.Source] {
			return pkgerrors.NewDanglingEdge(e.ID, e.Source)
		}
		if !nodeIDs[e.Target] {
			return pkgerrors.NewDanglingEdge(e.ID, e.Target)
		}
	}
	return nil
}
