package topology

import "strings"

// Edge is a directed connection between two nodes. Direction matters only
// when deriving which endpoint is the device and which is the consumer; the
// drawing surface does not enforce it.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

// Touches reports whether the edge is incident to the given node.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Other returns the opposite endpoint of nodeID, or "" if the edge does not
// touch it.
func (e Edge) Other(nodeID string) string {
	switch nodeID {
	case e.Source:
		return e.Target
	case e.Target:
		return e.Source
	}
	return ""
}

// RouterNodeID derives the synthetic router node id for a gateway IP.
// Deterministic ids make router creation idempotent across poll cycles.
func RouterNodeID(gatewayIP string) string {
	return "router-" + strings.ReplaceAll(gatewayIP, ".", "-")
}

// RouterEdgeID derives the synthetic edge id for a (router, device) pair, so
// edge creation reduces to a set-membership check.
func RouterEdgeID(routerID, deviceID string) string {
	return "edge-" + routerID + "-" + deviceID
}
