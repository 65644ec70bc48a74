package errors

import "fmt"

// Topology editor error helpers. These keep the reconciliation code free of
// hand-built messages and give tests stable predicates to assert on.

// NewNodeNotFound creates a not-found error for a topology node
func NewNodeNotFound(nodeID string) *AppError {
	return NewNotFoundError(fmt.Sprintf("node '%s'", nodeID)).WithCode("NODE_NOT_FOUND")
}

// NewEdgeNotFound creates a not-found error for a topology edge
func NewEdgeNotFound(edgeID string) *AppError {
	return NewNotFoundError(fmt.Sprintf("edge '%s'", edgeID)).WithCode("EDGE_NOT_FOUND")
}

// NewDuplicateNode creates a conflict error for a node id collision
func NewDuplicateNode(nodeID string) *AppError {
	return NewConflictError(fmt.Sprintf("node '%s' already exists", nodeID)).WithCode("DUPLICATE_NODE")
}

// NewDuplicateEdge creates a conflict error for an edge id collision
func NewDuplicateEdge(edgeID string) *AppError {
	return NewConflictError(fmt.Sprintf("edge '%s' already exists", edgeID)).WithCode("DUPLICATE_EDGE")
}

// NewDanglingEdge creates a validation error for an edge whose endpoint is
// missing from the node collection
func NewDanglingEdge(edgeID, nodeID string) *AppError {
	return NewValidationError(
		fmt.Sprintf("edge '%s' references missing node '%s'", edgeID, nodeID),
	).WithCode("DANGLING_EDGE")
}

// NewSessionNotFound creates a not-found error for an editor session
func NewSessionNotFound(sessionID string) *AppError {
	return NewNotFoundError(fmt.Sprintf("editor session '%s'", sessionID)).WithCode("SESSION_NOT_FOUND")
}
