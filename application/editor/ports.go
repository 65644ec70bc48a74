// Package editor runs server-side topology editing sessions: an actor-owned
// graph per session, with device polling, alert polling and debounced
// autosave running as independently cancellable tasks around it.
package editor

import (
	"context"

	"github.com/BenjaminAGH/NocturneScope/domain/telemetry"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
)

// UpstreamAPI is the slice of the upstream client the editor consumes.
// Narrowing it here keeps session tests on a small fake instead of a full
// HTTP server.
type UpstreamAPI interface {
	LastStats(ctx context.Context, token, device string) (telemetry.LastStats, error)
	RecentAlerts(ctx context.Context, token string) ([]string, error)
	CreateTopology(ctx context.Context, token, name, data string) (upstream.TopologyRecord, error)
	UpdateTopology(ctx context.Context, token, id, name, data string) (upstream.TopologyRecord, error)
	GetTopology(ctx context.Context, token, id string) (upstream.TopologyRecord, error)
}
