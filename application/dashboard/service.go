// Package dashboard serves the metric-chart screens: device lists, live
// snapshots, downsampled chart series and the raw-sample log viewer.
package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/telemetry"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// MetricsAPI is the slice of the upstream client the dashboard consumes.
type MetricsAPI interface {
	Devices(ctx context.Context, token string) ([]string, error)
	LastStats(ctx context.Context, token, device string) (telemetry.LastStats, error)
	TimeSeries(ctx context.Context, token string, q telemetry.Query) ([]telemetry.Point, error)
	History(ctx context.Context, token, device, rng string) ([]upstream.HistoryRow, error)
}

// Service answers dashboard queries against the upstream API.
type Service struct {
	api    MetricsAPI
	logger *zap.Logger
}

// NewService creates a dashboard service.
func NewService(api MetricsAPI, logger *zap.Logger) *Service {
	return &Service{api: api, logger: logger}
}

// Devices lists the device names available to the caller.
func (s *Service) Devices(ctx context.Context, token string) ([]string, error) {
	return s.api.Devices(ctx, token)
}

// Series validates the query dimensions and fetches a downsampled chart
// series.
func (s *Service) Series(ctx context.Context, token, device, field, rng, interval, agg string) (telemetry.Series, error) {
	query, err := telemetry.NewQuery(device, field, rng, interval, agg)
	if err != nil {
		return telemetry.Series{}, err
	}
	points, err := s.api.TimeSeries(ctx, token, query)
	if err != nil {
		return telemetry.Series{}, err
	}
	return telemetry.Series{Device: query.Device, Field: query.Field, Points: points}, nil
}

// History fetches the raw per-sample rows for the log viewer. The range
// defaults like the chart queries do, but rows pass through unshaped.
func (s *Service) History(ctx context.Context, token, device, rng string) ([]upstream.HistoryRow, error) {
	if device == "" {
		return nil, pkgerrors.NewValidationError("device is required")
	}
	if rng == "" {
		rng = telemetry.DefaultRange
	}
	if !telemetry.ValidRange(rng) {
		return nil, pkgerrors.NewValidationError("unknown range: " + rng)
	}
	return s.api.History(ctx, token, device, rng)
}

// DeviceSnapshot is one row of the dashboard overview.
type DeviceSnapshot struct {
	Device string               `json:"device"`
	Stats  *telemetry.LastStats `json:"stats,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// Overview fetches the latest snapshot for every device concurrently. A
// device whose fetch fails gets an error row instead of sinking the whole
// overview.
func (s *Service) Overview(ctx context.Context, token string) ([]DeviceSnapshot, error) {
	devices, err := s.api.Devices(ctx, token)
	if err != nil {
		return nil, err
	}

	snapshots := make([]DeviceSnapshot, len(devices))
	var wg sync.WaitGroup
	for i, device := range devices {
		wg.Add(1)
		go func(i int, device string) {
			defer wg.Done()
			stats, err := s.api.LastStats(ctx, token, device)
			if err != nil {
				s.logger.Debug("overview snapshot failed",
					zap.String("device", device), zap.Error(err))
				snapshots[i] = DeviceSnapshot{Device: device, Error: err.Error()}
				return
			}
			snapshots[i] = DeviceSnapshot{Device: device, Stats: &stats}
		}(i, device)
	}
	wg.Wait()
	return snapshots, nil
}
