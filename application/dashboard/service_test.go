package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/telemetry"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
)

type stubAPI struct {
	devices  []string
	stats    map[string]telemetry.LastStats
	statsErr map[string]error
	points   []telemetry.Point
	rows     []upstream.HistoryRow
	lastQ    telemetry.Query
	lastRng  string
}

func (s *stubAPI) Devices(ctx context.Context, token string) ([]string, error) {
	return s.devices, nil
}

func (s *stubAPI) LastStats(ctx context.Context, token, device string) (telemetry.LastStats, error) {
	if err := s.statsErr[device]; err != nil {
		return telemetry.LastStats{}, err
	}
	return s.stats[device], nil
}

func (s *stubAPI) TimeSeries(ctx context.Context, token string, q telemetry.Query) ([]telemetry.Point, error) {
	s.lastQ = q
	return s.points, nil
}

func (s *stubAPI) History(ctx context.Context, token, device, rng string) ([]upstream.HistoryRow, error) {
	s.lastRng = rng
	return s.rows, nil
}

func TestSeriesAppliesDefaultsBeforeCalling(t *testing.T) {
	api := &stubAPI{points: []telemetry.Point{{T: time.Now(), V: 1}}}
	svc := NewService(api, zap.NewNop())

	series, err := svc.Series(context.Background(), "tok", "server-01", "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "cpu", api.lastQ.Field)
	assert.Equal(t, "1h", api.lastQ.Range)
	assert.Equal(t, "server-01", series.Device)
	assert.Len(t, series.Points, 1)
}

func TestSeriesRejectsInvalidDimensions(t *testing.T) {
	svc := NewService(&stubAPI{}, zap.NewNop())

	_, err := svc.Series(context.Background(), "tok", "server-01", "gpu", "", "", "")
	assert.Error(t, err)

	_, err = svc.Series(context.Background(), "tok", "", "", "", "", "")
	assert.Error(t, err)
}

func TestHistoryValidatesDeviceAndRange(t *testing.T) {
	api := &stubAPI{rows: []upstream.HistoryRow{{"time": "2026-08-29T12:00:00Z", "cpu": 15.0}}}
	svc := NewService(api, zap.NewNop())

	rows, err := svc.History(context.Background(), "tok", "server-01", "")
	require.NoError(t, err)
	assert.Equal(t, "1h", api.lastRng)
	require.Len(t, rows, 1)

	_, err = svc.History(context.Background(), "tok", "", "1h")
	assert.Error(t, err)

	_, err = svc.History(context.Background(), "tok", "server-01", "3y")
	assert.Error(t, err)
}

func TestOverviewIsolatesPerDeviceFailures(t *testing.T) {
	api := &stubAPI{
		devices:  []string{"server-01", "server-02"},
		stats:    map[string]telemetry.LastStats{"server-01": {Device: "server-01", CPU: 20}},
		statsErr: map[string]error{"server-02": errors.New("collector down")},
	}
	svc := NewService(api, zap.NewNop())

	rows, err := svc.Overview(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].Stats)
	assert.Nil(t, rows[1].Stats)
	assert.NotEmpty(t, rows[1].Error)
}
