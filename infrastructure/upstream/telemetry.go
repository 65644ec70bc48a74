package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/BenjaminAGH/NocturneScope/domain/telemetry"
)

// Devices lists the device names known to the collector. The endpoint
// returns a bare JSON array.
func (c *Client) Devices(ctx context.Context, token string) ([]string, error) {
	var out []string
	if err := c.do(ctx, "devices", http.MethodGet, "/metrics/devices", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LastStats fetches the most recent snapshot for one device.
func (c *Client) LastStats(ctx context.Context, token, device string) (telemetry.LastStats, error) {
	path := "/metrics/last?device=" + url.QueryEscape(device)
	var out telemetry.LastStats
	if err := c.do(ctx, "last_stats", http.MethodGet, path, token, nil, &out); err != nil {
		return telemetry.LastStats{}, err
	}
	if out.Device == "" {
		out.Device = device
	}
	return out, nil
}

// TimeSeries fetches a downsampled series for a validated query.
func (c *Client) TimeSeries(ctx context.Context, token string, q telemetry.Query) ([]telemetry.Point, error) {
	params := url.Values{}
	params.Set("device", q.Device)
	params.Set("field", q.Field)
	params.Set("range", q.Range)
	params.Set("interval", q.Interval)
	params.Set("agg", q.Agg)

	var out struct {
		Points []telemetry.Point `json:"points"`
	}
	if err := c.do(ctx, "timeseries", http.MethodGet, "/metrics/timeseries?"+params.Encode(), token, nil, &out); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// HistoryRow is one raw per-sample record from the history feed. Column sets
// vary by agent version, so rows stay schemaless.
type HistoryRow map[string]interface{}

// History fetches the raw per-sample rows for one device over a range. The
// endpoint returns a bare JSON array of rows.
func (c *Client) History(ctx context.Context, token, device, rng string) ([]HistoryRow, error) {
	params := url.Values{}
	params.Set("device", device)
	params.Set("range", rng)

	var out []HistoryRow
	if err := c.do(ctx, "history", http.MethodGet, "/metrics/history?"+params.Encode(), token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
