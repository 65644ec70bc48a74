package upstream

import (
	"context"
	"net/http"
)

// RecentAlerts returns the keys of rules that fired inside the upstream's
// recency window, each formatted "<device> <metric> <operator> <threshold>".
func (c *Client) RecentAlerts(ctx context.Context, token string) ([]string, error) {
	var out struct {
		RecentAlerts []string `json:"recent_alerts"`
	}
	if err := c.do(ctx, "recent_alerts", http.MethodGet, "/alerts/recent", token, nil, &out); err != nil {
		return nil, err
	}
	return out.RecentAlerts, nil
}
