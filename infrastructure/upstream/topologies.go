package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TopologyRecord is a stored topology as the upstream returns it. Data is an
// opaque JSON document string; the editor decodes it separately.
type TopologyRecord struct {
	ID        string    `json:"ID"`
	UserID    string    `json:"UserID"`
	Name      string    `json:"Name"`
	Data      string    `json:"Data"`
	CreatedAt time.Time `json:"CreatedAt"`
	UpdatedAt time.Time `json:"UpdatedAt"`
}

type topologyPayload struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// ListTopologies returns the caller's saved topologies.
func (c *Client) ListTopologies(ctx context.Context, token string) ([]TopologyRecord, error) {
	var out []TopologyRecord
	if err := c.do(ctx, "list_topologies", http.MethodGet, "/topologies", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTopology fetches one saved topology.
func (c *Client) GetTopology(ctx context.Context, token, id string) (TopologyRecord, error) {
	var out TopologyRecord
	err := c.do(ctx, "get_topology", http.MethodGet, "/topologies/"+url.PathEscape(id), token, nil, &out)
	return out, err
}

// CreateTopology stores a new topology and returns the created record.
func (c *Client) CreateTopology(ctx context.Context, token, name, data string) (TopologyRecord, error) {
	var out TopologyRecord
	err := c.do(ctx, "create_topology", http.MethodPost, "/topologies", token,
		topologyPayload{Name: name, Data: data}, &out)
	if err != nil {
		return TopologyRecord{}, err
	}
	if out.ID == "" {
		return TopologyRecord{}, fmt.Errorf("upstream created topology without an id")
	}
	return out, nil
}

// UpdateTopology overwrites an existing topology.
func (c *Client) UpdateTopology(ctx context.Context, token, id, name, data string) (TopologyRecord, error) {
	var out TopologyRecord
	err := c.do(ctx, "update_topology", http.MethodPut, "/topologies/"+url.PathEscape(id), token,
		topologyPayload{Name: name, Data: data}, &out)
	return out, err
}

// DeleteTopology removes a saved topology.
func (c *Client) DeleteTopology(ctx context.Context, token, id string) error {
	return c.do(ctx, "delete_topology", http.MethodDelete, "/topologies/"+url.PathEscape(id), token, nil, nil)
}
