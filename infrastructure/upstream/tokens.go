package upstream

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// APIToken is a device ingestion credential's metadata. The secret itself is
// returned exactly once, at creation. Field names mirror the upstream's
// serializer, which emits Go struct names verbatim.
type APIToken struct {
	ID        int64      `json:"ID"`
	Name      string     `json:"Name"`
	CreatedAt time.Time  `json:"CreatedAt"`
	RevokedAt *time.Time `json:"RevokedAt,omitempty"`
}

type createTokenRequest struct {
	Name string `json:"name"`
}

// ListAPITokens returns the caller's token metadata as a bare array.
func (c *Client) ListAPITokens(ctx context.Context, token string) ([]APIToken, error) {
	var out []APIToken
	if err := c.do(ctx, "list_api_tokens", http.MethodGet, "/api-tokens", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAPIToken mints a new ingestion token and returns its secret, the
// only time it is ever visible.
func (c *Client) CreateAPIToken(ctx context.Context, token, name string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, "create_api_token", http.MethodPost, "/api-tokens", token,
		createTokenRequest{Name: name}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

// DeleteAPIToken revokes an ingestion token.
func (c *Client) DeleteAPIToken(ctx context.Context, token, id string) error {
	return c.do(ctx, "delete_api_token", http.MethodDelete, "/api-tokens/"+url.PathEscape(id), token, nil, nil)
}
