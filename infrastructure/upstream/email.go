package upstream

import (
	"context"
	"net/http"
)

type testEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendTestEmail asks the upstream to deliver a test message so users can
// verify their alert address before wiring it into a topology.
func (c *Client) SendTestEmail(ctx context.Context, token, to, subject, body string) error {
	return c.do(ctx, "send_test_email", http.MethodPost, "/email/test", token,
		testEmailRequest{To: to, Subject: subject, Body: body}, nil)
}
