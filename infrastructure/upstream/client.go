// Package upstream is the console's client for the NocturneScope API: auth,
// device metrics, alerts, API tokens, topology storage and email. Every call
// carries the caller's bearer token; the console holds no credentials of its
// own.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	appmetrics "github.com/BenjaminAGH/NocturneScope/pkg/metrics"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

const maxErrorBodyBytes = 4 << 10

// Client talks to the upstream API. A single circuit breaker guards all
// operations: the upstream is one process, so one failing endpoint means the
// rest are about to fail too.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	collectors *appmetrics.Collectors
}

// NewClient builds an upstream client from configuration. collectors may be
// nil in tests.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger, collectors *appmetrics.Collectors) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream-api",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// 4xx responses are the caller's problem, not upstream health.
			if appErr := pkgerrors.GetAppError(err); appErr != nil {
				return appErr.HTTPStatus < 500
			}
			return err == nil
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
		collectors: collectors,
	}
}

// do executes one upstream call through the circuit breaker. token may be
// empty for unauthenticated endpoints; out may be nil when the response body
// is irrelevant.
func (c *Client) do(ctx context.Context, operation, method, path, token string, body, out interface{}) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, token, body, out)
	})
	c.observe(operation, start, err)

	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return pkgerrors.NewUnavailableError("upstream API")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.NewInternalError("failed to encode request body").WithCause(err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return pkgerrors.NewInternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.NewNetworkError("upstream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.NewUpstreamError(resp.StatusCode, "malformed response body: "+err.Error())
	}
	return nil
}

// decodeError turns a non-2xx upstream response into an AppError, keeping
// the upstream's own message text when it sent one.
func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	message := strings.TrimSpace(string(raw))
	var envelope struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		switch {
		case envelope.Detail != "":
			message = envelope.Detail
		case envelope.Error != "":
			message = envelope.Error
		case envelope.Message != "":
			message = envelope.Message
		}
	}
	if message == "" {
		message = fmt.Sprintf("upstream returned status %d", resp.StatusCode)
	}
	return pkgerrors.NewUpstreamError(resp.StatusCode, message)
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.collectors == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.collectors.UpstreamRequests.
		WithLabelValues(operation, outcome).
		Observe(time.Since(start).Seconds())
}
