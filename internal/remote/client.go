// README: HTTP client for the remote dispatch authority; classifies responses into fault kinds.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/observability"
	"fleetclaim/internal/session"
)

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Client talks to the authority. Reads may be retried on transport failures; writes are
// sent exactly once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	log        logrus.FieldLogger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		baseDelay:  delay,
		log:        log,
		sleep:      sleepCtx,
	}
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// read performs an idempotent GET, retrying transport-level failures with exponential
// backoff. HTTP error responses are returned immediately.
func (c *Client) read(ctx context.Context, op, path string) ([]byte, error) {
	var err error
	delay := c.baseDelay
	for attempt := 1; attempt <= c.attempts; attempt++ {
		var body []byte
		body, err = c.do(ctx, http.MethodGet, op, path, nil)
		if err == nil {
			return body, nil
		}
		if !fault.Transient(err) || attempt == c.attempts {
			break
		}
		c.log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"backoff": delay.String(),
			"error":   err,
		}).Warn("remote read failed, retrying")
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, fault.FromTransport(op, serr)
		}
		delay *= 2
	}
	return nil, err
}

// mutate sends a non-idempotent request once.
func (c *Client) mutate(ctx context.Context, method, op, path string, payload any) ([]byte, error) {
	body, err := c.do(ctx, method, op, path, payload)
	if err != nil {
		return nil, err
	}
	if err := checkSuccessFlag(op, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, op, path string, payload any) (body []byte, err error) {
	start := time.Now()
	defer func() {
		observability.RemoteCallDuration.
			WithLabelValues(op, observability.Outcome(string(fault.KindOf(err)), err)).
			Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if payload != nil {
		data, merr := json.Marshal(payload)
		if merr != nil {
			return nil, fmt.Errorf("%s marshal: %w", op, merr)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s, ok := session.From(ctx); ok && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.FromTransport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.FromTransport(op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fault.FromResponse(op, resp.StatusCode, data)
	}
	return data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
