// Package gateway talks to the remote complaint store over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jalrakshak-monitor/internal/models"
)

// DefaultTimeout bounds every request when no timeout is configured
const DefaultTimeout = 4 * time.Second

// Client implements the complaint store contract
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New creates a client for the store rooted at baseURL
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger.With("component", "gateway"),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// ListComplaints fetches the full collection
func (c *Client) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	var out []models.Complaint
	if err := c.do(ctx, http.MethodGet, "/api/complaints", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Complaint{}
	}
	return out, nil
}

// CreateComplaint submits a new complaint and returns the stored record
func (c *Client) CreateComplaint(ctx context.Context, in models.NewComplaint) (models.Complaint, error) {
	var out models.Complaint
	if err := c.do(ctx, http.MethodPost, "/api/complaints", in, &out); err != nil {
		return models.Complaint{}, err
	}
	if out.ID == "" {
		return models.Complaint{}, fmt.Errorf("%w: created record has no id", models.ErrMalformedPayload)
	}
	return out, nil
}

// UpdateComplaint applies a status update and returns the stored record
func (c *Client) UpdateComplaint(ctx context.Context, id string, upd models.StatusUpdate) (models.Complaint, error) {
	var out models.Complaint
	if err := c.do(ctx, http.MethodPatch, "/api/complaints/"+url.PathEscape(id), upd, &out); err != nil {
		return models.Complaint{}, err
	}
	if out.ID == "" {
		return models.Complaint{}, fmt.Errorf("%w: updated record has no id", models.ErrMalformedPayload)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request_failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", models.ErrTransport, err)
	}
	c.log.Debug("request_done", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, models.ErrNotFound)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return fmt.Errorf("%w: %s %s: %d %s", models.ErrServiceUnavailable, method, path, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedPayload, decodeErr)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s", models.ErrServiceUnavailable, env.Error)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: empty data", models.ErrMalformedPayload)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	return nil
}

// IsUnavailable reports whether err means the store could not serve the call
func IsUnavailable(err error) bool {
	return errors.Is(err, models.ErrTransport) ||
		errors.Is(err, models.ErrServiceUnavailable) ||
		errors.Is(err, models.ErrMalformedPayload)
}
