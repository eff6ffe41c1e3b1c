package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/posecoach/internal/coach"
)

// ingestRequest and ingestResult mirror the server's ingest types without
// importing the server package (which would pull in pgx and tailscale).
type ingestRequest struct {
	Source   string          `json:"source"`
	User     string          `json:"user,omitempty"`
	Sessions []coach.Summary `json:"sessions"`
}

// IngestResult reports what the server stored for one upload.
type IngestResult struct {
	SessionsReceived int `json:"sessions_received"`
	SessionsInserted int `json:"sessions_inserted"`
	Duplicates       int `json:"duplicates"`
	RepsReceived     int `json:"reps_received"`
}

// Client sends replayed sets to the PoseCoach server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	user       string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the PoseCoach server. user may be
// empty, in which case the server files the sets under its default user.
func NewClient(serverURL, apiKey, user string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		user:      user,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// SendSessions POSTs finished sets to the server's ingest endpoint.
// Retries up to 3 times with exponential backoff on failure. Client errors
// (4xx) are not retried.
func (c *Client) SendSessions(ctx context.Context, sets []coach.Summary) (*IngestResult, error) {
	data, err := json.Marshal(ingestRequest{Source: "replay", User: c.user, Sessions: sets})
	if err != nil {
		return nil, fmt.Errorf("marshaling sets: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		result, retry, err := c.post(ctx, data)
		if err == nil {
			return result, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) post(ctx context.Context, data []byte) (*IngestResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/ingest/sessions", bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ingest failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
		return nil, resp.StatusCode >= http.StatusInternalServerError, err
	}

	var result IngestResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false, fmt.Errorf("decoding ingest result: %w", err)
	}
	return &result, false, nil
}
