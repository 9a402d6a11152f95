package wpimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const userAgent = "airsync/1.0"

// ErrorKind classifies why a remote import action failed.
type ErrorKind int

const (
	// KindHTTP means the endpoint answered with a non-200 status.
	KindHTTP ErrorKind = iota
	// KindTimeout means the request deadline elapsed; whether the remote
	// side acted is unknown.
	KindTimeout
	// KindTransport covers connection and protocol failures below HTTP.
	KindTransport
	// KindRemoteRejected means HTTP 200 arrived but the body did not
	// confirm the action.
	KindRemoteRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http_error"
	case KindTimeout:
		return "timeout_error"
	case KindTransport:
		return "transport_error"
	case KindRemoteRejected:
		return "remote_rejected"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// RemoteError is the failure surface of all remote import actions.
type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("remote endpoint returned HTTP %d: %s", e.StatusCode, snippet(e.Body))
	case KindTimeout:
		return "remote request timed out, outcome uncertain"
	case KindTransport:
		return fmt.Sprintf("remote request failed: %v", e.Err)
	case KindRemoteRejected:
		return fmt.Sprintf("remote rejected action: %s", snippet(e.Body))
	default:
		return fmt.Sprintf("remote action failed (%s)", e.Kind)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Remote is the surface of the WP All Import HTTP endpoint used by the
// coordinator. Tests substitute a fake.
type Remote interface {
	Trigger(ctx context.Context, importID string) (string, error)
	Cancel(ctx context.Context, importID string) error
	ClearCache(ctx context.Context) (string, error)
}

// Client talks to the WP All Import endpoint over authenticated GETs.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

func NewClient(baseURL, key string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		key:     key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the JSON shape the endpoint wraps action results in.
type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

// Trigger asks the endpoint to launch the import and returns the remote
// confirmation message. Success requires HTTP 200 with a success
// envelope; anything else is a *RemoteError.
func (c *Client) Trigger(ctx context.Context, importID string) (string, error) {
	body, status, err := c.get(ctx, map[string]string{
		"import_id": importID,
		"action":    "run_cli",
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		log.Error().Int("status", status).Str("import_id", importID).Msg("Trigger request rejected")
		return "", &RemoteError{Kind: KindHTTP, StatusCode: status, Body: body}
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil || !env.Success || env.Data.Message == "" {
		log.Warn().Str("import_id", importID).Str("body", snippet(body)).Msg("Trigger got HTTP 200 but no confirmation")
		return "", &RemoteError{Kind: KindRemoteRejected, StatusCode: status, Body: body, Err: err}
	}

	log.Info().Str("import_id", importID).Str("message", env.Data.Message).Msg("Import trigger confirmed")
	return env.Data.Message, nil
}

// Cancel asks the endpoint to stop a running import. The endpoint
// acknowledges with plain text rather than JSON.
func (c *Client) Cancel(ctx context.Context, importID string) error {
	body, status, err := c.get(ctx, map[string]string{
		"import_id": importID,
		"action":    "cancel",
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &RemoteError{Kind: KindHTTP, StatusCode: status, Body: body}
	}

	lower := strings.ToLower(body)
	if !strings.Contains(lower, "cancelled") && !strings.Contains(lower, "stopped") {
		return &RemoteError{Kind: KindRemoteRejected, StatusCode: status, Body: body}
	}

	log.Info().Str("import_id", importID).Msg("Import cancellation acknowledged")
	return nil
}

// ClearCache asks the endpoint to flush the site page cache and returns
// the remote confirmation message.
func (c *Client) ClearCache(ctx context.Context) (string, error) {
	body, status, err := c.get(ctx, map[string]string{
		"action": "clear_breeze_cache",
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &RemoteError{Kind: KindHTTP, StatusCode: status, Body: body}
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return "", &RemoteError{Kind: KindRemoteRejected, StatusCode: status, Body: body, Err: err}
	}
	if !env.Success {
		return "", &RemoteError{Kind: KindRemoteRejected, StatusCode: status, Body: body}
	}

	message := env.Data.Message
	if message == "" {
		message = "Cache cleared successfully."
	}
	log.Info().Str("message", message).Msg("Site cache cleared")
	return message, nil
}

func (c *Client) get(ctx context.Context, params map[string]string) (string, int, error) {
	q := url.Values{}
	q.Set("import_key", c.key)
	// Cache buster, the endpoint sits behind an aggressive page cache.
	q.Set("rand", fmt.Sprintf("%d", rand.Int63()))
	for k, v := range params {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, &RemoteError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &RemoteError{Kind: KindTransport, Err: err}
	}
	return string(body), resp.StatusCode, nil
}

func classifyTransport(err error) *RemoteError {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &RemoteError{Kind: KindTimeout, Err: err}
	}
	return &RemoteError{Kind: KindTransport, Err: err}
}

func snippet(body string) string {
	if len(body) > 200 {
		return body[:200]
	}
	if body == "" {
		return "(no response body)"
	}
	return body
}
