package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"airsync/internal/retry"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Record is one row from the upstream table, identified by the stable
// Airtable-assigned record id. It is a read-only snapshot per sync run.
type Record struct {
	ID     string
	Fields map[string]Value
}

// FetchError reports a page fetch that failed after the retry budget was
// exhausted. Pages fetched before the failure are discarded.
type FetchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("airtable fetch failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("airtable fetch failed: %s", e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Client struct {
	token      string
	baseURL    string
	pageSize   int
	httpClient *http.Client
	pacer      *rate.Limiter
	retryCfg   retry.Config
}

// NewClient builds a fetcher for one Airtable token. interPageDelay paces
// successive page requests; retryCfg bounds per-page retries.
func NewClient(token string, pageSize int, interPageDelay time.Duration, retryCfg retry.Config) *Client {
	return &Client{
		token:    token,
		baseURL:  defaultBaseURL,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pacer:    rate.NewLimiter(rate.Every(interPageDelay), 1),
		retryCfg: retryCfg,
	}
}

// WithBaseURL points the client at a different API root. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type pageResponse struct {
	Records []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
	Offset string `json:"offset"`
}

// FetchAll pages through the table until the source stops returning an
// offset cursor, returning the complete record set. A page that fails
// after all retries aborts the whole fetch with a FetchError; no partial
// result is surfaced.
func (c *Client) FetchAll(ctx context.Context, baseID, tableID, view string, fields []string) ([]Record, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, baseID, url.PathEscape(tableID))

	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	if view != "" {
		params.Set("view", view)
	}
	for _, f := range fields {
		params.Add("fields[]", f)
	}

	var all []Record
	offset := ""
	page := 0

	for {
		page++
		pageParams := params
		if offset != "" {
			pageParams = url.Values{}
			for k, v := range params {
				pageParams[k] = v
			}
			pageParams.Set("offset", offset)
		}
		pageURL := endpoint + "?" + pageParams.Encode()

		resp, err := retry.WithRetry(ctx, c.retryCfg, func(ctx context.Context) (*pageResponse, error) {
			return c.fetchPage(ctx, pageURL, page)
		})
		if err != nil {
			var fe *FetchError
			if !errors.As(err, &fe) {
				fe = &FetchError{Message: err.Error(), Err: err}
			}
			log.Error().
				Err(err).
				Int("page", page).
				Int("records_discarded", len(all)).
				Msg("Airtable fetch failed after retries")
			return nil, fe
		}

		for _, rec := range resp.Records {
			if rec.ID == "" {
				continue
			}
			fields := make(map[string]Value, len(rec.Fields))
			for name, raw := range rec.Fields {
				fields[name] = DecodeValue(raw)
			}
			all = append(all, Record{ID: rec.ID, Fields: fields})
		}

		if resp.Offset == "" {
			break
		}
		offset = resp.Offset

		// Pause between pages to be kind to the API
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, &FetchError{Message: err.Error(), Err: err}
		}
	}

	log.Info().
		Int("records", len(all)).
		Int("pages", page).
		Msg("Fetched Airtable records")

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string, page int) (*pageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests {
			log.Warn().
				Int("page", page).
				Msg("Rate limited (429), will back off and retry page")
		} else {
			log.Warn().
				Int("page", page).
				Int("status_code", resp.StatusCode).
				Str("body_snippet", string(body)).
				Msg("HTTP error fetching page, will back off and retry")
		}
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var pr pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &pr, nil
}
