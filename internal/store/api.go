package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/resilience"
)

// APIError is a non-2xx response from the market-area backend. Detail is
// the server's message, suitable for showing to users as-is.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: http %d: %s", e.StatusCode, e.Detail)
}

// APIClient implements Store against the market-area REST backend:
// /projects/{project}/market-areas/[{id}/].
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// NewAPIClient returns a client for the backend at baseURL. An empty token
// sends no Authorization header.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
}

// apiMarketArea carries the server-assigned fields of a market area.
type apiMarketArea struct {
	ID        string    `json:"id"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *APIClient) AddMarketArea(ctx context.Context, projectID string, d *model.MarketAreaDraft) (*model.SavedMarketArea, error) {
	draft, err := prepare(d)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, eris.Wrap(err, "api: marshal market area")
	}

	var raw json.RawMessage
	// Creates are not idempotent, so only the request itself is sent once.
	if err := c.do(ctx, http.MethodPost, c.areasURL(projectID), body, &raw, false); err != nil {
		return nil, err
	}
	return decodeSaved(projectID, raw)
}

func (c *APIClient) ListMarketAreas(ctx context.Context, projectID string) ([]model.SavedMarketArea, error) {
	var raws []json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.areasURL(projectID), nil, &raws, true); err != nil {
		return nil, err
	}
	out := make([]model.SavedMarketArea, 0, len(raws))
	for _, raw := range raws {
		saved, err := decodeSaved(projectID, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *saved)
	}
	return out, nil
}

func (c *APIClient) GetMarketArea(ctx context.Context, projectID, id string) (*model.SavedMarketArea, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.areaURL(projectID, id), nil, &raw, true); err != nil {
		return nil, err
	}
	return decodeSaved(projectID, raw)
}

func (c *APIClient) DeleteMarketArea(ctx context.Context, projectID, id string) error {
	return c.do(ctx, http.MethodDelete, c.areaURL(projectID, id), nil, nil, true)
}

// Migrate is a no-op; the backend owns its schema.
func (c *APIClient) Migrate(context.Context) error { return nil }

func (c *APIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *APIClient) areasURL(projectID string) string {
	return fmt.Sprintf("%s/projects/%s/market-areas/", c.baseURL, url.PathEscape(projectID))
}

func (c *APIClient) areaURL(projectID, id string) string {
	return c.areasURL(projectID) + url.PathEscape(id) + "/"
}

func decodeSaved(projectID string, raw json.RawMessage) (*model.SavedMarketArea, error) {
	var meta apiMarketArea
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, eris.Wrap(err, "api: decode market area")
	}
	var d model.MarketAreaDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, eris.Wrap(err, "api: decode market area payload")
	}
	return &model.SavedMarketArea{
		ID:        meta.ID,
		ProjectID: projectID,
		Order:     meta.Order,
		CreatedAt: meta.CreatedAt,
		Draft:     d,
	}, nil
}

func (c *APIClient) do(ctx context.Context, method, endpoint string, body []byte, out any, retry bool) error {
	cfg := c.retry
	if !retry {
		cfg.MaxAttempts = 1
	}
	cfg.OnRetry = resilience.RetryLogger("api", method+" "+endpoint)

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return eris.Wrap(err, "api: create request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return eris.Wrapf(err, "api: %s %s", method, endpoint)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return eris.Wrap(err, "api: read response")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data, resp.Status)}
			if resp.StatusCode == http.StatusNotFound {
				return eris.Wrapf(ErrNotFound, "api: %s", apiErr.Detail)
			}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return apiErr
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return eris.Wrap(json.Unmarshal(data, out), "api: decode response")
	})
}

// errorDetail extracts the message of an error body: detail, message or
// error keys, else the first field error, else fallback.
func errorDetail(data []byte, fallback string) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		if s := strings.TrimSpace(string(data)); s != "" && len(s) < 512 {
			return s
		}
		return fallback
	}
	for _, key := range []string{"detail", "message", "error"} {
		if s := messageOf(body[key]); s != "" {
			return s
		}
	}

	fields := make([]string, 0, len(body))
	for k := range body {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		if s := messageOf(body[k]); s != "" {
			if k == "non_field_errors" {
				return s
			}
			return k + ": " + s
		}
	}
	return fallback
}

func messageOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := messageOf(item); s != "" {
				return s
			}
		}
	case map[string]any:
		return messageOf(t["message"])
	}
	return ""
}
