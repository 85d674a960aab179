// Package featureservice queries ArcGIS REST map services, such as Census
// TIGERweb, for geography features.
package featureservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/resilience"
)

// Client queries layers of one map service.
type Client interface {
	// Query runs an attribute query against one layer.
	Query(ctx context.Context, layerID int, q QuerySpec) ([]Feature, error)

	// Describe lists the layers the service exposes.
	Describe(ctx context.Context) ([]LayerInfo, error)
}

// LayerInfo is one entry of the service's layer listing.
type LayerInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithCircuit sets the per-layer circuit breaker policy. Only transient
// errors count toward opening a circuit unless cfg says otherwise.
func WithCircuit(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *client) {
		if cfg.ShouldTrip == nil {
			cfg.ShouldTrip = resilience.IsTransient
		}
		c.breakers = resilience.NewBreakers(cfg)
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breakers   *resilience.Breakers
}

// NewClient returns a Client for the map service rooted at baseURL, for
// example .../TIGERweb/tigerWMS_ACS2024/MapServer.
func NewClient(baseURL string, opts ...Option) Client {
	circuit := resilience.DefaultCircuitBreakerConfig()
	circuit.ShouldTrip = resilience.IsTransient

	c := &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryConfig(),
		breakers:   resilience.NewBreakers(circuit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryResponse struct {
	Features              []Feature               `json:"features"`
	SpatialReference      *model.SpatialReference `json:"spatialReference"`
	ExceededTransferLimit bool                    `json:"exceededTransferLimit"`
	Error                 *ServiceError           `json:"error"`
}

// Query runs q against layerID with retry and a per-layer circuit breaker.
func (c *client) Query(ctx context.Context, layerID int, q QuerySpec) ([]Feature, error) {
	endpoint := fmt.Sprintf("%s/%d/query", c.baseURL, layerID)
	form := q.values()
	cb := c.breakers.Get(fmt.Sprintf("layer-%d", layerID))

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("featureservice", fmt.Sprintf("query layer %d", layerID))

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]Feature, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) ([]Feature, error) {
			return c.query(ctx, layerID, endpoint, form)
		})
	})
}

func (c *client) query(ctx context.Context, layerID int, endpoint string, form url.Values) ([]Feature, error) {
	var resp queryResponse
	if err := c.post(ctx, endpoint, form, &resp); err != nil {
		return nil, eris.Wrapf(err, "featureservice: query layer %d", layerID)
	}

	if resp.Error != nil {
		resp.Error.Layer = layerID
		if resilience.IsTransientHTTPStatus(resp.Error.Code) {
			return nil, resilience.NewTransientError(resp.Error, resp.Error.Code)
		}
		return nil, resp.Error
	}

	for i := range resp.Features {
		g := resp.Features[i].Geometry
		if g != nil && g.SpatialReference == nil && resp.SpatialReference != nil {
			sr := *resp.SpatialReference
			g.SpatialReference = &sr
		}
	}

	zap.L().Debug("featureservice: query complete",
		zap.Int("layer", layerID),
		zap.String("where", form.Get("where")),
		zap.Int("features", len(resp.Features)),
		zap.Bool("exceeded_transfer_limit", resp.ExceededTransferLimit),
	)
	return resp.Features, nil
}

// Describe lists the service's layers.
func (c *client) Describe(ctx context.Context) ([]LayerInfo, error) {
	var resp struct {
		Layers []LayerInfo   `json:"layers"`
		Error  *ServiceError `json:"error"`
	}
	err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.post(ctx, c.baseURL, url.Values{"f": {"json"}}, &resp)
	})
	if err != nil {
		return nil, eris.Wrap(err, "featureservice: describe service")
	}
	if resp.Error != nil {
		resp.Error.Layer = -1
		return nil, resp.Error
	}
	return resp.Layers, nil
}

// post sends a form-encoded request and decodes the JSON response into out.
// Long OR-joined where clauses do not fit in a URL, so queries always POST.
func (c *client) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
