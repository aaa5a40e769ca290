package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/metrics"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/ratelimit"
)

const (
	PathSearch    = "/paquetes-paginados"
	PathPackage   = "/get_paquete2/"
	PathLocations = "/ubicaciones"
	PathAgency    = "/agencias/"
	PathContact   = "/api/contact"
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelays []time.Duration
	RateLimiter *ratelimit.EndpointLimiter
	HTTPClient  *http.Client
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelays: []time.Duration{
			100 * time.Millisecond,
			300 * time.Millisecond,
		},
	}
}

// Client talks to the packages API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	config  Config
	logger  *zap.Logger
}

func NewClient(config Config, logger *zap.Logger) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    httpClient,
		config:  config,
		logger:  logger.Named("upstream"),
	}
}

func (c *Client) SearchPackages(ctx context.Context, params url.Values) (*models.PackagePage, error) {
	path := PathSearch
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page models.PackagePage
	if err := c.do(ctx, ratelimit.EndpointSearch, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []models.Package{}
	}
	return &page, nil
}

// GetPackage escapes id itself; callers pass the trimmed raw value.
func (c *Client) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	var env models.PackageEnvelope
	if err := c.do(ctx, ratelimit.EndpointPackage, http.MethodGet, PathPackage+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &StatusError{Endpoint: ratelimit.EndpointPackage, StatusCode: http.StatusNotFound}
	}
	return env.Data, nil
}

func (c *Client) Locations(ctx context.Context, q string) ([]models.Place, error) {
	var places []models.Place
	path := PathLocations + "?" + url.Values{"q": []string{q}}.Encode()
	if err := c.do(ctx, ratelimit.EndpointLocation, http.MethodGet, path, nil, &places); err != nil {
		return nil, err
	}
	return places, nil
}

func (c *Client) Agency(ctx context.Context, id string) (*models.AgencyConfig, error) {
	var env models.AgencyEnvelope
	if err := c.do(ctx, ratelimit.EndpointAgency, http.MethodGet, PathAgency+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%s: %w", ratelimit.EndpointAgency, ErrDecode)
	}
	return env.Data, nil
}

func (c *Client) SubmitContact(ctx context.Context, msg models.ContactMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.do(ctx, ratelimit.EndpointContact, http.MethodPost, PathContact, body, nil)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte, out any) error {
	if c.config.RateLimiter != nil {
		if err := c.config.RateLimiter.Wait(ctx, endpoint); err != nil {
			return NewRequestError(endpoint, err)
		}
	}

	maxRetries := c.config.MaxRetries
	if method != http.MethodGet {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return NewRequestError(endpoint, ctx.Err())
		default:
		}

		if attempt > 0 && len(c.config.RetryDelays) > 0 {
			delayIdx := attempt - 1
			if delayIdx >= len(c.config.RetryDelays) {
				delayIdx = len(c.config.RetryDelays) - 1
			}

			select {
			case <-time.After(c.config.RetryDelays[delayIdx]):
			case <-ctx.Done():
				return NewRequestError(endpoint, ctx.Err())
			}
		}

		err := c.once(ctx, endpoint, method, path, body, out)
		if err == nil {
			return nil
		}

		lastErr = err
		if !retryable(err) {
			break
		}
		c.logger.Warn("upstream attempt failed",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return lastErr
}

func (c *Client) once(ctx context.Context, endpoint, method, path string, body []byte, out any) error {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return NewRequestError(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome := "transport_error"
		if IsCanceled(err) {
			outcome = "canceled"
		}
		metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
		return NewRequestError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		metrics.UpstreamRequests.WithLabelValues(endpoint, "status_"+statusClass(resp.StatusCode)).Inc()
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if out == nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "canceled").Inc()
			return NewRequestError(endpoint, ctxErr)
		}
		metrics.UpstreamRequests.WithLabelValues(endpoint, "decode_error").Inc()
		return NewRequestError(endpoint, fmt.Errorf("%w: %v", ErrDecode, err))
	}

	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func statusClass(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "404"
	case code >= 500:
		return "5xx"
	default:
		return "4xx"
	}
}
