package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

const (
	defaultBaseURL          = "https://app.sandbox.midtrans.com"
	defaultTimeout          = 15 * time.Second
	defaultBreakerFailures  = 5
	defaultBreakerOpenFor   = 30 * time.Second
	defaultBreakerHalfOpens = 1
	snapTransactionsPath    = "snap/v1/transactions"
	responseBodyReadLimit   = 1024
	breakerName             = "midtrans-snap"
)

// Call results reported to a CallRecorder.
const (
	ResultSuccess     = "success"
	ResultError       = "error"
	ResultBreakerOpen = "breaker_open"
)

var errServerKeyRequired = errors.New("midtrans server key is required")

// APIError is a non-2xx answer from the Snap API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("snap status %d: %s", e.StatusCode, e.Body)
}

// CallRecorder observes outbound gateway calls.
type CallRecorder interface {
	GatewayCall(result string)
}

// Client talks to the Midtrans Snap API and verifies its notifications.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serverKey  string
	breaker    *gobreaker.CircuitBreaker[*SnapResponse]
	breakerCfg BreakerSettings
	logg       *logger.Logger
	recorder   CallRecorder
}

// BreakerSettings tunes the circuit breaker guarding Snap calls.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenFor             time.Duration
	HalfOpenRequests    uint32
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithBaseURL overrides the Snap host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithBreaker overrides the circuit breaker thresholds. Zero fields keep defaults.
func WithBreaker(settings BreakerSettings) Option {
	return func(c *Client) {
		if settings.ConsecutiveFailures > 0 {
			c.breakerCfg.ConsecutiveFailures = settings.ConsecutiveFailures
		}
		if settings.OpenFor > 0 {
			c.breakerCfg.OpenFor = settings.OpenFor
		}
		if settings.HalfOpenRequests > 0 {
			c.breakerCfg.HalfOpenRequests = settings.HalfOpenRequests
		}
	}
}

// WithLogger logs breaker state changes.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// WithRecorder reports each call's result.
func WithRecorder(recorder CallRecorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// NewClient builds the Snap client given the merchant server key.
func NewClient(serverKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(serverKey)
	if trimmedKey == "" {
		return nil, errServerKeyRequired
	}

	client := &Client{
		serverKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		breakerCfg: BreakerSettings{
			ConsecutiveFailures: defaultBreakerFailures,
			OpenFor:             defaultBreakerOpenFor,
			HalfOpenRequests:    defaultBreakerHalfOpens,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	client.breaker = gobreaker.NewCircuitBreaker[*SnapResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: client.breakerCfg.HalfOpenRequests,
		Timeout:     client.breakerCfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= client.breakerCfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// rejected payloads say nothing about gateway health
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if client.logg == nil {
				return
			}
			ctx := client.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			client.logg.Warn(ctx, "payment gateway circuit breaker state changed")
		},
	})

	return client, nil
}

// CreateTransaction opens a Snap transaction and returns its redirect URL.
func (c *Client) CreateTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	if c == nil {
		return nil, pkgerrors.PaymentGateway(errServerKeyRequired, "payment gateway client not configured")
	}

	resp, err := c.breaker.Execute(func() (*SnapResponse, error) {
		return c.postTransaction(ctx, req)
	})
	switch {
	case err == nil:
		c.record(ResultSuccess)
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.record(ResultBreakerOpen)
		return nil, pkgerrors.PaymentGateway(err, "payment gateway temporarily unavailable")
	default:
		c.record(ResultError)
		return nil, pkgerrors.PaymentGateway(err, "create payment transaction failed")
	}
}

func (c *Client) postTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal snap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(snapTransactionsPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build snap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute snap request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out SnapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode snap response: %w", err)
	}
	if out.RedirectURL == "" {
		return nil, fmt.Errorf("snap response missing redirect_url")
	}
	return &out, nil
}

// VerifyNotification reports whether the notification carries a signature
// produced with this merchant's server key.
func (c *Client) VerifyNotification(n Notification) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.serverKey, n)
}

func (c *Client) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.serverKey+":"))
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func (c *Client) record(result string) {
	if c.recorder != nil {
		c.recorder.GatewayCall(result)
	}
}
