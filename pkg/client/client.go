// Package client talks to a running micro registry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MSSkowron/MicroURL/internal/dto"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the micro does not exist or has expired.
	ErrNotFound = errors.New("micro not found")
	// ErrBadRequest is returned when the registry rejects the request.
	ErrBadRequest = errors.New("bad request")
	// ErrUnavailable is returned when the registry store is unavailable.
	ErrUnavailable = errors.New("registry unavailable")
	// ErrUnexpectedResponse is returned for any other failed response.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Client is a REST client of the micro registry.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Opt configures a Client.
type Opt func(*Client)

// WithHTTPClient sets the HTTP client used for requests. Redirects are never followed.
func WithHTTPClient(httpClient *http.Client) Opt {
	return func(c *Client) {
		copied := *httpClient
		c.httpClient = &copied
	}
}

// NewClient creates a new Client for the registry served at baseURL.
func NewClient(baseURL string, opts ...Opt) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("failed to parse registry url: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return c, nil
}

// Shorten registers destination and returns its micro.
func (c *Client) Shorten(ctx context.Context, destination string, public bool) (string, error) {
	body, err := json.Marshal(dto.ShortenRequestDTO{Destination: destination, Public: public})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/micros", nil, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	micro := dto.MicroDTO{}
	if err := json.NewDecoder(resp.Body).Decode(&micro); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return micro.Code, nil
}

// Resolve returns the redirect target of code. Every call counts as a hit.
func (c *Client) Resolve(ctx context.Context, code string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(code), nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", responseError(resp)
	}

	return resp.Header.Get("Location"), nil
}

// Top returns up to limit public micros with the most hits. A non-positive limit uses the server default.
func (c *Client) Top(ctx context.Context, limit int) (dto.OrderedMicros, error) {
	return c.listing(ctx, "/api/micros/top", limit)
}

// Recent returns up to limit of the most recently registered public micros.
func (c *Client) Recent(ctx context.Context, limit int) (dto.OrderedMicros, error) {
	return c.listing(ctx, "/api/micros/recent", limit)
}

func (c *Client) listing(ctx context.Context, path string, limit int) (dto.OrderedMicros, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	micros := dto.OrderedMicros{}
	if err := json.NewDecoder(resp.Body).Decode(&micros); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// An empty listing is rendered as a single placeholder with an empty micro.
	if len(micros) == 1 && micros[0].Code == "" {
		return dto.OrderedMicros{}, nil
	}

	return micros, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

func responseError(resp *http.Response) error {
	message := resp.Status
	errorDTO := dto.ErrorDTO{}
	if err := json.NewDecoder(resp.Body).Decode(&errorDTO); err == nil && errorDTO.Error != "" {
		message = errorDTO.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, message)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	default:
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedResponse, resp.StatusCode, strings.TrimSpace(message))
	}
}

// CheckHealth asks the gRPC health service at address for the status of service.
// An empty service name reports the overall server health.
func CheckHealth(ctx context.Context, address, service string) (string, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("failed to connect to server: %w", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("failed to check health: %w", err)
	}

	return resp.GetStatus().String(), nil
}
