package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/version"
)

const (
	// DefaultOrigin is where the backend listens when nothing else is configured
	DefaultOrigin = "http://localhost:5000"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries the per-request UUID
	RequestIDHeader = "X-Request-ID"

	// maxErrorBody bounds how much of a failed response is read for its message
	maxErrorBody = 4096
)

// Backend API paths
const (
	PathHealth      = "/api/health"
	PathNetworkInfo = "/api/network/info"
	PathDevices     = "/api/devices"
	PathScanNetwork = "/api/scan/network"
	PathWifiScan    = "/api/wifi/scan"
	PathDNSTest     = "/api/dns/test"
	PathPing        = "/api/ping/"
)

// Client issues request/response calls against one backend origin
type Client struct {
	// BaseURL is the backend origin (e.g., "http://localhost:5000")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// UserAgent is sent with every request
	UserAgent string
}

// NewClient creates a client for the given origin.
// The origin must be an absolute http or https URL; any path is discarded.
func NewClient(origin string) (*Client, error) {
	base, err := NormalizeOrigin(origin)
	if err != nil {
		return nil, err
	}

	return &Client{
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  version.UserAgent(),
	}, nil
}

// NormalizeOrigin validates an origin and strips any path, query or fragment
func NormalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", NewValidationError("backend origin is empty")
	}
	if !strings.Contains(origin, "://") {
		origin = "http://" + origin
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid backend origin %q: %v", origin, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", NewValidationError(fmt.Sprintf("unsupported scheme %q (expected http or https)", u.Scheme))
	}
	if u.Host == "" {
		return "", NewValidationError(fmt.Sprintf("backend origin %q has no host", origin))
	}

	return u.Scheme + "://" + u.Host, nil
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Request performs one call against the backend. body, when non-nil, is sent
// as JSON; out, when non-nil, receives the decoded JSON response.
// There are no retries.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return NewValidationError(fmt.Sprintf("failed to create %s request: %v", method, err))
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.LogHTTPRequest(requestID, method, path)
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	logging.LogHTTPResponse(requestID, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpErrorFromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewParseError(fmt.Sprintf("failed to parse %s response", path), err)
	}

	return nil
}

// httpErrorFromResponse turns a non-2xx response into an HTTP error,
// preferring the backend's {"error": "..."} message when present.
func httpErrorFromResponse(resp *http.Response) *Error {
	message := http.StatusText(resp.StatusCode)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}

	return NewHTTPError(resp.StatusCode, message)
}

// Health checks GET /api/health
func (c *Client) Health(ctx context.Context) (models.HealthStatus, error) {
	var health models.HealthStatus
	err := c.Request(ctx, http.MethodGet, PathHealth, nil, &health)
	return health, err
}

// NetworkInfo fetches GET /api/network/info
func (c *Client) NetworkInfo(ctx context.Context) (models.NetworkInfo, error) {
	var info models.NetworkInfo
	err := c.Request(ctx, http.MethodGet, PathNetworkInfo, nil, &info)
	return info, err
}

type devicesResponse struct {
	Devices []models.Device `json:"devices"`
	Count   *int            `json:"count,omitempty"`
}

// Devices fetches the backend's known devices, newest first
func (c *Client) Devices(ctx context.Context) ([]models.Device, error) {
	var resp devicesResponse
	if err := c.Request(ctx, http.MethodGet, PathDevices, nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Devices), nil
}

// ScanNetwork triggers a scan and returns the devices it found
func (c *Client) ScanNetwork(ctx context.Context) ([]models.Device, error) {
	var resp devicesResponse
	if err := c.Request(ctx, http.MethodPost, PathScanNetwork, nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Devices), nil
}

// ScanWifi lists visible access points. A response without a networks
// field yields an empty, non-nil slice.
func (c *Client) ScanWifi(ctx context.Context) ([]models.WifiNetwork, error) {
	var resp struct {
		Networks []models.WifiNetwork `json:"networks"`
	}
	if err := c.Request(ctx, http.MethodGet, PathWifiScan, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Networks == nil {
		return []models.WifiNetwork{}, nil
	}
	return resp.Networks, nil
}

// TestDNS runs the backend's DNS test batch. Every result is normalized so
// that failed entries never carry an address or elapsed time.
func (c *Client) TestDNS(ctx context.Context) ([]models.DnsResult, error) {
	var resp struct {
		Results []models.DnsResult `json:"results"`
	}
	if err := c.Request(ctx, http.MethodGet, PathDNSTest, nil, &resp); err != nil {
		return nil, err
	}

	results := make([]models.DnsResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = r.Normalize()
	}
	return results, nil
}

// Ping asks the backend to ping one address.
// Anything but a dotted IPv4 address is rejected without a request.
func (c *Client) Ping(ctx context.Context, ip string) (models.PingResult, error) {
	// The backend's ping route only accepts dotted IPv4
	if addr := net.ParseIP(ip); addr == nil || addr.To4() == nil || strings.Contains(ip, ":") {
		return models.PingResult{}, NewValidationError(fmt.Sprintf("invalid IPv4 address %q", ip))
	}

	var result models.PingResult
	err := c.Request(ctx, http.MethodGet, PathPing+url.PathEscape(ip), nil, &result)
	return result, err
}

func nonNil(devices []models.Device) []models.Device {
	if devices == nil {
		return []models.Device{}
	}
	return devices
}
