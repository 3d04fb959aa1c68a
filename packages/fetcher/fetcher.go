// Package fetcher issues product-page requests through the scraping proxy and
// normalizes every outcome into a domain.FetchResult.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"scrapemonitor/packages/classifier"
	"scrapemonitor/packages/domain"
)

const (
	TargetPlaceholder = "{id}"
	maxBodyBytes      = 8 << 20
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	unknownIP         = "unknown"
)

var ErrProxyNotConfigured = errors.New("proxy host/port not configured")

type Config struct {
	ProxyScheme       string
	ProxyHost         string
	ProxyPort         string
	ProxyUsername     string
	ProxyPassword     string
	ProxyURLParam     string
	TargetURLTemplate string
	EgressProbeURL    string
	Timeout           time.Duration
}

type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.ProxyHost == "" || cfg.ProxyPort == "" {
		return nil, ErrProxyNotConfigured
	}
	if cfg.ProxyScheme == "" {
		cfg.ProxyScheme = "http"
	}
	if cfg.ProxyURLParam == "" {
		cfg.ProxyURLParam = "url"
	}
	if !strings.Contains(cfg.TargetURLTemplate, TargetPlaceholder) {
		return nil, fmt.Errorf("target url template %q has no %s placeholder", cfg.TargetURLTemplate, TargetPlaceholder)
	}

	endpoint := url.URL{
		Scheme: cfg.ProxyScheme,
		Host:   net.JoinHostPort(cfg.ProxyHost, cfg.ProxyPort),
		Path:   "/",
	}
	return &Client{
		cfg:        cfg,
		endpoint:   endpoint.String(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// TargetURL renders the origin URL for a target.
func (c *Client) TargetURL(target domain.Target) string {
	return strings.ReplaceAll(c.cfg.TargetURLTemplate, TargetPlaceholder, target.String())
}

// Fetch performs one proxied GET for target. It never fails: transport and
// HTTP failures are captured in the result.
func (c *Client) Fetch(ctx context.Context, target domain.Target) domain.FetchResult {
	realURL := c.TargetURL(target)
	slog.Debug("Fetching target through proxy", "target", int64(target), "url", realURL)

	start := time.Now()
	proxyStatus, raw, err := c.get(ctx, realURL)
	elapsed := time.Since(start)

	res := domain.FetchResult{Target: target, ResponseTime: elapsed}
	if err != nil {
		return resultFromTransportError(res, err)
	}

	status, body := unwrapEnvelope(proxyStatus, raw)
	res.HTTPStatus = status
	res.ProxyStatus = proxyStatus
	res.Body = body
	if proxyStatus < 200 || proxyStatus >= 300 {
		res.Error = fmt.Sprintf("proxy responded with HTTP %d", proxyStatus)
	}
	res.Blocked, res.BlockType = classifier.Classify(status, body)
	return res
}

// ProbeEgressIP asks a public IP echo service, through the proxy, which
// address our traffic appears to come from. It returns "unknown" on failure.
func (c *Client) ProbeEgressIP(ctx context.Context) string {
	status, raw, err := c.get(ctx, c.cfg.EgressProbeURL)
	if err != nil {
		slog.Warn("Egress IP probe failed", "error", err)
		return unknownIP
	}
	if status < 200 || status >= 300 {
		slog.Warn("Egress IP probe returned bad status", "status_code", status)
		return unknownIP
	}
	_, body := unwrapEnvelope(status, raw)
	if ip := parseEchoedIP(body); ip != "" {
		return ip
	}
	return unknownIP
}

func (c *Client) get(ctx context.Context, realURL string) (int, []byte, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return 0, nil, err
	}
	q := u.Query()
	q.Set(c.cfg.ProxyURLParam, realURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.ProxyUsername != "" || c.cfg.ProxyPassword != "" {
		req.SetBasicAuth(c.cfg.ProxyUsername, c.cfg.ProxyPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &bodyReadError{err: err}
	}
	return resp.StatusCode, body, nil
}

func resultFromTransportError(res domain.FetchResult, err error) domain.FetchResult {
	res.Error = err.Error()
	res.HTTPStatus = 0
	if isConnectionBlocked(err) {
		res.Blocked = true
		res.BlockType = domain.ConnectionBlocked
	}
	return res
}

// bodyReadError is a failure after the proxy's status line arrived.
type bodyReadError struct {
	err error
}

func (e *bodyReadError) Error() string { return "reading proxy response: " + e.err.Error() }

func (e *bodyReadError) Unwrap() error { return e.err }

// isConnectionBlocked reports whether err is a refused, reset, dropped or
// timed-out connection at the proxy hop. A dropped connection surfaces as EOF
// and only counts when it happened before any reply.
func isConnectionBlocked(err error) bool {
	var readErr *bodyReadError
	if !errors.As(err, &readErr) && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
