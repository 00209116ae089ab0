// Package freeipa implements a session-authenticated client for the FreeIPA
// JSON-RPC API. A Client establishes a cookie-based session via the
// form-encoded login_password endpoint, then issues versioned JSON-RPC
// requests that carry the session cookie and Referer forward.
//
// The lifecycle is strictly linear: SetHostname, SetVersion, Login, then RPC
// calls. A Client represents a single logical session and is not safe for
// concurrent use; the referer and default headers mutate on login.
package freeipa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"gitlab.bluewillows.net/root/ipadns/internal/metrics"
	"gitlab.bluewillows.net/root/ipadns/pkg/httputil"
)

// FreeIPA session endpoints, relative to https://<hostname>.
const (
	loginPath = "/ipa/session/login_password"
	rpcPath   = "/ipa/session/json"
)

var versionRe = regexp.MustCompile(`^[.0-9]+$`)

// Client holds a session with a FreeIPA server.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	hostname      string
	baseURL       string
	referer       string
	apiVersion    string
	authenticated bool

	// Request IDs are owned by the instance so that independent sessions
	// never share a counter.
	nextID atomic.Uint64
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The client should carry a cookie
// jar, otherwise the session cookie issued at login is lost.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an unauthenticated FreeIPA client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: httputil.DefaultClient(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetHostname stores the server hostname and derives the base URL and the
// initial Referer from it. Calling it a second time is rejected with a
// StateError rather than silently ignored, so a misconfigured session fails
// loudly instead of talking to the wrong host.
func (c *Client) SetHostname(hostname string) error {
	if hostname == "" {
		return errMissing("hostname")
	}
	if c.hostname != "" {
		return &StateError{Message: fmt.Sprintf("hostname already configured as %q", c.hostname)}
	}

	c.hostname = hostname
	c.baseURL = "https://" + hostname
	c.referer = c.baseURL

	c.logger.Debug("hostname configured",
		slog.String("hostname", hostname),
		slog.String("base_url", c.baseURL),
	)

	return nil
}

// Hostname returns the configured server hostname, or "" if unset.
func (c *Client) Hostname() string {
	return c.hostname
}

// SetVersion stores the API version string injected into every RPC call.
func (c *Client) SetVersion(version string) error {
	if !versionRe.MatchString(version) {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("%q does not match %s", version, versionRe.String()),
		}
	}

	c.apiVersion = version
	return nil
}

// Version returns the configured API version, or "" if unset.
func (c *Client) Version() string {
	return c.apiVersion
}

// Login authenticates against the login_password endpoint. On success the
// server-issued session cookie is retained by the HTTP client's jar and the
// Referer used for subsequent RPC calls moves to the /ipa origin. The HTTP
// status code is returned in both the success and failure cases.
func (c *Client) Login(ctx context.Context, username, password string) (int, error) {
	if username == "" {
		return 0, errMissing("username")
	}
	if password == "" {
		return 0, errMissing("password")
	}
	if c.hostname == "" {
		return 0, &StateError{Message: "hostname must be configured before login"}
	}

	form := url.Values{}
	form.Set("user", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.referer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordLogin(false)
		return 0, fmt.Errorf("executing login request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		metrics.RecordLogin(false)
		return resp.StatusCode, &AuthenticationError{
			Username:   username,
			StatusCode: resp.StatusCode,
		}
	}

	c.referer = c.baseURL + "/ipa"
	c.authenticated = true
	metrics.RecordLogin(true)

	c.logger.Info("authenticated with FreeIPA",
		slog.String("hostname", c.hostname),
		slog.String("username", username),
	)

	return resp.StatusCode, nil
}

// Authenticated reports whether a login has succeeded on this client.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// Ping verifies the session by calling the server's ping method.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", nil)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
