package ilsws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/logging"
	"rostersync/internal/patron"
	"rostersync/internal/services"
)

const defaultAppID = "rostersync"

// HTTPDoer describes the HTTP client used by the adapter.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to ILSWS.
type Client struct {
	baseURL      string
	clientID     string
	appID        string
	sessionToken string
	override     string
	http         HTTPDoer
	logger       *slog.Logger
}

var _ patron.Client = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a client from upstream configuration.
func New(cfg config.Upstream, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ilsws", "init", "upstream.base_url is required", nil)
	}
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		appID = defaultAppID
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:      baseURL,
		clientID:     strings.TrimSpace(cfg.ClientID),
		appID:        appID,
		sessionToken: strings.TrimSpace(cfg.SessionToken),
		override:     strings.TrimSpace(cfg.PrivilegeOverride),
		http:         &http.Client{Timeout: timeout},
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// About pings the unauthenticated service description endpoint.
func (c *Client) About(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "aboutIlsWs", nil, nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError("about", resp)
	}
	return nil
}

// FindByBarcode fetches the identity with barcode. A 404 is "not found".
func (c *Client) FindByBarcode(ctx context.Context, barcode string) (*patron.Identity, error) {
	query := url.Values{"includeFields": {strings.Join(includeFields, ",")}}
	resp, err := c.do(ctx, http.MethodGet, "user/patron/barcode/"+url.PathEscape(barcode), query, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError("find by barcode", resp)
	}
	var env patronEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "ilsws", "find by barcode", "Failed to decode patron", err)
	}
	return decodePatron(env)
}

// FindByAlternateID searches the ALT_ID index for a single identity.
func (c *Client) FindByAlternateID(ctx context.Context, altID string) (*patron.Identity, error) {
	found, err := c.Search(ctx, patron.IndexAlternateID, altID, 1)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// Search queries an index. The upstream answers 400 for unparsable queries and
// 500 for records not yet indexed; both read as no results.
func (c *Client) Search(ctx context.Context, index, value string, limit int) ([]patron.Identity, error) {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{
		"q":             {fmt.Sprintf("%s:'%s'", index, value)},
		"rw":            {"1"},
		"ct":            {strconv.Itoa(limit)},
		"includeFields": {strings.Join(includeFields, ",")},
	}
	resp, err := c.do(ctx, http.MethodGet, "user/patron/search", query, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusInternalServerError:
		return nil, nil
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, statusError("search", resp)
	}
	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "ilsws", "search", "Failed to decode search response", err)
	}
	out := make([]patron.Identity, 0, len(body.Result))
	for _, env := range body.Result {
		id, err := decodePatron(env)
		if err != nil {
			return nil, services.Wrap(services.ErrUpstreamUnavailable, "ilsws", "search", "Failed to decode patron", err)
		}
		out = append(out, *id)
	}
	return out, nil
}

// Create posts a new identity.
func (c *Client) Create(ctx context.Context, payload patron.CreatePayload) (*patron.Identity, error) {
	resp, err := c.do(ctx, http.MethodPost, "user/patron", nil, encodeCreate(payload), true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError("create", resp)
	}
	var env patronEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Key == "" {
		// Some deployments answer with an empty body; fall back to the payload.
		return &patron.Identity{
			Barcode:     payload.Barcode,
			FirstName:   payload.FirstName,
			LastName:    payload.LastName,
			BirthDate:   payload.BirthDate,
			HomeLibrary: payload.HomeLibrary,
			UserProfile: payload.UserProfile,
		}, nil
	}
	return decodePatron(env)
}

// Update replaces the identity stored under key.
func (c *Client) Update(ctx context.Context, key string, payload patron.UpdatePayload) error {
	resp, err := c.do(ctx, http.MethodPut, "user/patron/key/"+url.PathEscape(key), nil, encodeUpdate(key, payload), true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError("update", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, privileged bool) (*http.Response, error) {
	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("sd-originating-app-id", c.appID)
	if c.clientID != "" {
		req.Header.Set("x-sirs-clientID", c.clientID)
	}
	if c.sessionToken != "" {
		req.Header.Set("x-sirs-sessionToken", c.sessionToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if privileged && c.override != "" {
		req.Header.Set("SD-Prompt-Return", "USER_PRIVILEGE_OVRCD/"+c.override)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "ilsws", strings.ToLower(method)+" "+path, "Request failed", err)
	}
	logging.WithContext(ctx, c.logger).Debug("ilsws request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

func statusError(operation string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("upstream returned %d", resp.StatusCode)
	if s := strings.TrimSpace(string(snippet)); s != "" {
		msg += ": " + s
	}
	var marker error
	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		marker = services.ErrUpstreamUnavailable
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		marker = services.ErrConfiguration
	default:
		marker = services.ErrValidation
	}
	return services.Wrap(marker, "ilsws", operation, msg, nil)
}
