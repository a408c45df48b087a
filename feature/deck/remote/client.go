package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deck-sync/core/errs"

	"go.uber.org/zap"
)

const (
	deckPath = "/index.php/apps/deck/api/v1.0"
	ocsPath  = "/ocs/v2.php/apps/deck/api/v1.0"
	capsPath = "/ocs/v2.php/cloud/capabilities"
)

// Config holds the connection settings of one account.
type Config struct {
	// URL is the server root, e.g. https://cloud.example.com.
	URL       string
	User      string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the Deck REST API of one account.
type Client struct {
	cfg    Config
	base   string
	http   *http.Client
	logger *zap.Logger
}

var _ API = (*Client)(nil)

// New creates a client. A zero timeout means 30 seconds.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "deck-sync"
	}
	return &Client{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.URL, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// request describes one API call.
type request struct {
	method  string
	path    string
	etag    string
	body    io.Reader
	ctype   string
	payload any
}

// response carries what callers need besides the decoded body.
type response struct {
	status int
	etag   string
}

func (c *Client) do(ctx context.Context, r request, out any) (response, error) {
	body := r.body
	ctype := r.ctype
	if r.payload != nil {
		b, err := json.Marshal(r.payload)
		if err != nil {
			return response{}, fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(b)
		ctype = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.base+r.path, body)
	if err != nil {
		return response{}, fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Token)
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	if r.etag != "" {
		req.Header.Set("If-None-Match", r.etag)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return response{}, fmt.Errorf("%s %s: %w", r.method, r.path, ctx.Err())
		}
		return response{}, fmt.Errorf("%s %s: %v: %w", r.method, r.path, err, errs.ErrOffline)
	}
	defer resp.Body.Close()

	c.logger.Debug("Remote request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	res := response{status: resp.StatusCode, etag: resp.Header.Get("ETag")}
	if resp.StatusCode == http.StatusNotModified {
		return res, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return res, statusError(r.method, r.path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return res, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return res, fmt.Errorf("decode %s %s: %v: %w", r.method, r.path, err, errs.ErrRejected)
	}
	return res, nil
}

// statusError maps an HTTP failure to the engine's error sentinels.
func statusError(method, path string, status int, msg string) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = errs.ErrUnauthorized
	case status == http.StatusNotFound:
		kind = errs.ErrNotFound
	case status == http.StatusServiceUnavailable:
		kind = errs.ErrMaintenance
	case status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		kind = errs.ErrOffline
	default:
		kind = errs.ErrRejected
	}
	if msg == "" {
		return fmt.Errorf("%s %s: status %d: %w", method, path, status, kind)
	}
	return fmt.Errorf("%s %s: status %d: %s: %w", method, path, status, msg, kind)
}

type ocsEnvelope[T any] struct {
	OCS struct {
		Data T `json:"data"`
	} `json:"ocs"`
}

// doOCS calls an OCS endpoint and unwraps the envelope.
func doOCS[T any](ctx context.Context, c *Client, r request) (T, error) {
	var env ocsEnvelope[T]
	if strings.Contains(r.path, "?") {
		r.path += "&format=json"
	} else {
		r.path += "?format=json"
	}
	_, err := c.do(ctx, r, &env)
	return env.OCS.Data, err
}

// Capabilities returns the server and Deck versions. A server in maintenance
// mode answers 503, reported as errs.ErrMaintenance.
func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	type payload struct {
		Version struct {
			String string `json:"string"`
		} `json:"version"`
		Capabilities struct {
			Deck struct {
				Version string `json:"version"`
			} `json:"deck"`
		} `json:"capabilities"`
	}
	data, err := doOCS[payload](ctx, c, request{method: http.MethodGet, path: capsPath})
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{Version: data.Version.String, DeckVersion: data.Capabilities.Deck.Version}, nil
}
