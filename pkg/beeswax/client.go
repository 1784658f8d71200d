// Package beeswax is a client for the Beeswax advertising-exchange REST API.
//
// A Client logs in with session cookies, re-authenticates transparently when
// the session expires, and exposes CRUD helpers for each supported resource
// (Advertisers, Campaigns, Creatives, LineItems, CreativeLineItems,
// TargetingTemplates) plus the multi-step creative asset upload.
package beeswax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/cinema6/beeswax-client/internal/httpclient"
	"github.com/cinema6/beeswax-client/internal/metrics"
	"github.com/cinema6/beeswax-client/internal/rate"
	"github.com/cinema6/beeswax-client/pkg/utils"
)

const (
	// DefaultAPIRoot is used when Config.APIRoot is empty.
	DefaultAPIRoot = "https://stingersbx.api.beeswax.com"

	authPath       = "/rest/authenticate"
	defaultTimeout = 60 * time.Second
	venueTag       = "beeswax"
)

// loginTimeout bounds the shared login, which no single caller's ctx can cancel.
var loginTimeout = defaultTimeout

// Credentials identify the Beeswax user the session is opened for.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Config holds the connection settings for a Client.
type Config struct {
	APIRoot string
	Creds   Credentials
}

type options struct {
	httpClient *http.Client
	logger     *zap.Logger
	rate       *rate.Config
}

// Option customizes a Client.
type Option func(*options)

// WithHTTPClient sets the transport used for every call. A cookie jar is
// installed on a copy of the client when it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRateLimit throttles outbound calls to rps requests per second.
// A non-positive rps leaves calls unthrottled.
func WithRateLimit(rps, burst int) Option {
	return func(o *options) { o.rate = &rate.Config{RequestsPerSecond: rps, Burst: burst} }
}

// Client talks to one Beeswax API root on behalf of one user. It is safe for
// concurrent use.
type Client struct {
	apiRoot *url.URL
	creds   Credentials
	logger  *zap.Logger
	exec    *httpclient.Executor

	// auth collapses concurrent logins onto a single in-flight request.
	auth singleflight.Group

	Advertisers        *Resource
	Campaigns          *Resource
	Creatives          *Resource
	LineItems          *Resource
	CreativeLineItems  *Resource
	TargetingTemplates *Resource

	byName map[string]*Resource
}

// New constructs a Client. It fails when either credential is missing.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Creds.Email == "" || cfg.Creds.Password == "" {
		return nil, ErrMissingCredentials
	}

	root := cfg.APIRoot
	if root == "" {
		root = DefaultAPIRoot
	}
	apiRoot, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("beeswax: invalid api root %q: %w", root, err)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("beeswax: cookie jar: %w", err)
		}
		withJar := *hc
		withJar.Jar = jar
		hc = &withJar
	}

	var rateMgr *rate.Manager
	if o.rate != nil && o.rate.Enabled() {
		rateMgr = rate.NewManager(*o.rate)
	}

	c := &Client{
		apiRoot: apiRoot,
		creds:   cfg.Creds,
		logger:  o.logger,
		exec:    httpclient.New(o.logger, rateMgr, hc, venueTag, statusError),
		byName:  make(map[string]*Resource, len(descriptors)),
	}
	for _, d := range descriptors {
		c.byName[d.name] = &Resource{client: c, desc: d}
	}
	c.Advertisers = c.byName[advertisers.name]
	c.Campaigns = c.byName[campaigns.name]
	c.Creatives = c.byName[creatives.name]
	c.LineItems = c.byName[lineItems.name]
	c.CreativeLineItems = c.byName[creativeLineItems.name]
	c.TargetingTemplates = c.byName[targetingTemplates.name]
	return c, nil
}

// APIRoot returns the base URL requests are resolved against.
func (c *Client) APIRoot() string {
	return c.apiRoot.String()
}

// Resource looks up a resource helper by name ("campaigns", "line-items", ...).
func (c *Client) Resource(name string) (*Resource, bool) {
	r, ok := c.byName[name]
	return r, ok
}

// Authenticate opens a session. Concurrent callers share one login request and
// observe its outcome; a caller whose ctx ends stops waiting without aborting
// the shared login. The login itself gives up after loginTimeout.
func (c *Client) Authenticate(ctx context.Context) error {
	ch := c.auth.DoChan("authenticate", func() (any, error) {
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()
		return nil, c.login(loginCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) login(ctx context.Context) error {
	body, err := c.send(ctx, http.MethodPost, c.resolve(authPath), map[string]any{
		"email":          c.creds.Email,
		"password":       c.creds.Password,
		"keep_logged_in": true,
	})
	if err == nil && body.Failed() {
		err = &FailureError{Body: body.Raw}
	}
	if err != nil {
		c.logger.Warn("beeswax.auth_failed",
			zap.String("user", utils.MaskEmail(c.creds.Email)),
			zap.Error(err))
		return err
	}
	c.logger.Info("beeswax.auth_success", zap.String("user", utils.MaskEmail(c.creds.Email)))
	return nil
}

// RequestOptions describe one API call. Path is resolved against the API root
// unless URL is set. Body, when non-nil, is sent as JSON (GET included: the
// API takes its filters in the request body).
type RequestOptions struct {
	Path string
	URL  string
	Body any
}

// Request performs one API call with the session cookies. A 401 triggers a
// single Authenticate and one retry. A document with success=false is
// returned as a *FailureError; non-2xx statuses as a *StatusError.
func (c *Client) Request(ctx context.Context, method string, opts RequestOptions) (*Body, error) {
	target := opts.URL
	if target == "" {
		target = c.resolve(opts.Path)
	}
	log := c.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", method),
		zap.String("url", target))

	body, err := c.send(ctx, method, target, opts.Body)
	if IsStatus(err, http.StatusUnauthorized) {
		log.Info("beeswax.reauthenticate")
		if authErr := c.Authenticate(ctx); authErr != nil {
			metrics.IncReauth("failure")
			return nil, authErr
		}
		metrics.IncReauth("success")
		body, err = c.send(ctx, method, target, opts.Body)
	}
	if err != nil {
		log.Debug("beeswax.request_failed", zap.Error(err))
		return nil, err
	}
	if body.Failed() {
		log.Debug("beeswax.request_unsuccessful")
		return nil, &FailureError{Body: body.Raw}
	}
	return body, nil
}

// send performs exactly one transport call.
func (c *Client) send(ctx context.Context, method, target string, payload any) (*Body, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("beeswax: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var body Body
	if err := c.exec.DoJSON(ctx, req, c.creds.Email, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// resolve joins an absolute API path onto the API root.
func (c *Client) resolve(path string) string {
	return c.apiRoot.ResolveReference(&url.URL{Path: path}).String()
}
