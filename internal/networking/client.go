package networking

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/rafabd1/Oleander/internal/config"
	"github.com/rafabd1/Oleander/internal/utils"
)

// Request describes one GET issued through the client.
type Request struct {
	URL string
	// Headers are overlaid on the browser profile; a Header set here wins.
	Headers map[string]string
	// Cookies replaces the configured session cookies when non-nil. An
	// empty non-nil map sends no session cookies at all.
	Cookies map[string]string
	// FollowRedirects selects between chasing the redirect chain and
	// returning the first response as-is.
	FollowRedirects bool
}

// Response carries everything the probe protocol needs from an exchange.
type Response struct {
	StatusCode int
	// URL is the final URL after redirects were followed.
	URL     string
	Headers http.Header
	// SentHeaders are the request headers of the final hop as handed to
	// the transport, for the network trace.
	SentHeaders http.Header
	Body        []byte
}

// Client issues browser-profiled GET requests with a shared cookie jar.
// All probes of a run go through one Client so cached session state
// (cookies set by the server) behaves like a single browsing session.
type Client struct {
	follow   *http.Client
	noFollow *http.Client
	headers  map[string]string
	cookies  map[string]string
	logger   utils.Logger
}

// NewClient builds the probe client from the resolved configuration.
func NewClient(cfg *config.Config, logger utils.Logger) (*Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
		logger.Debugf("Routing requests through proxy %s", cfg.ProxyURL.Redacted())
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	follow := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.RequestTimeout,
	}
	noFollow := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Client{
		follow:   follow,
		noFollow: noFollow,
		headers:  cfg.ProfileHeaders(),
		cookies:  cfg.Cookies,
		logger:   logger,
	}, nil
}

// Get performs a GET request and reads the full body. Failures come back
// as *TransportError so callers can record their kind and carry on.
func (c *Client) Get(ctx context.Context, reqData Request) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqData.URL, nil)
	if err != nil {
		return nil, &TransportError{Kind: ErrKindRequest, URL: reqData.URL, Err: err}
	}

	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	for name, value := range reqData.Headers {
		req.Header.Set(name, value)
	}

	cookies := c.cookies
	if reqData.Cookies != nil {
		cookies = reqData.Cookies
	}
	if value := utils.CookieHeaderValue(cookies); value != "" {
		req.Header.Set("Cookie", value)
	}

	httpClient := c.noFollow
	if reqData.FollowRedirects {
		httpClient = c.follow
	}

	c.logger.Debugf("GET %s (follow_redirects=%v)", reqData.URL, reqData.FollowRedirects)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(reqData.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(reqData.URL, err)
	}

	finalURL := reqData.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	sent := make(http.Header)
	if resp.Request != nil {
		sent = resp.Request.Header.Clone()
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		URL:         finalURL,
		Headers:     resp.Header,
		SentHeaders: sent,
		Body:        body,
	}, nil
}
