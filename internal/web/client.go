// Package web is the HTTP(S) client shared by the classifier, the
// fingerprinter, the credential engine and the stream enumerator.
package web

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/model"
)

const maxBodySize = 2 << 20 // 2MB

// Request describes a single HTTP exchange. Method defaults to GET, or
// POST when Form or Body is set.
type Request struct {
	Method      string
	URL         string
	Auth        *model.Credential
	Form        url.Values
	Body        []byte
	ContentType string
	// Limit caps the number of body bytes read, 0 => 2MB
	Limit int64
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Server returns the lowercase Server header.
func (r Response) Server() string {
	return strings.ToLower(r.Header.Get("Server"))
}

// ContentType returns the lowercase Content-Type header.
func (r Response) ContentType() string {
	return strings.ToLower(r.Header.Get("Content-Type"))
}

// Text returns the lowercase body.
func (r Response) Text() string {
	return strings.ToLower(string(r.Body))
}

// Client never reuses connections, each probe opens its own.
type Client struct {
	http      *http.Client
	catalog   *catalog.Catalog
	userAgent string
	timeout   time.Duration
}

func New(cfg model.HTTP, cat *catalog.Catalog) *Client {
	return &Client{
		http:      newHTTPClient(),
		catalog:   cat,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout.Std(),
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // cameras use self-signed certificates
			DisableKeepAlives:     true,
			DisableCompression:    true,
			ForceAttemptHTTP2:     false,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// WithTimeout returns a client sharing the transport with a different per
// request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	cp := *c
	cp.timeout = d
	return &cp
}

// Scheme returns https for the known TLS ports.
func (c *Client) Scheme(port int) string {
	return c.catalog.Scheme(port)
}

// BaseURL returns scheme://host:port without a trailing slash.
func (c *Client) BaseURL(target model.Target, port int) string {
	return c.Scheme(port) + "://" + target.HostPort(port)
}

func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

func (c *Client) Head(ctx context.Context, url string) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodHead, URL: url})
}

// Do sends r with the browser User-Agent and reads at most r.Limit bytes
// of the body.
func (c *Client) Do(ctx context.Context, r Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := r.Method
	var body io.Reader
	contentType := r.ContentType
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.Body != nil:
		body = bytes.NewReader(r.Body)
	}
	if method == "" {
		method = http.MethodGet
		if body != nil {
			method = http.MethodPost
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.Auth != nil {
		req.SetBasicAuth(r.Auth.Username, r.Auth.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	limit := r.Limit
	if limit <= 0 {
		limit = maxBodySize
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, limit))
	return Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}
