package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/outreach/horosafe"
)

// Config configures the shared HTTP client.
type Config struct {
	SendTimeout  time.Duration // POST deliveries. Default: 15s.
	ProbeTimeout time.Duration // GET probes and listings. Default: 10s.
	MaxBytes     int64         // Max response body size. Default: horosafe.MaxResponseBody.
	UserAgent    string
	// URLValidator validates every request and redirect URL (SSRF prevention).
	// Default: horosafe.ValidateURL.
	URLValidator func(string) error
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

func (c *Config) defaults() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = UserAgent
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
}

// Client performs the HTTP round trips for every executor.
type Client struct {
	http   *http.Client
	config Config
	md     *converter.Converter
}

// NewClient creates a Client with SSRF protection on redirects.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Client{
		http: &http.Client{
			Transport: cfg.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config: cfg,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// response is a fully read HTTP response.
type response struct {
	Status      int
	ContentType string
	Body        []byte
}

func (r *response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// request describes one outbound call.
type request struct {
	Method  string
	URL     string
	Header  map[string]string
	Body    any
	Timeout time.Duration
}

// do sends req with the client's user agent and timeout. A non-2xx status is
// not an error.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	if err := c.config.URLValidator(req.URL); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.SendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body *bytes.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	var (
		httpReq *http.Request
		err     error
	)
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := horosafe.LimitedReadAll(resp.Body, c.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}

// decodeBody turns a reply into the JSON stored on the attempt: the body
// itself for JSON replies (null when it does not parse), {"text": ...} for
// anything else, null when empty. HTML replies keep the raw document in
// "text", which the reply classifier scans, and add a readable Markdown
// rendering under "markdown".
func (c *Client) decodeBody(r *response) json.RawMessage {
	ct := strings.ToLower(r.ContentType)
	if strings.Contains(ct, "application/json") {
		if len(bytes.TrimSpace(r.Body)) == 0 || !json.Valid(r.Body) {
			return json.RawMessage("null")
		}
		return json.RawMessage(r.Body)
	}
	if len(r.Body) == 0 {
		return json.RawMessage("null")
	}
	fields := map[string]string{"text": string(r.Body)}
	if strings.Contains(ct, "text/html") {
		if md, err := c.md.ConvertString(fields["text"]); err == nil {
			fields["markdown"] = md
		}
	}
	out, _ := json.Marshal(fields)
	return out
}
