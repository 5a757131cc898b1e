// Package adminis provides a scraping client for the Adminis Locuințe residents portal.
//
// The portal has no published API. The client logs in with the account's
// credentials, keeps the returned cookies and calls the JSON endpoints the
// web frontend uses.
package adminis

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/adminis-scraper/internal/api"
	"github.com/andygrunwald/adminis-scraper/internal/models"
	"github.com/andygrunwald/adminis-scraper/internal/useragent"
)

const (
	// ProviderName is the identifier for this portal.
	ProviderName = "adminislocuinte"
	// DefaultBaseURL is the portal root.
	DefaultBaseURL = "https://adminislocuinte.ro"
	// DefaultTimeout is used when no request timeout is configured.
	DefaultTimeout = 30 * time.Second

	loginPath           = "/contul-meu/autentificare/"
	dashboardPath       = "/i/"
	pendingPaymentsPath = "/api/pending-payments/%s/"
	paymentsHistoryPath = "/api/payments-history/%s/"
	countersPath        = "/api/counters/%s/"

	// The receipt and payment-info endpoints answer 403 for every account seen so far.
	// They are kept for reference only and must not be requested until that changes upstream.
	receiptPath      = "/api/receipt/%s/"
	receiptMonthPath = "/api/receipt/%s/%d-%d/"
	paymentInfoPath  = "/api/payment-info/"
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to the portal on behalf of one account.
type Client struct {
	rest     *resty.Client
	logger   zerolog.Logger
	username string
	password string

	session   *Session
	locations map[string]models.Location
}

var _ api.Portal = (*Client)(nil)

// New creates a new portal client.
func New(logger zerolog.Logger, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger = logger.With().Str("provider", ProviderName).Logger()

	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", useragent.Random()).
		SetLogger(restyLogger{logger: logger}).
		// Cookies are attached explicitly from the Session.
		SetCookieJar(nil).
		// The login redirect is the success signal, and a redirect from an API
		// endpoint means the session is gone. Neither is followed.
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	instrument(rest, logger)

	return &Client{
		rest:      rest,
		logger:    logger,
		username:  opts.Username,
		password:  opts.Password,
		session:   NewSession(),
		locations: make(map[string]models.Location),
	}
}

// Session returns the client's session store.
func (c *Client) Session() *Session {
	return c.session
}

// Authenticated reports whether the session holds a valid login.
func (c *Client) Authenticated() bool {
	return c.session.Authenticated()
}

// Invalidate drops the session so the next poll logs in again.
func (c *Client) Invalidate() {
	c.session.Invalidate()
}

// get issues an authenticated GET and merges returned cookies into the session.
func (c *Client) get(ctx context.Context, path string) (*resty.Response, error) {
	res, err := c.rest.R().
		SetContext(ctx).
		SetCookies(c.session.Cookies()).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	c.session.Merge(res.Cookies())
	return res, nil
}

// getJSON fetches path and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	res, err := c.get(ctx, path)
	if err != nil {
		return err
	}

	status := res.StatusCode()
	switch {
	case status >= 300 && status < 400:
		return fmt.Errorf("%w: %w %d (location %q)", api.ErrSessionExpired, api.ErrUnexpectedStatus, status, res.Header().Get("Location"))
	case status != http.StatusOK:
		return fmt.Errorf("%w %d: %s", api.ErrUnexpectedStatus, status, truncate(res.String(), 200))
	}

	contentType := res.Header().Get("Content-Type")
	if !isJSONContentType(contentType) {
		return fmt.Errorf("%w: content type %q", api.ErrMalformedBody, contentType)
	}

	if err := json.Unmarshal(res.Body(), v); err != nil {
		return fmt.Errorf("%w: parsing response JSON: %w", api.ErrMalformedBody, err)
	}
	return nil
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type requestIDKey struct{}

// instrument logs every request and response at debug level.
func instrument(rest *resty.Client, logger zerolog.Logger) {
	var counter uint64

	rest.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		id := atomic.AddUint64(&counter, 1)
		req.SetContext(context.WithValue(req.Context(), requestIDKey{}, id))
		logger.Debug().
			Uint64("requestID", id).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("start request")
		return nil
	})
	rest.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id, _ := res.Request.Context().Value(requestIDKey{}).(uint64)
		logger.Debug().
			Uint64("requestID", id).
			Str("method", res.Request.Method).
			Str("url", res.Request.URL).
			Int("status", res.StatusCode()).
			Dur("duration", res.Time()).
			Msg("request finished")
		return nil
	})
	rest.OnError(func(req *resty.Request, err error) {
		id, _ := req.Context().Value(requestIDKey{}).(uint64)
		logger.Debug().
			Err(err).
			Uint64("requestID", id).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("request failed")
	})
}

// restyLogger routes resty's own log output through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}
