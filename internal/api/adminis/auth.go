package adminis

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andygrunwald/adminis-scraper/internal/api"
)

// Authenticate logs in with the account credentials.
//
// The portal requires a GET of the login page first; the cookies it sets
// have to be sent back with the credentials. A successful login answers
// with a 302 redirect and sets the session cookie. Any other outcome
// returns false without an error; an unreachable login page or a transport
// failure returns an error.
func (c *Client) Authenticate(ctx context.Context) (bool, error) {
	c.session.Invalidate()

	res, err := c.rest.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load login page")
		return false, fmt.Errorf("loading login page: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		c.logger.Error().Int("status", res.StatusCode()).Msg("failed to load login page")
		return false, fmt.Errorf("loading login page: %w %d", api.ErrUnexpectedStatus, res.StatusCode())
	}
	c.session.Merge(res.Cookies())

	res, err = c.rest.R().
		SetContext(ctx).
		SetCookies(c.session.Cookies()).
		SetFormData(map[string]string{
			"email":         c.username,
			"password":      c.password,
			"formSubmitted": "1",
		}).
		Post(loginPath)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to submit login form")
		return false, fmt.Errorf("submitting login form: %w", err)
	}
	c.session.Merge(res.Cookies())

	if res.StatusCode() != http.StatusFound {
		c.logger.Error().Int("status", res.StatusCode()).Msg("login failed")
		return false, nil
	}
	if !c.session.Has(SessionCookie) {
		c.logger.Error().Msg("login returned 302 but no session cookie")
		return false, nil
	}

	c.session.SetAuthenticated(true)
	c.logger.Info().Msg("authenticated with Adminis Locuințe")
	return true, nil
}
