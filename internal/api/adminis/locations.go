package adminis

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

const (
	apartmentMarker = ", ap. "
	parkingMarker   = "PARCARI"
)

var digitsRegex = regexp.MustCompile(`^\d+$`)

// voidElements cannot have children; their label is the text that follows them.
var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// DiscoverLocations loads the dashboard and extracts the account's locations.
// Locations are returned in the order they first appear in the markup.
func (c *Client) DiscoverLocations(ctx context.Context) []models.Location {
	res, err := c.get(ctx, dashboardPath)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load dashboard")
		return []models.Location{}
	}
	if status := res.StatusCode(); status >= 300 && status < 400 {
		// The dashboard redirects to the login page once the session is gone.
		c.logger.Warn().Int("status", status).Msg("dashboard redirected, session expired")
		c.session.Invalidate()
		return []models.Location{}
	}
	if res.StatusCode() != http.StatusOK {
		c.logger.Error().Int("status", res.StatusCode()).Msg("failed to load dashboard")
		return []models.Location{}
	}

	locations := parseDashboard(res.Body())

	c.locations = make(map[string]models.Location, len(locations))
	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		c.locations[loc.ID] = loc
		ids = append(ids, loc.ID)
	}

	c.logger.Debug().
		Strs("locationIDs", ids).
		Int("count", len(locations)).
		Msg("discovered locations")

	return locations
}

// LocationInfo returns the metadata of a location found by the last discovery.
func (c *Client) LocationInfo(id string) (models.Location, bool) {
	loc, ok := c.locations[id]
	return loc, ok
}

// parseDashboard extracts locations from the dashboard markup.
// Every element with a numeric data-code attribute followed by a text label
// is a location. Markup without matches yields an empty slice.
func parseDashboard(body []byte) []models.Location {
	locations := []models.Location{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return locations
	}

	seen := make(map[string]bool)
	doc.Find("[data-code]").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("data-code", ""))
		if !digitsRegex.MatchString(id) || seen[id] {
			return
		}

		label, ok := leadingText(s.Get(0))
		if !ok {
			return
		}

		seen[id] = true
		locations = append(locations, classify(id, label))
	})

	assocID := ""
	doc.Find("[data-assoc]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v := strings.TrimSpace(s.AttrOr("data-assoc", ""))
		if digitsRegex.MatchString(v) {
			assocID = v
			return false
		}
		return true
	})
	if assocID != "" {
		for i := range locations {
			locations[i].AssociationID = assocID
		}
	}

	return locations
}

// leadingText returns the text directly following the opening tag of n.
// For void elements the following sibling text is used.
func leadingText(n *html.Node) (string, bool) {
	if n == nil {
		return "", false
	}

	text := n.FirstChild
	if voidElements[n.DataAtom] {
		text = n.NextSibling
	}
	if text == nil || text.Type != html.TextNode || text.Data == "" {
		return "", false
	}
	return text.Data, true
}

// classify derives the location metadata from its label,
// e.g. "Str. Exemplu nr. 1, bloc A1, scara A, ap. 12, Iasi, Iasi".
func classify(id, label string) models.Location {
	loc := models.Location{
		ID:   id,
		Name: strings.TrimSpace(label),
		Type: models.LocationTypeUnknown,
	}

	_, rest, found := strings.Cut(label, apartmentMarker)
	if !found {
		return loc
	}

	apartment, _, _ := strings.Cut(rest, ",")
	loc.Apartment = apartment

	if strings.Contains(label, parkingMarker) || strings.HasPrefix(apartment, "S") {
		loc.Type = models.LocationTypeParking
	} else {
		loc.Type = models.LocationTypeApartment
	}
	return loc
}
