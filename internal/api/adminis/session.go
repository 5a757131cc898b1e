package adminis

import (
	"net/http"
	"sort"
)

// SessionCookie is the portal-issued cookie that authorizes post-login calls.
const SessionCookie = "adminis"

// Session holds the cookies of the current login and whether the login succeeded.
// It is never persisted; every process start logs in again.
// A Session belongs to a single poll flow and is not safe for concurrent use.
type Session struct {
	cookies       map[string]string
	authenticated bool
}

// NewSession returns an empty, unauthenticated session.
func NewSession() *Session {
	return &Session{cookies: make(map[string]string)}
}

// Merge stores the given cookies, replacing values with the same name.
func (s *Session) Merge(cookies []*http.Cookie) {
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		s.cookies[c.Name] = c.Value
	}
}

// Cookies returns the stored cookies ordered by name.
func (s *Session) Cookies() []*http.Cookie {
	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: s.cookies[name]})
	}
	return cookies
}

// Has reports whether a cookie with the given name is stored.
func (s *Session) Has(name string) bool {
	_, ok := s.cookies[name]
	return ok
}

// Value returns the value of the named cookie.
func (s *Session) Value(name string) string {
	return s.cookies[name]
}

// Authenticated reports whether the last login succeeded.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// SetAuthenticated sets the login flag.
func (s *Session) SetAuthenticated(ok bool) {
	s.authenticated = ok
}

// Invalidate drops all cookies and the login flag.
func (s *Session) Invalidate() {
	s.cookies = make(map[string]string)
	s.authenticated = false
}
