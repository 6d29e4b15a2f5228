package signalr

import (
	"net/http"
	"slices"
)

// ConnectionState holds everything the server issued for the current session.
// It is created by negotiate, survives reconnects and is cleared on close.
type ConnectionState struct {
	Token        string
	ConnectionID string
	GroupsToken  string
	MessageID    string
	Cookies      []*http.Cookie

	// RequestCounter starts at the negotiate timestamp (ms) and is
	// incremented for every start and ping request.
	RequestCounter int64

	hadGroupsToken bool
}

func (s ConnectionState) Negotiated() bool {
	return s.Token != ""
}

// CanResume reports whether enough is known to use the reconnect endpoint.
func (s ConnectionState) CanResume() bool {
	return s.GroupsToken != "" && s.MessageID != ""
}

// HadGroupsToken reports whether a groups token was seen since negotiate.
func (s ConnectionState) HadGroupsToken() bool {
	return s.hadGroupsToken
}

func (s *ConnectionState) setGroupsToken(g string) {
	s.GroupsToken = g
	s.hadGroupsToken = true
}

// mergeCookies replaces cookies with the same name and appends new ones.
func (s *ConnectionState) mergeCookies(cookies []*http.Cookie) {
	for _, c := range cookies {
		idx := slices.IndexFunc(s.Cookies, func(item *http.Cookie) bool {
			return item.Name == c.Name
		})
		kept := &http.Cookie{Name: c.Name, Value: c.Value}
		if idx == -1 {
			s.Cookies = append(s.Cookies, kept)
		} else {
			s.Cookies[idx] = kept
		}
	}
}

func (s *ConnectionState) nextCounter() int64 {
	s.RequestCounter++
	return s.RequestCounter
}

func (s *ConnectionState) clone() ConnectionState {
	ret := *s
	ret.Cookies = slices.Clone(s.Cookies)
	return ret
}

func (s *ConnectionState) reset() {
	*s = ConnectionState{}
}
