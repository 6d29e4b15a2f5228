// Package signalrtest provides an in-process SignalR 1.5 server for tests.
package signalrtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"nhooyr.io/websocket"
)

const (
	DefaultConnectionToken = "token-1"
	DefaultConnectionID    = "conn-1"
	CookieName             = "AWSALBCORS"
)

type Config struct {
	ConnectionToken string
	ConnectionID    string
	NegotiateStatus int    // default 200
	StartResponse   string // default "started"
	PingResponse    string // default "pong"
	// RejectUpgrades is the number of socket upgrades answered with 403.
	RejectUpgrades int
	// RejectWithoutCookie omits the Set-Cookie header on rejected upgrades.
	RejectWithoutCookie bool
	// OnRequest is called for every http request with the endpoint name.
	OnRequest func(endpoint string)
}

type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Cookies  []*http.Cookie
}

type Server struct {
	URL string

	cfg     Config
	ts      *httptest.Server
	sockets chan *Socket

	mu       sync.Mutex
	requests []Request
	rejected int
}

// New starts a server which is shut down when the test ends.
func New(t testing.TB, cfg Config) *Server {
	t.Helper()
	if cfg.ConnectionToken == "" {
		cfg.ConnectionToken = DefaultConnectionToken
	}
	if cfg.ConnectionID == "" {
		cfg.ConnectionID = DefaultConnectionID
	}
	if cfg.NegotiateStatus == 0 {
		cfg.NegotiateStatus = http.StatusOK
	}
	if cfg.StartResponse == "" {
		cfg.StartResponse = "started"
	}
	if cfg.PingResponse == "" {
		cfg.PingResponse = "pong"
	}
	s := &Server{cfg: cfg, sockets: make(chan *Socket, 8)}
	mux := http.NewServeMux()
	mux.HandleFunc("/signalr/negotiate", s.negotiate)
	mux.HandleFunc("/signalr/start", s.ack(cfg.StartResponse))
	mux.HandleFunc("/signalr/ping", s.ack(cfg.PingResponse))
	mux.HandleFunc("/signalr/abort", s.abort)
	mux.HandleFunc("/signalr/connect", s.upgrade)
	mux.HandleFunc("/signalr/reconnect", s.upgrade)
	s.ts = httptest.NewServer(mux)
	s.URL = s.ts.URL + "/signalr"
	t.Cleanup(s.ts.Close)
	return s
}

// Requests returns all requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Endpoints returns the endpoint names of all requests in order.
func (s *Server) Endpoints() []string {
	reqs := s.Requests()
	ret := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ret = append(ret, r.Endpoint)
	}
	return ret
}

// Socket waits for the next accepted websocket.
func (s *Server) Socket(ctx context.Context) (*Socket, error) {
	select {
	case sock := <-s.sockets:
		return sock, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) record(r *http.Request) string {
	endpoint := strings.TrimPrefix(r.URL.Path, "/signalr/")
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:   r.Method,
		Endpoint: endpoint,
		Query:    r.URL.Query(),
		Cookies:  r.Cookies(),
	})
	s.mu.Unlock()
	if s.cfg.OnRequest != nil {
		s.cfg.OnRequest(endpoint)
	}
	return endpoint
}

func (s *Server) negotiate(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if s.cfg.NegotiateStatus != http.StatusOK {
		http.Error(w, "negotiate denied", s.cfg.NegotiateStatus)
		return
	}
	writeJSON(w, map[string]any{
		"Url":                     "/signalr",
		"ConnectionToken":         s.cfg.ConnectionToken,
		"ConnectionId":            s.cfg.ConnectionID,
		"KeepAliveTimeout":        20.0,
		"DisconnectTimeout":       30.0,
		"TryWebSockets":           true,
		"ProtocolVersion":         "1.5",
		"TransportConnectTimeout": 5.0,
	})
}

func (s *Server) ack(response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		writeJSON(w, map[string]string{"Response": response})
	}
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) {
	endpoint := s.record(r)
	s.mu.Lock()
	reject := s.rejected < s.cfg.RejectUpgrades
	if reject {
		s.rejected++
	}
	attempt := s.rejected
	s.mu.Unlock()
	if reject {
		if !s.cfg.RejectWithoutCookie {
			http.SetCookie(w, &http.Cookie{
				Name:  CookieName,
				Value: fmt.Sprintf("cookie-%d", attempt),
			})
		}
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	sock := &Socket{
		Endpoint: endpoint,
		Query:    r.URL.Query(),
		Cookies:  r.Cookies(),
		conn:     c,
		commands: make(chan []byte, 64),
	}
	s.sockets <- sock
	sock.readCommands()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck,errchkjson // test server
	json.NewEncoder(w).Encode(v)
}

// Socket is the server side of an accepted websocket.
type Socket struct {
	Endpoint string
	Query    url.Values
	Cookies  []*http.Cookie

	conn     *websocket.Conn
	commands chan []byte
}

func (s *Socket) readCommands() {
	defer close(s.commands)
	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			return
		}
		s.commands <- data
	}
}

// Send writes a text frame to the client.
func (s *Socket) Send(ctx context.Context, frame string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(frame))
}

// Close closes the socket from the server side.
func (s *Socket) Close() {
	//nolint:errcheck // the client may have gone already
	s.conn.Close(websocket.StatusGoingAway, "server shutdown")
}

// Command waits for the next frame sent by the client.
// ok is false once the client closed the socket.
func (s *Socket) Command(ctx context.Context) (data []byte, ok bool) {
	select {
	case data, ok = <-s.commands:
		return data, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Drain collects the remaining client frames until the socket is closed.
func (s *Socket) Drain(ctx context.Context) [][]byte {
	var ret [][]byte
	for {
		data, ok := s.Command(ctx)
		if !ok {
			return ret
		}
		ret = append(ret, data)
	}
}
