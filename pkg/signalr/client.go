package signalr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mpapenbr/f1-livetiming-go/log"
)

type State int

const (
	StateDisconnected State = iota
	StateNegotiated
	StateConnected
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateNegotiated:
		return "negotiated"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultPingInterval     = 5 * time.Minute
	DefaultReceiveTimeout   = 20 * time.Second
	DefaultHandshakeRetries = 1
)

// Client drives a single SignalR connection. It is not safe for concurrent use,
// all methods are expected to be called from the goroutine consuming Next.
type Client struct {
	baseURL          string
	hubs             []string
	topics           []string
	reconnect        bool
	handshakeRetries int
	pingInterval     time.Duration
	receiveTimeout   time.Duration
	httpClient       *http.Client
	dialer           Dialer
	now              func() time.Time
	log              *log.Logger

	conn      ConnectionState
	handshake *HandshakeSession
	ws        Conn
	state     State
	commandID int
	lastPing  time.Time
	tornDown  bool
}

// NewClient creates a client for the SignalR endpoint at baseURL
// (for example https://livetiming.formula1.com/signalr).
func NewClient(baseURL string, opts ...Option) *Client {
	ret := &Client{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		reconnect:        true,
		handshakeRetries: DefaultHandshakeRetries,
		pingInterval:     DefaultPingInterval,
		receiveTimeout:   DefaultReceiveTimeout,
		now:              time.Now,
		log:              log.Default().Named("signalr"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.topics == nil {
		ret.topics = []string{}
	}
	if len(ret.hubs) == 0 {
		ret.hubs = []string{"streaming"}
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if ret.dialer == nil {
		ret.dialer = &WebsocketDialer{}
	}
	ret.handshake = newHandshakeSession(
		ret.baseURL, ret.hubs, ret.httpClient, &ret.conn, ret.log)
	ret.handshake.now = ret.now
	return ret
}

func (c *Client) State() State {
	return c.state
}

// Connection returns a copy of the current connection record.
func (c *Client) Connection() ConnectionState {
	return c.conn.clone()
}

// Open negotiates, connects, subscribes the configured topics and starts streaming.
func (c *Client) Open(ctx context.Context) error {
	if c.tornDown {
		return ErrClientClosed
	}
	if err := c.handshake.Negotiate(ctx); err != nil {
		return err
	}
	if c.state == StateDisconnected {
		c.state = StateNegotiated
	}
	return c.connect(ctx)
}

// Next returns the next message received from the server.
// Keep alive frames are returned too. io.EOF is returned once the connection
// is closed and reconnecting is disabled.
func (c *Client) Next(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		switch c.state {
		case StateClosed:
			return Message{}, io.EOF
		case StateDisconnected, StateNegotiated:
			return Message{}, ErrNotConnected
		case StateReconnecting:
			if err := c.connect(ctx); err != nil {
				return Message{}, err
			}
		default:
		}

		c.keepalive(ctx)
		op, data, err := c.ws.Receive(ctx, c.receiveTimeout)
		switch {
		case err == nil:
			return c.handleFrame(op, data)
		case errors.Is(err, ErrReceiveTimeout):
			continue
		case errors.Is(err, ErrConnectionClosed):
			c.log.Warn("Connection closed unexpectedly", log.ErrorField(err))
			c.dropSocket()
			if !c.reconnect {
				c.log.Info("Reconnect disabled, ending stream")
				c.state = StateClosed
				return Message{}, io.EOF
			}
			c.state = StateReconnecting
		default:
			return Message{}, err
		}
	}
}

// Subscribe sends one subscribe command per hub for the configured topics.
func (c *Client) Subscribe(ctx context.Context) error {
	for _, hub := range c.hubs {
		if err := c.Invoke(ctx, hub, "Subscribe", c.topics); err != nil {
			return err
		}
	}
	if c.state == StateConnected {
		c.state = StateSubscribed
	}
	return nil
}

// Unsubscribe sends one unsubscribe command per hub for the configured topics.
func (c *Client) Unsubscribe(ctx context.Context) error {
	var errs []error
	for _, hub := range c.hubs {
		if err := c.Invoke(ctx, hub, "Unsubscribe", c.topics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invoke calls a hub method. Every call consumes a command index,
// even if sending fails.
func (c *Client) Invoke(ctx context.Context, hub, method string, args ...any) error {
	if !slices.Contains(c.hubs, hub) {
		return fmt.Errorf("%w: %s", ErrUnknownHub, hub)
	}
	if args == nil {
		args = []any{}
	}
	cmd := hubCommand{Hub: hub, Method: method, Args: args, ID: c.commandID}
	c.commandID++
	if c.ws == nil {
		return fmt.Errorf("%s %s: %w", method, hub, ErrNotConnected)
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	c.log.Debug("Sending command",
		log.String("hub", hub), log.String("method", method), log.Int("id", cmd.ID))
	if err := c.ws.Send(ctx, data); err != nil {
		return fmt.Errorf("%s %s: %w", method, hub, err)
	}
	return nil
}

// Close tears the session down: unsubscribe (if a groups token was ever
// received), close the socket, abort the server session. Every step is
// attempted even if a previous one failed. Failures are logged only.
func (c *Client) Close(ctx context.Context) {
	if c.tornDown {
		return
	}
	c.tornDown = true
	if c.conn.HadGroupsToken() {
		if err := c.Unsubscribe(ctx); err != nil {
			c.log.Warn("Unsubscribe failed", log.ErrorField(err))
		}
	}
	if c.ws != nil {
		if err := c.ws.Close(); err != nil {
			c.log.Warn("Closing socket failed", log.ErrorField(err))
		}
		c.ws = nil
	}
	if !c.handshake.Abort(ctx) {
		c.log.Warn("Abort failed", log.String("connectionId", c.conn.ConnectionID))
	}
	c.conn.reset()
	c.state = StateClosed
}

// connect opens the socket, resuming the session if possible.
//
//nolint:funlen // by design
func (c *Client) connect(ctx context.Context) error {
	resume := c.conn.CanResume()
	endpoint := "connect"
	if resume {
		endpoint = "reconnect"
	}
	var ws Conn
	for attempt := 1; ; attempt++ {
		target := c.socketURL(endpoint)
		c.log.Info("Connecting socket",
			log.String("endpoint", endpoint), log.Int("attempt", attempt))
		var err error
		ws, err = c.dialer.Dial(ctx, target, c.socketHeader())
		if err == nil {
			break
		}
		var hsErr *TransportHandshakeError
		if !errors.As(err, &hsErr) {
			return err
		}
		hsErr.Attempts = attempt
		cookies := hsErr.Cookies()
		if len(cookies) == 0 || attempt > c.handshakeRetries {
			return hsErr
		}
		c.log.Warn("Socket handshake rejected, retrying with new cookie",
			log.Int("status", hsErr.StatusCode), log.Int("cookies", len(cookies)))
		c.conn.mergeCookies(cookies)
	}
	c.ws = ws
	c.lastPing = c.now()
	c.state = StateConnected
	if resume {
		// server keeps the groups of a resumed connection
		c.state = StateStreaming
		return nil
	}
	if err := c.Subscribe(ctx); err != nil {
		return err
	}
	if err := c.handshake.Start(ctx); err != nil {
		return err
	}
	c.state = StateStreaming
	return nil
}

func (c *Client) keepalive(ctx context.Context) {
	if c.now().Sub(c.lastPing) <= c.pingInterval {
		return
	}
	c.lastPing = c.now()
	if !c.handshake.Ping(ctx) {
		c.log.Warn("Ping failed", log.String("connectionId", c.conn.ConnectionID))
	}
}

func (c *Client) handleFrame(op Opcode, data []byte) (Message, error) {
	msg := Message{Opcode: op, Raw: data}
	if err := json.Unmarshal(data, &msg.Frame); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if msg.KeepAlive() {
		c.log.Debug("KeepAlive received", log.String("connectionId", c.conn.ConnectionID))
	}
	if msg.Frame.Cursor != "" {
		c.conn.MessageID = msg.Frame.Cursor
	}
	if msg.Frame.GroupsToken != "" {
		c.conn.setGroupsToken(msg.Frame.GroupsToken)
	}
	return msg, nil
}

func (c *Client) dropSocket() {
	if c.ws == nil {
		return
	}
	if err := c.ws.Close(); err != nil {
		c.log.Debug("closing broken socket", log.ErrorField(err))
	}
	c.ws = nil
}

func (c *Client) socketURL(endpoint string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	params := url.Values{}
	params.Set("transport", transportName)
	params.Set("clientProtocol", ClientProtocol)
	params.Set("connectionToken", c.conn.Token)
	params.Set("connectionData", connectionData(c.hubs))
	params.Set("tid", strconv.Itoa(rand.Intn(12))) //nolint:gosec // not security related
	if endpoint == "reconnect" {
		params.Set("groupsToken", c.conn.GroupsToken)
		params.Set("messageId", c.conn.MessageID)
	}
	return fmt.Sprintf("%s/%s?%s", base, endpoint, params.Encode())
}

func (c *Client) socketHeader() http.Header {
	header := http.Header{}
	if len(c.conn.Cookies) == 0 {
		return header
	}
	parts := make([]string, 0, len(c.conn.Cookies))
	for _, ck := range c.conn.Cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	header.Set("Cookie", strings.Join(parts, "; "))
	return header
}
