package signalr

import (
	"net/http"
	"slices"
	"time"

	"github.com/mpapenbr/f1-livetiming-go/log"
)

type Option func(*Client)

func WithHubs(hubs ...string) Option {
	return func(c *Client) {
		c.hubs = slices.Clone(hubs)
	}
}

// WithTopics sets the topics passed to Subscribe and Unsubscribe.
func WithTopics(topics ...string) Option {
	return func(c *Client) {
		c.topics = slices.Clone(topics)
	}
}

// WithReconnect controls whether a closed socket is reopened by Next.
func WithReconnect(enabled bool) Option {
	return func(c *Client) {
		c.reconnect = enabled
	}
}

// WithHandshakeRetries limits how often a rejected upgrade offering
// a cookie is retried.
func WithHandshakeRetries(n int) Option {
	return func(c *Client) {
		c.handshakeRetries = max(n, 0)
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = d
	}
}

func WithReceiveTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.receiveTimeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithClock replaces time.Now, used for request counters and keepalive.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}
