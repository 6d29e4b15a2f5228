package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	URL               string   // base URL of the SignalR endpoint
	StatusURL         string   // URL of the streaming status document
	Hubs              []string // hubs to connect to
	Topics            []string // topics to subscribe
	Reconnect         bool     // reopen the socket when it was closed by the server
	HandshakeRetries  int      // retries of a rejected socket upgrade offering a cookie
	PingInterval      string   // keepalive interval
	ReceiveTimeout    string   // max wait for a single socket read
	HTTPTimeout       string   // timeout of handshake http requests
	StrictPayloads    bool     // stop on malformed payloads
	NatsURL           string   // NATS server url, publishing is disabled if empty
	NatsSubjectPrefix string   // prefix of the subjects events are published to
	NatsBucket        string   // key value bucket for singleton snapshots, disabled if empty
	NatsBucketTTL     string   // ttl of bucket entries
	WaitForServices   string   // duration to wait for other services to be ready
	LogLevel          string   // sets the log level (zap log level values)
	LogFormat         string   // text vs json
	LogFilter         string   // zapfilter rules
	EnableTelemetry   bool     // enable telemetry
	TelemetryEndpoint string   // endpoint for telemetry, "stdout" prints to console
)
