package signalr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/f1-livetiming-go/log"
)

var tracer = otel.Tracer("f1lt/signalr")

// HandshakeSession issues the plain HTTP requests of the protocol.
// It works on the ConnectionState it was created with.
type HandshakeSession struct {
	baseURL    string
	hubs       []string
	httpClient *http.Client
	state      *ConnectionState
	now        func() time.Time
	log        *log.Logger
}

//nolint:whitespace // can't make both editor and linter happy
func newHandshakeSession(
	baseURL string,
	hubs []string,
	httpClient *http.Client,
	state *ConnectionState,
	l *log.Logger,
) *HandshakeSession {
	return &HandshakeSession{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		hubs:       hubs,
		httpClient: httpClient,
		state:      state,
		now:        time.Now,
		log:        l,
	}
}

// Negotiate requests a connection token. Does nothing if a token is present.
func (h *HandshakeSession) Negotiate(ctx context.Context) error {
	if h.state.Negotiated() {
		return nil
	}
	negotiatedAt := h.now().UnixMilli()
	h.log.Info("Negotiating new connection", log.String("url", h.baseURL))
	params := url.Values{}
	params.Set("_", strconv.FormatInt(negotiatedAt, 10))
	params.Set("clientProtocol", ClientProtocol)
	params.Set("connectionData", connectionData(h.hubs))

	resp, err := h.do(ctx, http.MethodGet, "negotiate", params)
	if err != nil {
		return &NegotiationError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return &NegotiationError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NegotiationError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	var data negotiateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return &NegotiationError{StatusCode: resp.StatusCode, Body: snippet(body), Err: err}
	}
	if data.ConnectionToken == "" {
		return &NegotiationError{
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
			Err:        fmt.Errorf("response without connection token"),
		}
	}
	h.state.Token = data.ConnectionToken
	h.state.ConnectionID = data.ConnectionID
	h.state.RequestCounter = negotiatedAt
	h.log.Debug("Negotiated",
		log.String("connectionId", data.ConnectionID),
		log.String("protocol", data.ProtocolVersion),
		log.Int("cookies", len(h.state.Cookies)))
	return nil
}

// Start tells the server the socket is ready for streaming.
func (h *HandshakeSession) Start(ctx context.Context) error {
	if !h.state.Negotiated() {
		return ErrNotNegotiated
	}
	params := h.connectionParams()
	params.Set("_", strconv.FormatInt(h.state.nextCounter(), 10))
	ack, err := h.ack(ctx, http.MethodGet, "start", params)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if ack != "started" {
		return fmt.Errorf("%w: response %q", ErrStartRejected, ack)
	}
	h.log.Info("Started connection", log.String("connectionId", h.state.ConnectionID))
	return nil
}

// Ping probes the server session. Failures are reported as false only.
func (h *HandshakeSession) Ping(ctx context.Context) bool {
	if !h.state.Negotiated() {
		return false
	}
	params := url.Values{}
	params.Set("_", strconv.FormatInt(h.state.nextCounter(), 10))
	ack, err := h.ack(ctx, http.MethodGet, "ping", params)
	if err != nil {
		h.log.Debug("ping failed", log.ErrorField(err))
		return false
	}
	return ack == "pong"
}

// Abort asks the server to drop the connection. Never fails, reports success only.
func (h *HandshakeSession) Abort(ctx context.Context) bool {
	if !h.state.Negotiated() {
		return false
	}
	h.log.Info("Aborting connection", log.String("connectionId", h.state.ConnectionID))
	resp, err := h.do(ctx, http.MethodPost, "abort", h.connectionParams())
	if err != nil {
		h.log.Debug("abort failed", log.ErrorField(err))
		return false
	}
	defer resp.Body.Close()
	//nolint:errcheck // drain only
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (h *HandshakeSession) connectionParams() url.Values {
	params := url.Values{}
	params.Set("transport", transportName)
	params.Set("clientProtocol", ClientProtocol)
	params.Set("connectionToken", h.state.Token)
	params.Set("connectionData", connectionData(h.hubs))
	return params
}

//nolint:whitespace // can't make both editor and linter happy
func (h *HandshakeSession) ack(
	ctx context.Context, method, endpoint string, params url.Values,
) (string, error) {
	resp, err := h.do(ctx, method, endpoint, params)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}
	var data ackResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return data.Response, nil
}

// do sends the request with the stored cookies and keeps any new ones.
//
//nolint:whitespace // can't make both editor and linter happy
func (h *HandshakeSession) do(
	ctx context.Context, method, endpoint string, params url.Values,
) (*http.Response, error) {
	ctx, span := tracer.Start(ctx, "signalr."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)))
	defer span.End()
	target := fmt.Sprintf("%s/%s?%s", h.baseURL, endpoint, params.Encode())
	var body io.Reader = http.NoBody
	if method == http.MethodPost {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for _, c := range h.state.Cookies {
		req.AddCookie(c)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if cookies := resp.Cookies(); len(cookies) > 0 {
		h.state.mergeCookies(cookies)
	}
	return resp, nil
}

func snippet(body []byte) string {
	const maxLen = 256
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
