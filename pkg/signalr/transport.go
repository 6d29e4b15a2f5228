package signalr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Dialer opens the websocket of a session.
// A rejected upgrade must be reported as *TransportHandshakeError.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Conn is a message oriented websocket connection.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	// Receive waits at most timeout for the next message.
	// ErrReceiveTimeout is returned if nothing arrived in time,
	// errors wrapping ErrConnectionClosed if the connection is gone.
	Receive(ctx context.Context, timeout time.Duration) (Opcode, []byte, error)
	Close() error
}

// the initial snapshot of all topics easily exceeds the library default
const defaultReadLimit = 64 << 20

type WebsocketDialer struct {
	HTTPClient *http.Client
	ReadLimit  int64
}

var _ Dialer = (*WebsocketDialer)(nil)

//nolint:whitespace // can't make both editor and linter happy
func (d *WebsocketDialer) Dial(
	ctx context.Context, url string, header http.Header,
) (Conn, error) {
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &TransportHandshakeError{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Err:        err,
			}
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	c.SetReadLimit(limit)
	ret := &wsConn{
		conn:   c,
		frames: make(chan wsFrame),
		done:   make(chan struct{}),
	}
	go ret.readLoop()
	return ret, nil
}

type (
	wsConn struct {
		conn      *websocket.Conn
		frames    chan wsFrame
		done      chan struct{}
		closeOnce sync.Once
	}
	wsFrame struct {
		typ  websocket.MessageType
		data []byte
		err  error
	}
)

// readLoop owns all reads so that a receive timeout never interrupts
// a read in progress.
func (w *wsConn) readLoop() {
	defer close(w.frames)
	for {
		typ, data, err := w.conn.Read(context.Background())
		select {
		case w.frames <- wsFrame{typ: typ, data: data, err: err}:
		case <-w.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (w *wsConn) Send(ctx context.Context, data []byte) error {
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (w *wsConn) Receive(
	ctx context.Context, timeout time.Duration,
) (Opcode, []byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f, ok := <-w.frames:
		if !ok {
			return 0, nil, ErrConnectionClosed
		}
		if f.err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrConnectionClosed, f.err)
		}
		return Opcode(f.typ), f.data, nil
	case <-timer.C:
		return 0, nil, ErrReceiveTimeout
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close(websocket.StatusNormalClosure, "")
		var ce websocket.CloseError
		if errors.As(err, &ce) && ce.Code == websocket.StatusNormalClosure {
			err = nil
		}
	})
	return err
}
