package broadcast

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/f1-livetiming-go/log"
)

//nolint:lll // by design
// see https://betterprogramming.pub/how-to-broadcast-messages-in-go-using-channels-b68f42bdf32e

// BroadcastServer distributes every value of a source channel to all subscribers.
type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	// Done is closed once the server stopped and all subscriptions are closed.
	Done() <-chan struct{}
	Close()
}

type broadcastServer[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	sendTimeout    time.Duration
	bufferSize     int
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
	log            *log.Logger
}

type Option[T any] func(*broadcastServer[T])

// WithSendTimeout sets how long a slow subscriber may block a value
// before it is skipped for that subscriber.
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

// WithBufferSize sets the channel capacity of new subscriptions.
func WithBufferSize[T any](n int) Option[T] {
	return func(b *broadcastServer[T]) {
		b.bufferSize = n
	}
}

//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		sendTimeout:    50 * time.Millisecond,
		log:            log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns a channel receiving all values from now on.
// The channel is closed when the server stops.
func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufferSize)
	select {
	case b.addListener <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.done:
	}
}

func (b *broadcastServer[T]) Done() <-chan struct{} {
	return b.done
}

func (b *broadcastServer[T]) Close() {
	b.log.Info("Closing broadcast server",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
	<-b.done
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("f1lt.broadcast.%s", b.name))
	register := func(metricName, desc string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider(),
					metric.WithAttributes(attribute.String("name", b.name)))
				return nil
			})); err != nil {
			b.log.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("f1lt.broadcast.rcv", "Number of received events", b.numRcv.Load)
	register("f1lt.broadcast.snd", "Number of delivered events", b.numSnd.Load)
	register("f1lt.broadcast.skip", "Number of skipped deliveries", b.numSkip.Load)
	register("f1lt.broadcast.listener", "Number of listeners", b.numListener.Load)
}

//nolint:cyclop // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.log.Debug("Closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
		close(b.done)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			idx := slices.IndexFunc(b.listeners, func(l chan T) bool {
				return (<-chan T)(l) == ch
			})
			if idx == -1 {
				continue
			}
			close(b.listeners[idx])
			b.listeners = slices.Delete(b.listeners, idx, idx+1)
			b.numListener.Store(int64(len(b.listeners)))
			b.log.Debug("removed listener",
				log.String("name", b.name), log.Int("len", len(b.listeners)))
		case msg, ok := <-b.source:
			if !ok {
				b.log.Debug("source closed", log.String("name", b.name))
				return
			}
			b.numRcv.Add(1)
			b.deliver(msg)
		}
	}
}

func (b *broadcastServer[T]) deliver(msg T) {
	for _, listener := range b.listeners {
		timer := time.NewTimer(b.sendTimeout)
		select {
		case listener <- msg:
			b.numSnd.Add(1)
		case <-timer.C:
			b.numSkip.Add(1)
		case <-b.ctx.Done():
			timer.Stop()
			return
		}
		timer.Stop()
	}
}
