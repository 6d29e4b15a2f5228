// Package nats publishes decoded live timing events to NATS.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
)

const (
	DefaultSubjectPrefix = "livetiming"
	DefaultBucket        = "livetiming"
	SourceHeader         = "F1lt-Source"
	TopicHeader          = "F1lt-Topic"
)

type (
	// Publisher sends every event to <prefix>.<topic>. The latest state of
	// singleton topics is additionally kept in a JetStream key value bucket
	// so late subscribers can start with the current session state.
	Publisher struct {
		conn   *nats.Conn
		kv     jetstream.KeyValue
		prefix string
		bucket string
		ttl    time.Duration
		source string
		l      *log.Logger
	}
	Option func(*Publisher)
)

func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithSnapshotBucket enables storing singleton states in the named bucket.
func WithSnapshotBucket(bucket string, ttl time.Duration) Option {
	return func(p *Publisher) {
		p.bucket = bucket
		p.ttl = ttl
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func NewPublisher(ctx context.Context, conn *nats.Conn, opts ...Option) (*Publisher, error) {
	ret := &Publisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		source: uuid.New().String(),
		l:      log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.bucket != "" {
		if err := ret.setupKV(ctx); err != nil {
			return nil, err
		}
	}
	ret.l.Info("Publisher ready",
		log.String("prefix", ret.prefix),
		log.String("bucket", ret.bucket),
		log.String("source", ret.source))
	return ret, nil
}

func (p *Publisher) setupKV(ctx context.Context) error {
	var js jetstream.JetStream
	var err error
	if js, err = jetstream.New(p.conn); err != nil {
		return err
	}
	p.kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      p.bucket,
		Description: "latest state of live timing topics",
		TTL:         p.ttl,
	})
	return err
}

// Publish sends the event and stores singleton states in the bucket.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Topic, err)
	}
	msg := nats.NewMsg(Subject(p.prefix, ev.Topic))
	msg.Header.Set(SourceHeader, p.source)
	msg.Header.Set(TopicHeader, ev.Topic.String())
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	if p.kv != nil && ev.Topic.Singleton() {
		if _, err := p.kv.Put(ctx, SnapshotKey(ev.Topic), data); err != nil {
			return fmt.Errorf("store %s snapshot: %w", ev.Topic, err)
		}
	}
	return nil
}

// Run publishes events until the channel is closed or ctx is done.
// Publish failures are logged, they do not stop the loop.
func (p *Publisher) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
					p.l.Warn("flush failed", log.ErrorField(err))
				}
				return
			}
			if err := p.Publish(ctx, ev); err != nil {
				p.l.Error("could not publish event",
					log.String("topic", ev.Topic.String()), log.ErrorField(err))
			}
		}
	}
}

// Subject maps a topic to a NATS subject. Dots in topic names would create
// additional subject tokens and are replaced.
func Subject(prefix string, topic model.Topic) string {
	return prefix + "." + SnapshotKey(topic)
}

func SnapshotKey(topic model.Topic) string {
	return strings.ReplaceAll(topic.String(), ".", "_")
}
