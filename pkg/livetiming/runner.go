package livetiming

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
	"github.com/mpapenbr/f1-livetiming-go/pkg/processing"
	"github.com/mpapenbr/f1-livetiming-go/pkg/signalr"
)

// Source delivers received messages, *signalr.Client implements it.
type Source interface {
	Next(ctx context.Context) (signalr.Message, error)
}

// Runner drives a source and feeds the topic updates into a processor.
type Runner struct {
	source Source
	proc   *processing.Processor
	log    *log.Logger
	now    func() time.Time
	strict bool
}

type RunnerOption func(r *Runner)

func WithProcessor(proc *processing.Processor) RunnerOption {
	return func(r *Runner) {
		r.proc = proc
	}
}

func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// WithStrict makes malformed payloads end Run instead of being logged.
func WithStrict(strict bool) RunnerOption {
	return func(r *Runner) {
		r.strict = strict
	}
}

// NewRunner creates a runner. source may be nil if only Feed is used.
func NewRunner(source Source, opts ...RunnerOption) *Runner {
	ret := &Runner{
		source: source,
		log:    log.Default().Named("livetiming"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.proc == nil {
		ret.proc = processing.NewProcessor(processing.WithLogger(ret.log.Named("processing")))
	}
	return ret
}

func (r *Runner) Processor() *processing.Processor {
	return r.proc
}

// Run pulls messages until the stream ends or ctx is done.
// Resulting events are sent to out in order. The end of the stream is not an error.
func (r *Runner) Run(ctx context.Context, out chan<- model.Event) error {
	for {
		msg, err := r.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			r.log.Info("Stream ended")
			return nil
		}
		if err != nil {
			return err
		}
		if msg.KeepAlive() {
			continue
		}
		if err := r.Feed(Triples(msg, r.now())); err != nil {
			return err
		}
		for {
			ev, ok := r.proc.Poll()
			if !ok {
				break
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Feed passes triples to the processor. Heartbeats and unknown topics are skipped.
// Malformed payloads are logged, in strict mode the first one is returned.
func (r *Runner) Feed(triples []Triple) error {
	for _, t := range triples {
		topic, err := model.ParseTopic(t.Topic)
		if err != nil {
			r.log.Debug("skipping unknown topic", log.String("topic", t.Topic))
			continue
		}
		if topic == model.TopicHeartbeat {
			r.logHeartbeat(t.Payload)
			continue
		}
		err = r.proc.Process(topic, t.Payload, t.Timestamp)
		switch {
		case err == nil:
		case errors.Is(err, processing.ErrMalformedPayload):
			if r.strict {
				return err
			}
			r.log.Warn("Ignoring malformed payload",
				log.String("topic", t.Topic), log.ErrorField(err))
		case errors.Is(err, processing.ErrUnhandledTopic):
			r.log.Debug("topic not handled", log.String("topic", t.Topic))
		default:
			return err
		}
	}
	return nil
}

// Poll returns the next pending event of the processor.
func (r *Runner) Poll() (model.Event, bool) {
	return r.proc.Poll()
}

func (r *Runner) logHeartbeat(payload json.RawMessage) {
	var hb struct {
		Utc string `json:"Utc"` //nolint:tagliatelle // wire compatibility
	}
	if err := json.Unmarshal(payload, &hb); err == nil {
		r.log.Debug("Heartbeat", log.String("utc", hb.Utc))
	}
}
