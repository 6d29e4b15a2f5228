package processing

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
	"github.com/mpapenbr/f1-livetiming-go/pkg/processing/util"
)

// decoderState holds the canonical objects and collections of a session.
type decoderState struct {
	clock          *model.ExtrapolatedClock
	lapCount       *model.LapCount
	trackStatus    *model.TrackStatus
	sessionInfo    *model.SessionInfo
	sessionStatus  *model.SessionStatus
	archiveStatus  *model.ArchiveStatus
	raceControl    []model.RaceControlMessage
	teamRadio      []model.TeamRadioCapture
	audioStreams   []model.Stream
	contentStreams []model.Stream
	drivers        map[string]model.Driver
}

// Processor turns topic payloads into merged domain state and events.
// Process and the accessors must be called from one goroutine,
// Poll may be called from any goroutine.
type Processor struct {
	handlers map[model.Topic]topicHandler
	state    *decoderState
	events   *eventQueue
	log      *log.Logger
}

type ProcessorOption func(proc *Processor)

func WithLogger(l *log.Logger) ProcessorOption {
	return func(proc *Processor) {
		proc.log = l
	}
}

// WithDrivers seeds the roster, for example from a previous session snapshot.
func WithDrivers(drivers ...model.Driver) ProcessorOption {
	return func(proc *Processor) {
		for _, d := range drivers {
			proc.state.drivers[d.RacingNumber] = d
		}
	}
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	ret := &Processor{
		handlers: newDispatchTable(),
		state:    &decoderState{drivers: make(map[string]model.Driver)},
		events:   newEventQueue(),
		log:      log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Process applies a payload of topic and queues the resulting events.
// ErrUnhandledTopic is returned for topics without handler (Heartbeat).
//
//nolint:whitespace // can't make both editor and linter happy
func (p *Processor) Process(
	topic model.Topic, payload json.RawMessage, ts time.Time,
) error {
	h, ok := p.handlers[topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnhandledTopic, topic)
	}
	events, err := h.apply(p.state, payload, ts)
	if err != nil {
		p.log.Debug("payload rejected",
			log.String("topic", topic.String()), log.ErrorField(err))
		return err
	}
	p.events.push(events...)
	return nil
}

// Poll returns the oldest queued event. It never blocks.
func (p *Processor) Poll() (model.Event, bool) {
	return p.events.poll()
}

// Pending returns the number of queued events.
func (p *Processor) Pending() int {
	return p.events.length()
}

// Handles reports whether Process accepts the topic.
func (p *Processor) Handles(topic model.Topic) bool {
	_, ok := p.handlers[topic]
	return ok
}

func (p *Processor) ExtrapolatedClock() (model.ExtrapolatedClock, bool) {
	return snapshot(p.state.clock)
}

func (p *Processor) LapCount() (model.LapCount, bool) {
	return snapshot(p.state.lapCount)
}

func (p *Processor) TrackStatus() (model.TrackStatus, bool) {
	return snapshot(p.state.trackStatus)
}

func (p *Processor) SessionInfo() (model.SessionInfo, bool) {
	return snapshot(p.state.sessionInfo)
}

func (p *Processor) SessionStatus() (model.SessionStatus, bool) {
	return snapshot(p.state.sessionStatus)
}

func (p *Processor) ArchiveStatus() (model.ArchiveStatus, bool) {
	return snapshot(p.state.archiveStatus)
}

func (p *Processor) RaceControlMessages() []model.RaceControlMessage {
	return slices.Clone(p.state.raceControl)
}

func (p *Processor) TeamRadio() []model.TeamRadioCapture {
	return slices.Clone(p.state.teamRadio)
}

func (p *Processor) AudioStreams() []model.Stream {
	return slices.Clone(p.state.audioStreams)
}

func (p *Processor) ContentStreams() []model.Stream {
	return slices.Clone(p.state.contentStreams)
}

func (p *Processor) Driver(racingNumber string) (model.Driver, bool) {
	d, ok := p.state.drivers[racingNumber]
	return d, ok
}

// Drivers returns the roster ordered by racing number.
func (p *Processor) Drivers() []model.Driver {
	ret := lo.Values(p.state.drivers)
	slices.SortFunc(ret, func(a, b model.Driver) int {
		return util.CompareIndex(a.RacingNumber, b.RacingNumber)
	})
	return ret
}

func snapshot[T any](v *T) (T, bool) {
	if v == nil {
		var zero T
		return zero, false
	}
	return *v, true
}
