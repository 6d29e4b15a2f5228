package processing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
	"github.com/mpapenbr/f1-livetiming-go/pkg/processing/util"
)

// topicHandler applies one payload to the decoder state.
// On error the state must be unchanged.
type topicHandler interface {
	apply(s *decoderState, payload json.RawMessage, ts time.Time) ([]model.Event, error)
}

type handlerFunc func(s *decoderState, payload json.RawMessage, ts time.Time) ([]model.Event, error)

//nolint:whitespace // can't make both editor and linter happy
func (f handlerFunc) apply(
	s *decoderState, payload json.RawMessage, ts time.Time,
) ([]model.Event, error) {
	return f(s, payload, ts)
}

type noopHandler struct{}

//nolint:whitespace // can't make both editor and linter happy
func (noopHandler) apply(
	s *decoderState, payload json.RawMessage, ts time.Time,
) ([]model.Event, error) {
	return nil, nil
}

func newDispatchTable() map[model.Topic]topicHandler {
	return map[model.Topic]topicHandler{
		model.TopicExtrapolatedClock: singleton(model.TopicExtrapolatedClock,
			func(s *decoderState) **model.ExtrapolatedClock { return &s.clock }),
		model.TopicLapCount: singleton(model.TopicLapCount,
			func(s *decoderState) **model.LapCount { return &s.lapCount }),
		model.TopicTrackStatus: singleton(model.TopicTrackStatus,
			func(s *decoderState) **model.TrackStatus { return &s.trackStatus }, "Status"),
		model.TopicSessionInfo: singleton(model.TopicSessionInfo,
			func(s *decoderState) **model.SessionInfo { return &s.sessionInfo }),
		model.TopicSessionStatus: singleton(model.TopicSessionStatus,
			func(s *decoderState) **model.SessionStatus { return &s.sessionStatus }, "Status"),
		model.TopicArchiveStatus: singleton(model.TopicArchiveStatus,
			func(s *decoderState) **model.ArchiveStatus { return &s.archiveStatus }, "Status"),

		model.TopicRaceControlMessages: history(model.TopicRaceControlMessages, "Messages",
			func(s *decoderState) *[]model.RaceControlMessage { return &s.raceControl },
			"Category", "Message"),
		model.TopicTeamRadio: history(model.TopicTeamRadio, "Captures",
			func(s *decoderState) *[]model.TeamRadioCapture { return &s.teamRadio },
			"RacingNumber", "Path"),

		model.TopicAudioStreams: streams(model.TopicAudioStreams,
			func(s *decoderState) *[]model.Stream { return &s.audioStreams }),
		model.TopicContentStreams: streams(model.TopicContentStreams,
			func(s *decoderState) *[]model.Stream { return &s.contentStreams }),

		model.TopicDriverList: handlerFunc(applyDriverList),
		model.TopicCarDataZ:   compressed(model.TopicCarDataZ),
		model.TopicPositionZ:  compressed(model.TopicPositionZ),

		model.TopicTimingData:    noopHandler{},
		model.TopicTimingAppData: noopHandler{},
		model.TopicTimingStats:   noopHandler{},
		model.TopicWeatherData:   noopHandler{},
		model.TopicSessionData:   noopHandler{},
		model.TopicTopThree:      noopHandler{},
	}
}

// singleton creates the canonical object with the first payload and merges
// the fields present in later payloads into it. required fields are only
// checked on creation.
//
//nolint:whitespace // can't make both editor and linter happy
func singleton[T any](
	topic model.Topic, slot func(*decoderState) **T, required ...string,
) topicHandler {
	return handlerFunc(func(
		s *decoderState, payload json.RawMessage, ts time.Time,
	) ([]model.Event, error) {
		fields, err := objectFields(topic, payload)
		if err != nil {
			return nil, err
		}
		current := slot(s)
		var next T
		if *current == nil {
			if err := requireFields(topic, fields, required...); err != nil {
				return nil, err
			}
		} else {
			next = **current
		}
		if err := json.Unmarshal(payload, &next); err != nil {
			return nil, malformed(topic, "unexpected field type", err)
		}
		if *current == nil {
			*current = &next
		} else {
			**current = next
		}
		return []model.Event{{Topic: topic, Data: next, Timestamp: ts}}, nil
	})
}

// collection is a payload container which arrives either as list or as
// mapping of index to item.
type collection[T any] struct {
	keyed bool
	keys  []string
	items []T
}

//nolint:whitespace // can't make both editor and linter happy
func decodeCollection[T any](
	topic model.Topic, raw json.RawMessage, required ...string,
) (collection[T], error) {
	var ret collection[T]
	var rawItems []json.RawMessage
	switch firstByte(raw) {
	case '[':
		if err := json.Unmarshal(raw, &rawItems); err != nil {
			return ret, malformed(topic, "invalid list", err)
		}
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return ret, malformed(topic, "invalid mapping", err)
		}
		ret.keyed = true
		ret.keys = util.SortedKeys(m)
		for _, k := range ret.keys {
			rawItems = append(rawItems, m[k])
		}
	default:
		return ret, malformed(topic, "expected list or mapping", nil)
	}
	for i, item := range rawItems {
		fields, err := objectFields(topic, item)
		if err != nil {
			return ret, err
		}
		if err := requireFields(topic, fields, required...); err != nil {
			return ret, fmt.Errorf("item %d: %w", i, err)
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return ret, malformed(topic, "unexpected field type", err)
		}
		ret.items = append(ret.items, v)
	}
	return ret, nil
}

// history handles the message collections of race control and team radio.
// A list replaces the retained history, a mapping appends to it.
//
//nolint:whitespace // can't make both editor and linter happy
func history[T any](
	topic model.Topic, container string, slot func(*decoderState) *[]T, required ...string,
) topicHandler {
	return handlerFunc(func(
		s *decoderState, payload json.RawMessage, ts time.Time,
	) ([]model.Event, error) {
		fields, err := objectFields(topic, payload)
		if err != nil {
			return nil, err
		}
		if err := requireFields(topic, fields, container); err != nil {
			return nil, err
		}
		coll, err := decodeCollection[T](topic, fields[container], required...)
		if err != nil {
			return nil, err
		}
		retained := slot(s)
		if !coll.keyed {
			*retained = nil
		}
		*retained = append(*retained, coll.items...)
		ret := make([]model.Event, 0, len(coll.items))
		for _, item := range coll.items {
			ret = append(ret, model.Event{Topic: topic, Data: item, Timestamp: ts})
		}
		return ret, nil
	})
}

// streams handles AudioStreams and ContentStreams. A list is a full replace,
// a mapping updates the entries at the given indexes.
func streams(topic model.Topic, slot func(*decoderState) *[]model.Stream) topicHandler {
	return handlerFunc(func(
		s *decoderState, payload json.RawMessage, ts time.Time,
	) ([]model.Event, error) {
		fields, err := objectFields(topic, payload)
		if err != nil {
			return nil, err
		}
		if err := requireFields(topic, fields, "Streams"); err != nil {
			return nil, err
		}
		if firstByte(fields["Streams"]) == '{' {
			return upsertStreams(topic, slot(s), fields["Streams"], ts)
		}
		coll, err := decodeCollection[model.Stream](topic, fields["Streams"], "Uri")
		if err != nil {
			return nil, err
		}
		*slot(s) = coll.items
		ret := make([]model.Event, 0, len(coll.items))
		for _, item := range coll.items {
			ret = append(ret, model.Event{Topic: topic, Data: item, Timestamp: ts})
		}
		return ret, nil
	})
}

// upper bound of keyed stream indexes
const maxStreamIndex = 255

//nolint:whitespace // can't make both editor and linter happy
func upsertStreams(
	topic model.Topic, retained *[]model.Stream, raw json.RawMessage, ts time.Time,
) ([]model.Event, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, malformed(topic, "invalid mapping", err)
	}
	next := append([]model.Stream(nil), *retained...)
	var ret []model.Event
	for _, k := range util.SortedKeys(m) {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx > maxStreamIndex {
			return nil, malformed(topic, fmt.Sprintf("invalid stream index %q", k), err)
		}
		fields, err := objectFields(topic, m[k])
		if err != nil {
			return nil, err
		}
		if idx >= len(next) {
			// unseen indexes stay empty until the server fills them
			next = append(next, make([]model.Stream, idx+1-len(next))...)
		}
		stream := next[idx]
		if stream.Uri == "" {
			if err := requireFields(topic, fields, "Uri"); err != nil {
				return nil, err
			}
		}
		if err := json.Unmarshal(m[k], &stream); err != nil {
			return nil, malformed(topic, "unexpected field type", err)
		}
		next[idx] = stream
		ret = append(ret, model.Event{Topic: topic, Data: stream, Timestamp: ts})
	}
	*retained = next
	return ret, nil
}

// applyDriverList upserts roster entries. Underscore keys, non-object entries
// and position-only deltas ({"Line":n}) are skipped.
//
//nolint:whitespace // can't make both editor and linter happy
func applyDriverList(
	s *decoderState, payload json.RawMessage, ts time.Time,
) ([]model.Event, error) {
	topic := model.TopicDriverList
	entries, err := objectFields(topic, payload)
	if err != nil {
		return nil, err
	}
	updates := make([]model.Driver, 0, len(entries))
	for _, num := range util.SortedKeys(entries) {
		if strings.HasPrefix(num, "_") || firstByte(entries[num]) != '{' {
			continue
		}
		fields, err := objectFields(topic, entries[num])
		if err != nil {
			return nil, err
		}
		if _, ok := fields["Line"]; ok && len(fields) == 1 {
			continue
		}
		if err := requireFields(topic, fields, "RacingNumber"); err != nil {
			return nil, fmt.Errorf("driver %s: %w", num, err)
		}
		var d model.Driver
		if err := json.Unmarshal(entries[num], &d); err != nil {
			return nil, malformed(topic, "unexpected field type", err)
		}
		if d.RacingNumber != num {
			return nil, malformed(topic,
				fmt.Sprintf("driver %s: racing number %q does not match key", num, d.RacingNumber), nil)
		}
		updates = append(updates, d)
	}
	ret := make([]model.Event, 0, len(updates))
	for _, d := range updates {
		s.drivers[d.RacingNumber] = d
		ret = append(ret, model.Event{Topic: topic, Data: d, Timestamp: ts})
	}
	return ret, nil
}

func compressed(topic model.Topic) topicHandler {
	return handlerFunc(func(
		s *decoderState, payload json.RawMessage, ts time.Time,
	) ([]model.Event, error) {
		var encoded string
		if err := json.Unmarshal(payload, &encoded); err != nil {
			return nil, malformed(topic, "expected base64 string", err)
		}
		text, err := util.Inflate(encoded)
		if err != nil {
			return nil, malformed(topic, "cannot decode compressed data", err)
		}
		return []model.Event{{
			Topic:     topic,
			Data:      model.DecodedPayload{Text: text},
			Timestamp: ts,
		}}, nil
	})
}

func objectFields(topic model.Topic, raw json.RawMessage) (map[string]json.RawMessage, error) {
	if firstByte(raw) != '{' {
		return nil, malformed(topic, "expected object", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, malformed(topic, "invalid object", err)
	}
	return fields, nil
}

//nolint:whitespace // can't make both editor and linter happy
func requireFields(
	topic model.Topic, fields map[string]json.RawMessage, names ...string,
) error {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || string(v) == "null" {
			return malformed(topic, fmt.Sprintf("missing field %s", name), nil)
		}
	}
	return nil
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b
		}
	}
	return 0
}
