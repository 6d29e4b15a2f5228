package livetiming

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/f1-livetiming-go/pkg/signalr"
)

var ErrInvalidTriple = errors.New("triple needs topic and payload")

// Triple is one topic update as delivered by the feed.
type Triple struct {
	Topic     string
	Payload   json.RawMessage
	Timestamp time.Time
}

// MarshalJSON writes the triple as [topic, payload, timestamp].
func (t Triple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Topic, t.Payload, t.Timestamp.Format(time.RFC3339Nano)})
}

func (t *Triple) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) < 2 {
		return ErrInvalidTriple
	}
	if err := json.Unmarshal(parts[0], &t.Topic); err != nil {
		return err
	}
	t.Payload = parts[1]
	if len(parts) > 2 {
		var ts string
		if err := json.Unmarshal(parts[2], &ts); err != nil {
			return err
		}
		t.Timestamp = parseTimestamp(ts, time.Time{})
	}
	return nil
}

// Triples splits a received message into topic updates. Snapshot entries
// ("R") come first in topic name order and carry the receive time.
// Feed invocations ("M") carry their own timestamp if it can be parsed.
func Triples(msg signalr.Message, received time.Time) []Triple {
	var ret []Triple
	if len(msg.Frame.Result) > 0 {
		var snapshot map[string]json.RawMessage
		if err := json.Unmarshal(msg.Frame.Result, &snapshot); err == nil {
			keys := lo.Keys(snapshot)
			slices.Sort(keys)
			for _, k := range keys {
				ret = append(ret, Triple{Topic: k, Payload: snapshot[k], Timestamp: received})
			}
		}
	}
	for _, inv := range msg.Frame.Invocations {
		if !strings.EqualFold(inv.Method, "feed") || len(inv.Args) < 2 {
			continue
		}
		var topic string
		if err := json.Unmarshal(inv.Args[0], &topic); err != nil {
			continue
		}
		ts := received
		if len(inv.Args) > 2 {
			var raw string
			if err := json.Unmarshal(inv.Args[2], &raw); err == nil {
				ts = parseTimestamp(raw, received)
			}
		}
		ret = append(ret, Triple{Topic: topic, Payload: inv.Args[1], Timestamp: ts})
	}
	return ret
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// timestamps without zone are UTC
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC()
	}
	return fallback
}
