//nolint:lll // readability
package livetiming

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
	"github.com/mpapenbr/f1-livetiming-go/pkg/processing"
	"github.com/mpapenbr/f1-livetiming-go/pkg/signalr"
)

var received = time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)

type sliceSource struct {
	msgs []signalr.Message
	err  error
}

func (s *sliceSource) Next(ctx context.Context) (signalr.Message, error) {
	if len(s.msgs) == 0 {
		if s.err != nil {
			return signalr.Message{}, s.err
		}
		return signalr.Message{}, io.EOF
	}
	ret := s.msgs[0]
	s.msgs = s.msgs[1:]
	return ret, nil
}

func message(t *testing.T, raw string) signalr.Message {
	t.Helper()
	msg := signalr.Message{Opcode: signalr.OpText, Raw: json.RawMessage(raw)}
	require.NoError(t, json.Unmarshal([]byte(raw), &msg.Frame))
	return msg
}

func runAll(t *testing.T, r *Runner) ([]model.Event, error) {
	t.Helper()
	out := make(chan model.Event, 100)
	err := r.Run(context.Background(), out)
	close(out)
	var events []model.Event
	for ev := range out {
		events = append(events, ev)
	}
	return events, err
}

func TestRunner_TrackStatusEndToEnd(t *testing.T) {
	src := &sliceSource{msgs: []signalr.Message{
		message(t, `{"C":"1","M":[{"H":"Streaming","M":"feed","A":["Heartbeat",{"Utc":"2024-03-02T15:00:00.1Z","_kf":true},"2024-03-02T15:00:00.1Z"]}]}`),
		message(t, `{"C":"2","M":[{"H":"Streaming","M":"feed","A":["TrackStatus",{"Status":"2","Message":"Yellow flag"},"2024-03-02T15:00:01Z"]}]}`),
		message(t, `{}`),
		message(t, `{"C":"3","M":[{"H":"Streaming","M":"feed","A":["TrackStatus",{"Status":"1","Message":"Clear"},"2024-03-02T15:00:02Z"]}]}`),
	}}
	r := NewRunner(src, WithClock(func() time.Time { return received }))
	events, err := runAll(t, r)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.TopicTrackStatus, events[1].Topic)
	assert.Equal(t, model.TrackStatus{Status: "1", Message: "Clear"}, events[1].Data)
	assert.Equal(t, time.Date(2024, 3, 2, 15, 0, 2, 0, time.UTC), events[1].Timestamp)
}

func TestRunner_Snapshot(t *testing.T) {
	src := &sliceSource{msgs: []signalr.Message{
		message(t, `{"R":{"TrackStatus":{"Status":"1","Message":"AllClear"},"LapCount":{"CurrentLap":1,"TotalLaps":57},"Heartbeat":{"Utc":"x"},"RcmSeries":{}},"I":"0"}`),
	}}
	r := NewRunner(src, WithClock(func() time.Time { return received }))
	events, err := runAll(t, r)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// snapshot topics are processed in name order
	assert.Equal(t, model.TopicLapCount, events[0].Topic)
	assert.Equal(t, model.TopicTrackStatus, events[1].Topic)
	assert.Equal(t, received, events[0].Timestamp)
	lc, ok := r.Processor().LapCount()
	require.True(t, ok)
	assert.Equal(t, 57, lc.TotalLaps)
}

func TestRunner_Malformed(t *testing.T) {
	msgs := func() []signalr.Message {
		return []signalr.Message{
			message(t, `{"M":[{"H":"Streaming","M":"feed","A":["RaceControlMessages",{"Messages":[{"Message":"no category"}]},"2024-03-02T15:00:00Z"]}]}`),
			message(t, `{"M":[{"H":"Streaming","M":"feed","A":["LapCount",{"CurrentLap":5},"2024-03-02T15:00:00Z"]}]}`),
		}
	}

	events, err := runAll(t, NewRunner(&sliceSource{msgs: msgs()}))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.TopicLapCount, events[0].Topic)

	_, err = runAll(t, NewRunner(&sliceSource{msgs: msgs()}, WithStrict(true)))
	assert.ErrorIs(t, err, processing.ErrMalformedPayload)
}

func TestRunner_SourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := runAll(t, NewRunner(&sliceSource{err: boom}))
	assert.ErrorIs(t, err, boom)
}

func TestRunner_ContextCanceled(t *testing.T) {
	src := &sliceSource{msgs: []signalr.Message{
		message(t, `{"M":[{"H":"Streaming","M":"feed","A":["LapCount",{"CurrentLap":5},"2024-03-02T15:00:00Z"]}]}`),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRunner(src).Run(ctx, make(chan model.Event))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTriples(t *testing.T) {
	msg := message(t, `{"M":[
		{"H":"Streaming","M":"feed","A":["WeatherData",{"AirTemp":"20.1"},"2024-03-02T15:00:00.5Z"]},
		{"H":"Streaming","M":"other","A":["LapCount",{}]},
		{"H":"Streaming","M":"feed","A":["LapCount",{"CurrentLap":2},"not a time"]},
		{"H":"Streaming","M":"feed","A":["LapCount"]}
	]}`)
	triples := Triples(msg, received)
	require.Len(t, triples, 2)
	assert.Equal(t, "WeatherData", triples[0].Topic)
	assert.Equal(t, time.Date(2024, 3, 2, 15, 0, 0, 500_000_000, time.UTC), triples[0].Timestamp)
	assert.Equal(t, received, triples[1].Timestamp)
	assert.JSONEq(t, `{"CurrentLap":2}`, string(triples[1].Payload))
}

func TestTriple_JSON(t *testing.T) {
	var tr Triple
	require.NoError(t, json.Unmarshal([]byte(`["TrackStatus",{"Status":"1"},"2024-03-02T15:00:00"]`), &tr))
	assert.Equal(t, "TrackStatus", tr.Topic)
	assert.Equal(t, time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC), tr.Timestamp)

	data, err := json.Marshal(tr)
	require.NoError(t, err)
	assert.JSONEq(t, `["TrackStatus",{"Status":"1"},"2024-03-02T15:00:00Z"]`, string(data))

	assert.ErrorIs(t, json.Unmarshal([]byte(`["TrackStatus"]`), &tr), ErrInvalidTriple)
}

func TestStreamingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/StreamingStatus.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		//nolint:errcheck // test server
		w.Write(append([]byte{0xef, 0xbb, 0xbf}, []byte(`{"Status":"Offline"}`)...))
	}))
	defer srv.Close()

	status, err := StreamingStatus(context.Background(), srv.Client(),
		srv.URL+"/static/StreamingStatus.json")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, status)

	_, err = StreamingStatus(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected status 404")
}
