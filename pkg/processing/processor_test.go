//nolint:funlen,lll // readability
package processing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
	"github.com/mpapenbr/f1-livetiming-go/pkg/processing/util"
)

var testTime = time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)

func drain(p *Processor) []model.Event {
	var ret []model.Event
	for {
		ev, ok := p.Poll()
		if !ok {
			return ret
		}
		ret = append(ret, ev)
	}
}

func feed(t *testing.T, p *Processor, topic model.Topic, payloads ...string) {
	t.Helper()
	for _, payload := range payloads {
		require.NoError(t, p.Process(topic, json.RawMessage(payload), testTime))
	}
}

func TestProcessor_ExtrapolatedClockMerge(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicExtrapolatedClock,
		`{"Remaining":"1:00:00"}`,
		`{"Extrapolating":true}`)

	clock, ok := p.ExtrapolatedClock()
	require.True(t, ok)
	assert.Equal(t, model.ExtrapolatedClock{Remaining: "1:00:00", Extrapolating: true}, clock)

	events := drain(p)
	require.Len(t, events, 2)
	assert.Equal(t, model.ExtrapolatedClock{Remaining: "1:00:00"}, events[0].Data)
	assert.Equal(t, clock, events[1].Data)
	assert.Equal(t, testTime, events[1].Timestamp)
}

func TestProcessor_SingletonNestedMerge(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicSessionInfo,
		`{"Meeting":{"Name":"Bahrain Grand Prix","Country":{"Code":"BRN","Name":"Bahrain"}},"Name":"Race","Type":"Race","ArchiveStatus":{"Status":"Generating"},"_kf":true}`,
		`{"Meeting":{"Country":{"Name":"Kingdom of Bahrain"}},"ArchiveStatus":{"Status":"Complete"}}`)

	info, ok := p.SessionInfo()
	require.True(t, ok)
	want := model.SessionInfo{
		Meeting: model.Meeting{
			Name:    "Bahrain Grand Prix",
			Country: model.Country{Code: "BRN", Name: "Kingdom of Bahrain"},
		},
		ArchiveStatus: model.ArchiveStatus{Status: "Complete"},
		Name:          "Race",
		Type:          "Race",
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("SessionInfo() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Bahrain Grand Prix - Race (Race)", info.String())
}

func TestProcessor_SingletonEventsAreSnapshots(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicLapCount, `{"CurrentLap":1,"TotalLaps":57}`, `{"CurrentLap":2}`)
	events := drain(p)
	require.Len(t, events, 2)
	assert.Equal(t, model.LapCount{CurrentLap: 1, TotalLaps: 57}, events[0].Data)
	assert.Equal(t, model.LapCount{CurrentLap: 2, TotalLaps: 57}, events[1].Data)
}

func TestProcessor_RaceControlListThenKeyed(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicRaceControlMessages,
		`{"Messages":[{"Category":"Flag","Message":"GREEN","Flag":"GREEN"}]}`,
		`{"Messages":{"1":{"Category":"Other","Message":"Pit lane open"}}}`)

	msgs := p.RaceControlMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "GREEN", msgs[0].Flag)
	assert.Equal(t, "Pit lane open", msgs[1].Message)
	assert.Len(t, drain(p), 2)
}

func TestProcessor_History(t *testing.T) {
	type args struct {
		topic    model.Topic
		payloads []string
	}
	tests := []struct {
		name       string
		args       args
		wantLen    int
		wantEvents int
		wantErr    bool
	}{
		{
			name: "list resets history",
			args: args{topic: model.TopicRaceControlMessages, payloads: []string{
				`{"Messages":[{"Category":"Flag","Message":"A"},{"Category":"Flag","Message":"B"}]}`,
				`{"Messages":[{"Category":"Flag","Message":"C"}]}`,
			}},
			wantLen:    1,
			wantEvents: 3,
		},
		{
			name: "keyed appends in index order",
			args: args{topic: model.TopicRaceControlMessages, payloads: []string{
				`{"Messages":{"10":{"Category":"Other","Message":"B"},"9":{"Category":"Other","Message":"A"}}}`,
			}},
			wantLen:    2,
			wantEvents: 2,
		},
		{
			name: "missing category",
			args: args{topic: model.TopicRaceControlMessages, payloads: []string{
				`{"Messages":[{"Message":"GREEN"}]}`,
			}},
			wantErr: true,
		},
		{
			name: "messages neither list nor mapping",
			args: args{topic: model.TopicRaceControlMessages, payloads: []string{
				`{"Messages":"GREEN"}`,
			}},
			wantErr: true,
		},
		{
			name: "team radio captures",
			args: args{topic: model.TopicTeamRadio, payloads: []string{
				`{"Captures":[{"Utc":"2024-03-02T15:01:00Z","RacingNumber":"1","Path":"TeamRadio/MAXVER01_1.mp3"}]}`,
				`{"Captures":{"1":{"Utc":"2024-03-02T15:02:00Z","RacingNumber":"44","Path":"TeamRadio/LEWHAM01_44.mp3"}}}`,
			}},
			wantLen:    2,
			wantEvents: 2,
		},
		{
			name: "team radio without path",
			args: args{topic: model.TopicTeamRadio, payloads: []string{
				`{"Captures":[{"RacingNumber":"1"}]}`,
			}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor()
			var err error
			for _, payload := range tt.args.payloads {
				if err = p.Process(tt.args.topic, json.RawMessage(payload), testTime); err != nil {
					break
				}
			}
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedPayload)
				var mpErr *MalformedPayloadError
				require.ErrorAs(t, err, &mpErr)
				assert.Equal(t, tt.args.topic, mpErr.Topic)
				assert.Empty(t, p.RaceControlMessages())
				assert.Empty(t, p.TeamRadio())
				assert.Zero(t, p.Pending())
				return
			}
			require.NoError(t, err)
			got := len(p.RaceControlMessages()) + len(p.TeamRadio())
			assert.Equal(t, tt.wantLen, got)
			assert.Len(t, drain(p), tt.wantEvents)
		})
	}
}

func TestProcessor_KeyedOrder(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicRaceControlMessages,
		`{"Messages":{"10":{"Category":"Other","Message":"B"},"9":{"Category":"Other","Message":"A"}}}`)
	msgs := p.RaceControlMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "A", msgs[0].Message)
	assert.Equal(t, "B", msgs[1].Message)
}

func TestProcessor_DriverList(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicDriverList,
		`{"1":{"RacingNumber":"1","Tla":"VER","FirstName":"Max","LastName":"Verstappen","Line":1},"_kf":true}`)
	require.Len(t, drain(p), 1)

	// position-only delta
	feed(t, p, model.TopicDriverList, `{"1":{"Line":3}}`)
	assert.Empty(t, drain(p))
	d, ok := p.Driver("1")
	require.True(t, ok)
	assert.Equal(t, 1, d.Line)
	assert.Equal(t, "VER (1)", d.String())

	// non object entries are skipped too
	feed(t, p, model.TopicDriverList, `{"44":"invalid","16":{"RacingNumber":"16","Tla":"LEC"}}`)
	events := drain(p)
	require.Len(t, events, 1)
	assert.Equal(t, "LEC", events[0].Data.(model.Driver).Tla)

	feed(t, p, model.TopicDriverList, `{"1":{"RacingNumber":"1","Tla":"VER","Line":2}}`)
	d, _ = p.Driver("1")
	assert.Equal(t, model.Driver{RacingNumber: "1", Tla: "VER", Line: 2}, d)

	drivers := p.Drivers()
	require.Len(t, drivers, 2)
	assert.Equal(t, "1", drivers[0].RacingNumber)
	assert.Equal(t, "16", drivers[1].RacingNumber)
}

func TestProcessor_DriverListMissingNumber(t *testing.T) {
	p := NewProcessor(WithDrivers(model.Driver{RacingNumber: "4", Tla: "NOR"}))
	err := p.Process(model.TopicDriverList,
		json.RawMessage(`{"4":{"Tla":"NOR","TeamName":"McLaren"},"81":{"RacingNumber":"81"}}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.Len(t, p.Drivers(), 1)
	_, ok := p.Driver("81")
	assert.False(t, ok)
}

func TestProcessor_DriverListKeyMismatch(t *testing.T) {
	p := NewProcessor(WithDrivers(model.Driver{RacingNumber: "4", Tla: "NOR"}))
	err := p.Process(model.TopicDriverList,
		json.RawMessage(`{"4":{"RacingNumber":"81","Tla":"PIA"}}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)
	d, ok := p.Driver("4")
	require.True(t, ok)
	assert.Equal(t, "NOR", d.Tla)
	_, ok = p.Driver("81")
	assert.False(t, ok)
}

func TestProcessor_AudioStreams(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicAudioStreams,
		`{"Streams":[{"Name":"FX","Language":"en","Uri":"https://example.com/fx.m3u8","Path":"AudioStreams/FX.m3u8"},{"Name":"Driver","Language":"en","Uri":"https://example.com/drv.m3u8"}]}`)
	assert.Len(t, drain(p), 2)

	feed(t, p, model.TopicAudioStreams,
		`{"Streams":[{"Name":"Team","Language":"de","Uri":"https://example.com/team.m3u8"}]}`)
	streams := p.AudioStreams()
	require.Len(t, streams, 1)
	assert.Equal(t, "Team", streams[0].Name)
	assert.Len(t, drain(p), 1)

	feed(t, p, model.TopicAudioStreams,
		`{"Streams":{"0":{"Language":"fr"},"1":{"Name":"Radio","Uri":"https://example.com/radio.m3u8"}}}`)
	streams = p.AudioStreams()
	require.Len(t, streams, 2)
	assert.Equal(t, model.Stream{Name: "Team", Language: "fr", Uri: "https://example.com/team.m3u8"}, streams[0])
	assert.Equal(t, "Radio", streams[1].Name)

	err := p.Process(model.TopicAudioStreams, json.RawMessage(`{"Streams":[{"Name":"NoUri"}]}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.Len(t, p.AudioStreams(), 2)
	assert.Empty(t, p.ContentStreams())
}

func TestProcessor_AudioStreamsGappedIndex(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicAudioStreams, `{"Streams":[{"Name":"A","Uri":"a"}]}`)
	feed(t, p, model.TopicAudioStreams, `{"Streams":{"3":{"Name":"D","Uri":"d"}}}`)
	streams := p.AudioStreams()
	require.Len(t, streams, 4)
	assert.Equal(t, "D", streams[3].Name)
	assert.Equal(t, model.Stream{}, streams[1])

	// a gap slot needs its Uri when it is filled
	err := p.Process(model.TopicAudioStreams,
		json.RawMessage(`{"Streams":{"2":{"Name":"C"}}}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)

	err = p.Process(model.TopicAudioStreams,
		json.RawMessage(`{"Streams":{"100000":{"Name":"X","Uri":"x"}}}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)

	feed(t, p, model.TopicAudioStreams, `{"Streams":{"1":{"Name":"B","Uri":"b"}}}`)
	streams = p.AudioStreams()
	require.Len(t, streams, 4)
	assert.Equal(t, "A", streams[0].Name)
	assert.Equal(t, "B", streams[1].Name)
	assert.Equal(t, "D", streams[3].Name)
}

func TestProcessor_ContentStreams(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicContentStreams,
		`{"Streams":[{"Type":"Commentary","Name":"monterosa","Language":"en","Uri":"https://example.com/live"}]}`)
	streams := p.ContentStreams()
	require.Len(t, streams, 1)
	assert.Equal(t, "Commentary", streams[0].Type)
}

func TestProcessor_Compressed(t *testing.T) {
	source := `{"Position":[{"Timestamp":"2024-03-02T15:00:00Z","Entries":{"1":{"Status":"OnTrack","X":1,"Y":2,"Z":3}}}]}`
	encoded, err := util.Deflate(source, false)
	require.NoError(t, err)
	payload, err := json.Marshal(encoded)
	require.NoError(t, err)

	p := NewProcessor()
	require.NoError(t, p.Process(model.TopicPositionZ, payload, testTime))
	events := drain(p)
	require.Len(t, events, 1)
	assert.Equal(t, model.DecodedPayload{Text: source}, events[0].Data)

	err = p.Process(model.TopicCarDataZ, json.RawMessage(`{"not":"a string"}`), testTime)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	err = p.Process(model.TopicCarDataZ, json.RawMessage(`"@@@"`), testTime)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestProcessor_Unmodeled(t *testing.T) {
	p := NewProcessor()
	for _, topic := range []model.Topic{
		model.TopicTimingData, model.TopicTimingAppData, model.TopicTimingStats,
		model.TopicWeatherData, model.TopicSessionData, model.TopicTopThree,
	} {
		require.NoError(t, p.Process(topic, json.RawMessage(`{"Lines":{}}`), testTime))
		require.NoError(t, p.Process(topic, json.RawMessage(`garbage`), testTime))
	}
	assert.Zero(t, p.Pending())
}

func TestProcessor_Heartbeat(t *testing.T) {
	p := NewProcessor()
	err := p.Process(model.TopicHeartbeat, json.RawMessage(`{"Utc":"2024-03-02T15:00:00Z"}`), testTime)
	assert.True(t, errors.Is(err, ErrUnhandledTopic))
	assert.False(t, p.Handles(model.TopicHeartbeat))
	assert.Zero(t, p.Pending())
}

func TestProcessor_TrackStatus(t *testing.T) {
	p := NewProcessor()
	err := p.Process(model.TopicTrackStatus, json.RawMessage(`{"Message":"Yellow"}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)
	_, ok := p.TrackStatus()
	assert.False(t, ok)

	err = p.Process(model.TopicTrackStatus, json.RawMessage(`[1,2]`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)

	feed(t, p, model.TopicTrackStatus,
		`{"Status":"2","Message":"Yellow flag"}`,
		`{"Status":"1","Message":"Clear"}`)
	events := drain(p)
	require.Len(t, events, 2)
	ts := events[1].Data.(model.TrackStatus)
	assert.Equal(t, model.TrackStatus{Status: "1", Message: "Clear"}, ts)
	assert.Equal(t, "All Clear", ts.Description())
	assert.Equal(t, "Yellow flag", events[0].Data.(model.TrackStatus).Message)

	// status is only required on creation
	feed(t, p, model.TopicTrackStatus, `{"Message":"AllClear"}`)
	cur, _ := p.TrackStatus()
	assert.Equal(t, model.TrackStatus{Status: "1", Message: "AllClear"}, cur)
}

func TestProcessor_SingletonWrongType(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicLapCount, `{"CurrentLap":3,"TotalLaps":57}`)
	err := p.Process(model.TopicLapCount, json.RawMessage(`{"CurrentLap":"four","TotalLaps":58}`), testTime)
	require.ErrorIs(t, err, ErrMalformedPayload)
	lc, _ := p.LapCount()
	assert.Equal(t, model.LapCount{CurrentLap: 3, TotalLaps: 57}, lc)
}

func TestProcessor_StatusTopics(t *testing.T) {
	p := NewProcessor()
	feed(t, p, model.TopicSessionStatus, `{"Status":"Started"}`)
	feed(t, p, model.TopicArchiveStatus, `{"Status":"Generating"}`)
	ss, ok := p.SessionStatus()
	require.True(t, ok)
	assert.Equal(t, "Started", ss.Status)
	as, ok := p.ArchiveStatus()
	require.True(t, ok)
	assert.Equal(t, "Generating", as.Status)
	require.ErrorIs(t,
		NewProcessor().Process(model.TopicSessionStatus, json.RawMessage(`{}`), testTime),
		ErrMalformedPayload)
}

func TestProcessor_AllTopicsDispatched(t *testing.T) {
	p := NewProcessor()
	for _, topic := range model.AllTopics() {
		if topic == model.TopicHeartbeat {
			continue
		}
		assert.True(t, p.Handles(topic), "no handler for %s", topic)
	}
}
