package model

import (
	"fmt"
	"slices"
)

// Topic names a feed of the streaming hub.
type Topic string

const (
	TopicArchiveStatus       Topic = "ArchiveStatus"
	TopicAudioStreams        Topic = "AudioStreams"
	TopicCarDataZ            Topic = "CarData.z"
	TopicContentStreams      Topic = "ContentStreams"
	TopicDriverList          Topic = "DriverList"
	TopicExtrapolatedClock   Topic = "ExtrapolatedClock"
	TopicHeartbeat           Topic = "Heartbeat"
	TopicLapCount            Topic = "LapCount"
	TopicPositionZ           Topic = "Position.z"
	TopicRaceControlMessages Topic = "RaceControlMessages"
	TopicSessionData         Topic = "SessionData"
	TopicSessionInfo         Topic = "SessionInfo"
	TopicSessionStatus       Topic = "SessionStatus"
	TopicTeamRadio           Topic = "TeamRadio"
	TopicTimingAppData       Topic = "TimingAppData"
	TopicTimingData          Topic = "TimingData"
	TopicTimingStats         Topic = "TimingStats"
	TopicTopThree            Topic = "TopThree"
	TopicTrackStatus         Topic = "TrackStatus"
	TopicWeatherData         Topic = "WeatherData"
)

// StreamingHub is the only hub the live timing service offers.
const StreamingHub = "streaming"

var allTopics = []Topic{
	TopicArchiveStatus,
	TopicAudioStreams,
	TopicCarDataZ,
	TopicContentStreams,
	TopicDriverList,
	TopicExtrapolatedClock,
	TopicHeartbeat,
	TopicLapCount,
	TopicPositionZ,
	TopicRaceControlMessages,
	TopicSessionData,
	TopicSessionInfo,
	TopicSessionStatus,
	TopicTeamRadio,
	TopicTimingAppData,
	TopicTimingData,
	TopicTimingStats,
	TopicTopThree,
	TopicTrackStatus,
	TopicWeatherData,
}

// AllTopics returns every known topic. The returned slice may be modified.
func AllTopics() []Topic {
	return slices.Clone(allTopics)
}

// ParseTopic resolves a wire name to a known topic.
func ParseTopic(name string) (Topic, error) {
	t := Topic(name)
	if !slices.Contains(allTopics, t) {
		return "", fmt.Errorf("unknown topic %q", name)
	}
	return t, nil
}

func (t Topic) String() string {
	return string(t)
}

// Compressed reports whether payloads of this topic are base64 encoded deflate data.
func (t Topic) Compressed() bool {
	return t == TopicCarDataZ || t == TopicPositionZ
}

// Singleton reports whether the topic describes a single evolving object.
func (t Topic) Singleton() bool {
	switch t {
	case TopicArchiveStatus, TopicExtrapolatedClock, TopicLapCount,
		TopicSessionInfo, TopicSessionStatus, TopicTrackStatus:
		return true
	default:
		return false
	}
}
