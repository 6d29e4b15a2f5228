package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopic(t *testing.T) {
	for _, topic := range AllTopics() {
		got, err := ParseTopic(topic.String())
		require.NoError(t, err)
		assert.Equal(t, topic, got)
	}
	_, err := ParseTopic("RcmSeries")
	assert.ErrorContains(t, err, "unknown topic")
	_, err = ParseTopic("trackstatus")
	assert.Error(t, err)
}

func TestTopic_Classes(t *testing.T) {
	assert.True(t, TopicCarDataZ.Compressed())
	assert.True(t, TopicPositionZ.Compressed())
	assert.False(t, TopicTrackStatus.Compressed())

	singletons := 0
	for _, topic := range AllTopics() {
		if topic.Singleton() {
			singletons++
		}
	}
	assert.Equal(t, 6, singletons)
	assert.False(t, TopicRaceControlMessages.Singleton())
}

func TestTrackStatus_Description(t *testing.T) {
	assert.Equal(t, "Safety Car Deployed", TrackStatus{Status: "4"}.Description())
	assert.Equal(t, "Virtual Safety Car Ending", TrackStatus{Status: "7"}.Description())
	assert.Equal(t, "9", TrackStatus{Status: "9"}.Description())
}

func TestAllTopics_Copy(t *testing.T) {
	topics := AllTopics()
	topics[0] = "changed"
	assert.Equal(t, TopicArchiveStatus, AllTopics()[0])
}
