package model

import "time"

// Event is emitted by the decoder for every processed change.
// Data holds one of the types of this package, for singleton topics it
// is the merged state at emission time.
type Event struct {
	Topic     Topic     `json:"topic"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// DecodedPayload carries the text of a compressed topic payload.
type DecodedPayload struct {
	Text string `json:"text"`
}
