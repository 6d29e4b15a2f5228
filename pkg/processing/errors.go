package processing

import (
	"errors"
	"fmt"

	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnhandledTopic   = errors.New("unhandled topic")
)

// MalformedPayloadError is returned when a payload lacks a required field
// or does not have the expected shape. The decoder state is left unchanged.
type MalformedPayloadError struct {
	Topic  model.Topic
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s payload: %s: %v", e.Topic, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s payload: %s", e.Topic, e.Reason)
}

func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

func malformed(topic model.Topic, reason string, err error) error {
	return &MalformedPayloadError{Topic: topic, Reason: reason, Err: err}
}
