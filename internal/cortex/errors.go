package cortex

import (
	"errors"
	"fmt"
)

// ErrAggregatorFinished is returned when an event arrives after the response was handed out
var ErrAggregatorFinished = errors.New("cortex: aggregator already finished")

// TransportError is a connection or HTTP status failure. It is fatal for the call.
type TransportError struct {
	StatusCode int    // 0 when no response was received
	Body       string // response body for status failures
	Err        error  // underlying cause, if any
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("agent transport error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("agent transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AgentProtocolError means the server emitted an explicit error event
type AgentProtocolError struct {
	Message   string
	Code      string
	RequestID string
}

func (e *AgentProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("agent error: %s", e.Message)
}

// MalformedPayloadError means one event's payload could not be parsed.
// The event is skipped; aggregation continues.
type MalformedPayloadError struct {
	Event   string
	Payload string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	payload := e.Payload
	if len(payload) > 100 {
		payload = payload[:100] + "..."
	}
	return fmt.Sprintf("malformed %s payload %q: %v", e.Event, payload, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the call.
// Only malformed payloads are tolerated.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var malformed *MalformedPayloadError
	return !errors.As(err, &malformed)
}
