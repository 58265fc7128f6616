package channels

import (
	"errors"
	"fmt"
)

// ErrUnknownChannel is returned by Registry.Get for an unregistered channel.
var ErrUnknownChannel = errors.New("channels: unknown channel")

// RequestError wraps a transport failure for one executor request.
type RequestError struct {
	Channel Channel
	URL     string
	Cause   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("channels: %s request to %s failed: %v", e.Channel, e.URL, e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }
