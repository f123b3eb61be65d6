package astrosend

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrTransmit = errors.New("transmit error")

// TransmitError describes a failed delivery attempt. StatusCode is zero when
// no response was received.
type TransmitError struct {
	URL        string
	AttemptID  string
	StatusCode int
	Reason     string
	Err        error

	permanent bool
}

func (e *TransmitError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrTransmit, e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransmitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransmit}
	}
	return []error{ErrTransmit, e.Err}
}

// Retryable reports whether another attempt could succeed without changes:
// transport failures, timeouts, throttling and server errors.
func (e *TransmitError) Retryable() bool {
	switch {
	case e.permanent:
		return false
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}
