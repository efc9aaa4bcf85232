package core

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTimedOut         = errors.New("timed out")
	ErrNotConfigured    = errors.New("rtc not configured")
	ErrNestedConfig     = errors.New("configuration mode already entered")
)

// TimeoutError reports which bounded hardware wait expired.
type TimeoutError struct {
	Op     string // "enter", "exit", "sync", "clock"
	Waited uint32 // milliseconds
}

func (e *TimeoutError) Error() string {
	return "rtc " + e.Op + " timed out after " + utoa(e.Waited) + "ms"
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimedOut
}

// Status is the result code carried on the wire.
type Status uint8

const (
	StatusOK               Status = 0
	StatusInvalidParameter Status = 1
	StatusTimedOut         Status = 2
	StatusNotConfigured    Status = 3
	StatusNestedConfig     Status = 4
	StatusUnknown          Status = 255
)

// StatusOf maps an error returned by this package to its wire status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter
	case errors.Is(err, ErrTimedOut):
		return StatusTimedOut
	case errors.Is(err, ErrNotConfigured):
		return StatusNotConfigured
	case errors.Is(err, ErrNestedConfig):
		return StatusNestedConfig
	}
	return StatusUnknown
}

// Err is the inverse of StatusOf.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusInvalidParameter:
		return ErrInvalidParameter
	case StatusTimedOut:
		return ErrTimedOut
	case StatusNotConfigured:
		return ErrNotConfigured
	case StatusNestedConfig:
		return ErrNestedConfig
	}
	return errors.New("rtc status " + utoa(uint32(s)))
}
