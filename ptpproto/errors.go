package ptpproto

import "github.com/pkg/errors"

// ProtocolError marks a malformed wire frame: a misaligned or
// out-of-range Command length, or a non-Command container where a
// Command was expected. It aborts the bulk worker loop without any
// Response; the transport is considered broken until the next configure
// event respawns the worker.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "ptp protocol error: " + e.Reason
}

// ErrSessionNotOpen names the "no session open" condition as a Go error.
// Dispatch does not return it: a missing session is reported directly as
// a SESSION_NOT_OPEN Response.
var ErrSessionNotOpen = errors.New("ptpproto: session not open")
