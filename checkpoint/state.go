package checkpoint

import "sync/atomic"

// ErrorState holds the return code of the last operation the authority answered.
// Each answer overwrites it and a zero return code clears it. Concurrent
// operations race on it, so it is diagnostic state only.
type ErrorState struct {
	code atomic.Int32
}

// Last returns the most recently recorded return code.
func (s *ErrorState) Last() int32 {
	return s.code.Load()
}

func (s *ErrorState) record(rc int32) {
	s.code.Store(rc)
}

var processState ErrorState

// ProcessErrorState returns the process-wide slot, for callers that pass it to
// WithErrorState to keep an errno-like accessor.
func ProcessErrorState() *ErrorState {
	return &processState
}

// Errno returns the last return code recorded in the process-wide slot.
func Errno() int32 {
	return processState.Last()
}
