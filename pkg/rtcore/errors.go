package rtcore

import "errors"

// Sentinel errors for the runtime's own coordination failures, adapted
// from the teacher's pkg/camerrors convention of one var per distinct
// failure a caller might need to branch on (rather than string-matching
// fmt.Errorf output). See spec.md §7 for the arithmetic/bounds/
// coordination error classes these correspond to.
var (
	ErrDivByZero     = errors.New("rtcore: division by zero")
	ErrIntOverflow   = errors.New("rtcore: integer overflow")
	ErrIndexOOB      = errors.New("rtcore: index out of bounds")
	ErrBootNotCalled = errors.New("rtcore: Boot has not been called")
	ErrDoubleShutdown = errors.New("rtcore: Shutdown called more than once with live pool")
)
