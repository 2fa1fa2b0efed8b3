package round

import "errors"

var (
	// ErrRoundIncomplete is returned when serialization is requested before
	// every registered pass has reported.
	ErrRoundIncomplete = errors.New("round incomplete")

	// ErrUnknownPass is returned for a report from a pass ID that was not
	// registered with the accumulator.
	ErrUnknownPass = errors.New("unknown pass")
)
