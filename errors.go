package hvlumi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange reports a run range from which no time grid can be built.
	ErrInvalidRange = errors.New("invalid run range")

	// ErrEmptyIntervalMatch marks a bad interval that no sample falls into.
	ErrEmptyIntervalMatch = errors.New("bad interval matches no samples")
)

// MissingElectrodeError is returned when an electrode of a chamber has no samples.
type MissingElectrodeError struct {
	Chamber   string
	Electrode Electrode
	Metric    Metric
}

func (e *MissingElectrodeError) Error() string {
	return fmt.Sprintf("chamber %s: no %s samples for electrode %s", e.Chamber, e.Metric, e.Electrode)
}

// FetchError wraps a failure of the sample source for one chamber.
type FetchError struct {
	Chamber string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching samples for chamber %s: %v", e.Chamber, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
