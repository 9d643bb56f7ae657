package retry

import (
	"errors"
	"fmt"
)

// DefaultMaxTries bounds how many times a logical operation may be retried
// across possibly-separate process invocations.
const DefaultMaxTries = 5

// ErrTooManyAttempts signals that the retry budget is exhausted and the
// operation must not be resubmitted.
var ErrTooManyAttempts = errors.New("too many attempts, likely rate limiting")

// TrackerModel is the serializable snapshot of a tracker, carried by a
// resumable job between invocations.
type TrackerModel struct {
	TotalTries int `json:"total_tries"`
	MaxTries   int `json:"max_tries"`
}

// Tracker bounds the retry budget for one logical operation. Constructing a
// tracker means "one more attempt has begun": the try count from the snapshot
// is incremented, and construction fails once the snapshot already sits past
// the budget.
type Tracker struct {
	totalTries int
	maxTries   int
}

// NewTracker builds a tracker from a previous snapshot, counting the attempt
// now beginning. A zero-valued model starts a fresh budget with DefaultMaxTries.
func NewTracker(model TrackerModel) (*Tracker, error) {
	maxTries := model.MaxTries
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}

	if model.TotalTries > maxTries {
		return nil, fmt.Errorf("%w: %d tries of %d allowed", ErrTooManyAttempts, model.TotalTries, maxTries)
	}

	return &Tracker{
		totalTries: model.TotalTries + 1,
		maxTries:   maxTries,
	}, nil
}

func (t *Tracker) TotalTries() int {
	return t.totalTries
}

func (t *Tracker) MaxTries() int {
	return t.maxTries
}

// SetRetryCount overwrites the try count. Used when multiple sub-operations
// share one external retry budget and a coordinator owns the counting.
func (t *Tracker) SetRetryCount(totalTries int) {
	t.totalTries = totalTries
}

// Model exports the snapshot for persistence between invocations.
func (t *Tracker) Model() TrackerModel {
	return TrackerModel{
		TotalTries: t.totalTries,
		MaxTries:   t.maxTries,
	}
}
