package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name       string
		model      TrackerModel
		wantErr    error
		wantTries  int
		wantBudget int
	}{
		{
			name:       "fresh tracker uses defaults",
			model:      TrackerModel{},
			wantTries:  1,
			wantBudget: DefaultMaxTries,
		},
		{
			name:       "construction counts the new attempt",
			model:      TrackerModel{TotalTries: 2, MaxTries: 5},
			wantTries:  3,
			wantBudget: 5,
		},
		{
			name:       "at the budget boundary still succeeds",
			model:      TrackerModel{TotalTries: 5, MaxTries: 5},
			wantTries:  6,
			wantBudget: 5,
		},
		{
			name:    "past the budget fails",
			model:   TrackerModel{TotalTries: 6, MaxTries: 5},
			wantErr: ErrTooManyAttempts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, err := NewTracker(tt.model)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTries, tracker.TotalTries())
			assert.Equal(t, tt.wantBudget, tracker.MaxTries())
		})
	}
}

func TestTracker_ModelRoundTrip(t *testing.T) {
	tracker, err := NewTracker(TrackerModel{TotalTries: 4, MaxTries: 5})
	require.NoError(t, err)

	model := tracker.Model()
	assert.Equal(t, TrackerModel{TotalTries: 5, MaxTries: 5}, model)

	// Reconstruction from the snapshot exhausts the budget at the same
	// boundary the original would have.
	next, err := NewTracker(model)
	require.NoError(t, err)
	assert.Equal(t, 6, next.TotalTries())

	_, err = NewTracker(next.Model())
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestTracker_SetRetryCount(t *testing.T) {
	tracker, err := NewTracker(TrackerModel{MaxTries: 10})
	require.NoError(t, err)

	tracker.SetRetryCount(7)

	assert.Equal(t, 7, tracker.TotalTries())
	assert.Equal(t, TrackerModel{TotalTries: 7, MaxTries: 10}, tracker.Model())
}
