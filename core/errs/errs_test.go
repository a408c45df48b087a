package errs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"deck-sync/core/errs"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"Nil", nil, false},
		{"Offline", errs.ErrOffline, true},
		{"WrappedOffline", fmt.Errorf("list boards: %w", errs.ErrOffline), true},
		{"Maintenance", errs.ErrMaintenance, true},
		{"Unauthorized", errs.ErrUnauthorized, true},
		{"Canceled", context.Canceled, true},
		{"Rejected", fmt.Errorf("create card: %w", errs.ErrRejected), false},
		{"NotFound", errs.ErrNotFound, false},
		{"Precondition", errs.ErrPrecondition, false},
		{"Stale", fmt.Errorf("card 3: %w", errs.ErrStale), false},
		{"Unknown", errors.New("disk full"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, errs.IsFatal(tt.err))
		})
	}
}

func TestIsItemError(t *testing.T) {
	assert.True(t, errs.IsItemError(fmt.Errorf("x: %w", errs.ErrNotFound)))
	assert.False(t, errs.IsItemError(errs.ErrOffline))
	assert.False(t, errs.IsItemError(nil))
}
