package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"taptapgo/internal/repository"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", ErrBelowMinimum, KindBelowMinimum},
		{"wrapped sentinel", fmt.Errorf("%w: montant 150 HTG", ErrBelowMinimum), KindBelowMinimum},
		{"specific error", ErrRideTaken, KindInvalidTransition},
		{"helper", invalidInput("bad %s", "thing"), KindInvalidInput},
		{"cooldown", &CooldownError{NextEligibleAt: time.Now()}, KindCooldownActive},
		{"integrity", &IntegrityError{DriverID: "d1", Err: errors.New("negative balance")}, KindLedgerCorrupted},
		{"repository miss", fmt.Errorf("load: %w", repository.ErrNotFound), KindNotFound},
		{"unknown", errors.New("connection reset"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestCooldownError(t *testing.T) {
	at := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)
	err := error(&CooldownError{NextEligibleAt: at})

	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Contains(t, err.Error(), "2026-03-11T09:30:00Z")

	var ce *CooldownError
	assert.True(t, errors.As(fmt.Errorf("withdraw: %w", err), &ce))
	assert.Equal(t, at, ce.NextEligibleAt)
}

func TestIntegrityError_UnwrapsBoth(t *testing.T) {
	cause := errors.New("refunds exceed debits by 500")
	err := &IntegrityError{DriverID: "d1", Err: cause}

	assert.ErrorIs(t, err, ErrLedgerCorrupted)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "d1")
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(repository.ErrNotFound, "ride"), ErrNotFound)

	other := errors.New("timeout")
	assert.Equal(t, other, notFound(other, "ride"))
}
