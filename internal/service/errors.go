package service

import (
	"errors"
	"fmt"
	"time"

	"taptapgo/internal/repository"
)

// Kind is the machine-readable category of a service error.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidTransition   Kind = "invalid_transition"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindBelowMinimum        Kind = "below_minimum"
	KindCooldownActive      Kind = "cooldown_active"
	KindInvalidState        Kind = "invalid_state"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindLedgerCorrupted     Kind = "ledger_corrupted"
	KindWalletFrozen        Kind = "wallet_frozen"
	KindInternal            Kind = "internal"
)

// Error is a categorized service failure. Specific errors wrap one of the
// category sentinels below, so errors.Is works at either level.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, msg: "invalid input"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, msg: "invalid transition"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, msg: "insufficient balance"}
	ErrBelowMinimum        = &Error{Kind: KindBelowMinimum, msg: "amount below minimum"}
	ErrCooldownActive      = &Error{Kind: KindCooldownActive, msg: "withdrawal cooldown active"}
	ErrInvalidState        = &Error{Kind: KindInvalidState, msg: "invalid state"}
	ErrForbidden           = &Error{Kind: KindForbidden, msg: "forbidden"}
	ErrNotFound            = &Error{Kind: KindNotFound, msg: "not found"}
	ErrLedgerCorrupted     = &Error{Kind: KindLedgerCorrupted, msg: "ledger integrity violated"}
	ErrWalletFrozen        = &Error{Kind: KindWalletFrozen, msg: "wallet frozen pending reconciliation"}
)

var (
	// ErrRideTaken is returned to every driver but the one whose claim won.
	ErrRideTaken = fmt.Errorf("%w: ride already accepted by another driver", ErrInvalidTransition)

	// ErrDriverHasActiveRide is returned when a driver tries to accept a
	// second ride while one is still in progress.
	ErrDriverHasActiveRide = fmt.Errorf("%w: driver already has an active ride", ErrInvalidTransition)

	// ErrRideTerminal is returned for any transition out of completed or cancelled.
	ErrRideTerminal = fmt.Errorf("%w: ride is already finished", ErrInvalidTransition)

	// ErrRetraitNotPending is returned when traiter or annuler targets a
	// withdrawal that is no longer en_attente.
	ErrRetraitNotPending = fmt.Errorf("%w: retrait is not en_attente", ErrInvalidState)

	// ErrWithdrawalInProgress is returned when another withdrawal for the
	// same driver holds the wallet lock.
	ErrWithdrawalInProgress = fmt.Errorf("%w: another withdrawal is being processed", ErrInvalidState)

	// ErrAlreadyRated is returned on a second rating for the same ride.
	ErrAlreadyRated = fmt.Errorf("%w: ride already rated", ErrInvalidState)
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

func invalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidTransition}, args...)...)
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}

// CooldownError reports when the driver may withdraw again.
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: next withdrawal possible at %s", ErrCooldownActive, e.NextEligibleAt.Format(time.RFC3339))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}

// IntegrityError reports a driver ledger that failed verification. The
// wallet must be frozen once the failing transaction has rolled back.
type IntegrityError struct {
	DriverID string
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s for driver %s: %v", ErrLedgerCorrupted, e.DriverID, e.Err)
}

func (e *IntegrityError) Unwrap() []error {
	return []error{ErrLedgerCorrupted, e.Err}
}

// KindOf returns the category of err. Errors outside the taxonomy are
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, repository.ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// notFound converts a repository miss into the service taxonomy.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
