package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
	"taptapgo/internal/metrics"
	"taptapgo/internal/repository"
)

// noHolding is passed as holdingSince when credits mature immediately.
var noHolding = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Ledger appends to the driver wallet log. Every write runs on
// transaction-scoped repositories, locks the driver's wallet row first and
// verifies the closed-ledger invariant before and after appending.
type Ledger struct {
	holding  time.Duration
	notifier *NotificationService
	now      func() time.Time
}

// NewLedger creates a Ledger. Credits younger than holding count toward
// balance_en_attente.
func NewLedger(holding time.Duration, notifier *NotificationService) *Ledger {
	return &Ledger{holding: holding, notifier: notifier, now: time.Now}
}

// LedgerChange is the wallet before and after one append.
type LedgerChange struct {
	Before      domain.Wallet
	After       domain.Wallet
	Transaction *domain.WalletTransaction
}

func (l *Ledger) holdingSince() time.Time {
	if l.holding <= 0 {
		return noHolding
	}
	return l.now().Add(-l.holding)
}

// Open locks the driver's wallet for the rest of the transaction and returns
// its verified state.
func (l *Ledger) Open(ctx context.Context, repos repository.Repositories, driverID string) (domain.Wallet, error) {
	state, err := repos.Wallets.Lock(ctx, driverID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if state.Frozen {
		return domain.Wallet{}, ErrWalletFrozen
	}
	return l.verified(ctx, repos.Wallets, driverID)
}

// Snapshot reads the driver's wallet without locking.
func (l *Ledger) Snapshot(ctx context.Context, wallets repository.WalletRepository, driverID string) (domain.Wallet, error) {
	state, err := wallets.GetState(ctx, driverID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if state.Frozen {
		totals, err := wallets.Totals(ctx, driverID, l.holdingSince())
		if err != nil {
			return domain.Wallet{}, err
		}
		w := totals.Wallet(driverID)
		w.Frozen = true
		return w, nil
	}
	return l.verified(ctx, wallets, driverID)
}

func (l *Ledger) verified(ctx context.Context, wallets repository.WalletRepository, driverID string) (domain.Wallet, error) {
	totals, err := wallets.Totals(ctx, driverID, l.holdingSince())
	if err != nil {
		return domain.Wallet{}, err
	}
	if err := totals.Verify(); err != nil {
		return domain.Wallet{}, &IntegrityError{DriverID: driverID, Err: err}
	}
	return totals.Wallet(driverID), nil
}

// Credit appends a ride_credit. A zero amount is a no-op.
func (l *Ledger) Credit(ctx context.Context, repos repository.Repositories, driverID string, amount int64, rideID string) (LedgerChange, error) {
	if amount == 0 {
		w, err := l.Open(ctx, repos, driverID)
		return LedgerChange{Before: w, After: w}, err
	}
	return l.append(ctx, repos, &domain.WalletTransaction{
		DriverID: driverID,
		Type:     domain.TxRideCredit,
		Amount:   amount,
		RideID:   rideID,
	})
}

// Debit appends a withdrawal_debit of amount. It fails with
// ErrInsufficientBalance when amount exceeds the withdrawable balance.
func (l *Ledger) Debit(ctx context.Context, repos repository.Repositories, driverID string, amount int64, retraitID string) (LedgerChange, error) {
	return l.append(ctx, repos, &domain.WalletTransaction{
		DriverID:  driverID,
		Type:      domain.TxWithdrawalDebit,
		Amount:    -amount,
		RetraitID: retraitID,
	})
}

// Refund appends a withdrawal_refund restoring a cancelled debit.
func (l *Ledger) Refund(ctx context.Context, repos repository.Repositories, driverID string, amount int64, retraitID string) (LedgerChange, error) {
	return l.append(ctx, repos, &domain.WalletTransaction{
		DriverID:  driverID,
		Type:      domain.TxWithdrawalRefund,
		Amount:    amount,
		RetraitID: retraitID,
	})
}

// Adjust appends a signed manual correction.
func (l *Ledger) Adjust(ctx context.Context, repos repository.Repositories, driverID string, amount int64, note string) (LedgerChange, error) {
	return l.append(ctx, repos, &domain.WalletTransaction{
		DriverID: driverID,
		Type:     domain.TxAdjustment,
		Amount:   amount,
		Note:     note,
	})
}

func (l *Ledger) append(ctx context.Context, repos repository.Repositories, tx *domain.WalletTransaction) (LedgerChange, error) {
	if !tx.SignValid() {
		return LedgerChange{}, invalidInput("%s amount %d has the wrong sign", tx.Type, tx.Amount)
	}

	before, err := l.Open(ctx, repos, tx.DriverID)
	if err != nil {
		return LedgerChange{}, err
	}
	if tx.Amount < 0 && -tx.Amount > before.Balance {
		return LedgerChange{}, fmt.Errorf("%w: requested %d HTG, withdrawable %d HTG",
			ErrInsufficientBalance, -tx.Amount, before.Balance)
	}

	tx.ID = uuid.New().String()
	tx.CreatedAt = l.now()
	if err := repos.Wallets.Append(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return LedgerChange{}, fmt.Errorf("%w: %s already recorded", ErrInvalidState, tx.Type)
		}
		return LedgerChange{}, err
	}

	after, err := l.verified(ctx, repos.Wallets, tx.DriverID)
	if err != nil {
		return LedgerChange{}, err
	}

	metrics.WalletTransaction(string(tx.Type), tx.Amount)
	return LedgerChange{Before: before, After: after, Transaction: tx}, nil
}

// Quarantine freezes the wallet named by an IntegrityError in err, in its
// own transaction, and returns err unchanged. Other errors pass through.
func (l *Ledger) Quarantine(ctx context.Context, tm repository.TxManager, err error) error {
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		return err
	}

	metrics.LedgerIntegrityFailure()
	logger.WithContext(ctx).Error("ledger integrity violated, freezing wallet",
		zap.String("driver_id", ie.DriverID),
		zap.Error(ie.Err),
	)

	freezeErr := tm.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Wallets.Freeze(ctx, ie.DriverID, ie.Err.Error(), l.now())
	})
	if freezeErr != nil {
		logger.WithContext(ctx).Error("failed to freeze wallet",
			zap.String("driver_id", ie.DriverID),
			zap.Error(freezeErr),
		)
		return err
	}

	l.notifier.NotifyWalletFrozen(ctx, ie.DriverID, ie.Err.Error())
	return err
}
