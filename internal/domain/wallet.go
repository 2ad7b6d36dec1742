package domain

import (
	"fmt"
	"time"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxRideCredit       TransactionType = "ride_credit"
	TxWithdrawalDebit  TransactionType = "withdrawal_debit"
	TxWithdrawalRefund TransactionType = "withdrawal_refund"
	TxAdjustment       TransactionType = "adjustment"
)

// WalletTransaction is an immutable ledger entry. Amount is the signed
// effect on the driver's funds in whole HTG: credits and refunds are
// positive, debits negative, adjustments either.
type WalletTransaction struct {
	ID        string
	DriverID  string
	Type      TransactionType
	Amount    int64
	RideID    string
	RetraitID string
	Note      string
	CreatedAt time.Time
}

// SignValid reports whether the amount's sign matches the transaction type.
func (t *WalletTransaction) SignValid() bool {
	switch t.Type {
	case TxRideCredit, TxWithdrawalRefund:
		return t.Amount > 0
	case TxWithdrawalDebit:
		return t.Amount < 0
	case TxAdjustment:
		return t.Amount != 0
	}
	return false
}

// LedgerTotals are the per-type sums a wallet is derived from.
type LedgerTotals struct {
	Credits     int64 // sum of ride credits
	Adjustments int64 // signed sum of adjustments
	Debits      int64 // absolute sum of withdrawal debits
	Refunds     int64 // sum of withdrawal refunds
	// Holding is the part of Credits still inside the holding period.
	Holding int64
	// Anomalies counts entries whose sign contradicts their type.
	Anomalies int64
}

// Wallet is the derived view of a driver's ledger.
type Wallet struct {
	DriverID         string
	Balance          int64
	BalanceEnAttente int64
	TotalGagne       int64
	TotalRetire      int64
	Frozen           bool
}

// Wallet derives balances from the totals.
func (t LedgerTotals) Wallet(driverID string) Wallet {
	net := t.Credits + t.Adjustments - t.Debits + t.Refunds
	return Wallet{
		DriverID:         driverID,
		Balance:          net - t.Holding,
		BalanceEnAttente: t.Holding,
		TotalGagne:       t.Credits + t.Adjustments,
		TotalRetire:      t.Debits - t.Refunds,
	}
}

// Verify checks the closed-ledger invariant and the sign constraints.
func (t LedgerTotals) Verify() error {
	w := t.Wallet("")
	switch {
	case t.Anomalies > 0:
		return fmt.Errorf("%d transactions carry a sign contradicting their type", t.Anomalies)
	case t.Holding < 0 || t.Holding > t.Credits:
		return fmt.Errorf("holding %d outside credited range [0, %d]", t.Holding, t.Credits)
	case w.Balance < 0:
		return fmt.Errorf("negative balance %d", w.Balance)
	case w.TotalRetire < 0:
		return fmt.Errorf("refunds exceed debits by %d", -w.TotalRetire)
	case w.TotalGagne-w.TotalRetire != w.Balance+w.BalanceEnAttente:
		return fmt.Errorf("ledger not closed: gagne %d - retire %d != balance %d + en attente %d",
			w.TotalGagne, w.TotalRetire, w.Balance, w.BalanceEnAttente)
	}
	return nil
}

// WalletState is the lock anchor and integrity flag stored per driver.
type WalletState struct {
	DriverID     string
	Frozen       bool
	FrozenReason string
	FrozenAt     time.Time
}
