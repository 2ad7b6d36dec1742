package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
	"taptapgo/internal/repository"
)

// WalletService exposes the driver wallet and its administration.
type WalletService struct {
	tx          repository.TxManager
	repos       repository.Repositories
	ledger      *Ledger
	withdrawals *WithdrawalService
	notifier    *NotificationService
	now         func() time.Time
}

// NewWalletService creates a new WalletService.
func NewWalletService(
	tx repository.TxManager,
	repos repository.Repositories,
	ledger *Ledger,
	withdrawals *WithdrawalService,
	notifier *NotificationService,
) *WalletService {
	return &WalletService{
		tx:          tx,
		repos:       repos,
		ledger:      ledger,
		withdrawals: withdrawals,
		notifier:    notifier,
		now:         time.Now,
	}
}

// WalletOverview is the driver's wallet with withdrawal eligibility.
type WalletOverview struct {
	Wallet      domain.Wallet
	Eligibility domain.Eligibility
	Rules       domain.WithdrawalRules
}

// GetWallet returns the calling driver's wallet.
func (s *WalletService) GetWallet(ctx context.Context, actor domain.Actor) (*WalletOverview, error) {
	if actor.Role != domain.RoleDriver {
		return nil, forbidden("only drivers have a wallet")
	}

	w, err := s.ledger.Snapshot(ctx, s.repos.Wallets, actor.ID)
	if err != nil {
		return nil, s.ledger.Quarantine(ctx, s.tx, err)
	}
	last, err := s.repos.Retraits.LatestActive(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	rules := s.withdrawals.Rules()
	return &WalletOverview{
		Wallet:      w,
		Eligibility: rules.Eligibility(w, last, s.now()),
		Rules:       rules,
	}, nil
}

// Transactions returns the calling driver's ledger entries, newest first.
func (s *WalletService) Transactions(ctx context.Context, actor domain.Actor, limit int) ([]*domain.WalletTransaction, error) {
	if actor.Role != domain.RoleDriver {
		return nil, forbidden("only drivers have a wallet")
	}
	return s.repos.Wallets.ListTransactions(ctx, actor.ID, limit)
}

// UpdatePayout saves the calling driver's default payout destination.
func (s *WalletService) UpdatePayout(ctx context.Context, actor domain.Actor, payout domain.PayoutDetails) error {
	if actor.Role != domain.RoleDriver {
		return forbidden("only drivers have payout details")
	}
	if !payout.Methode.Valid() {
		return invalidInput("unknown methode %q", payout.Methode)
	}
	if !payout.Complete() {
		return invalidInput("payout details incomplete for methode %q", payout.Methode)
	}

	if err := s.repos.Drivers.UpdatePayout(ctx, actor.ID, payout); err != nil {
		return notFound(err, "driver")
	}
	logger.WithContext(ctx).Info("payout details updated",
		zap.String("driver_id", actor.ID),
		zap.String("methode", string(payout.Methode)),
	)
	return nil
}

// Adjust appends a signed correction to a driver's ledger. It cannot take
// the withdrawable balance below zero.
func (s *WalletService) Adjust(ctx context.Context, actor domain.Actor, driverID string, amount int64, note string) (*domain.Wallet, error) {
	if actor.Role != domain.RoleSuperAdmin {
		return nil, forbidden("only a superadmin can adjust wallets")
	}
	note = strings.TrimSpace(note)
	switch {
	case driverID == "":
		return nil, invalidInput("driver id is required")
	case amount == 0:
		return nil, invalidInput("amount must not be zero")
	case note == "":
		return nil, invalidInput("a reason is required")
	}

	var change LedgerChange
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Drivers.GetByID(ctx, driverID); err != nil {
			return notFound(err, "driver")
		}
		var err error
		change, err = s.ledger.Adjust(ctx, repos, driverID, amount, note)
		return err
	})
	if err != nil {
		return nil, s.ledger.Quarantine(ctx, s.tx, err)
	}

	logger.WithContext(ctx).Info("wallet adjusted",
		zap.String("driver_id", driverID),
		zap.Int64("amount", amount),
		zap.String("by", actor.ID),
	)
	s.notifier.NotifyLedgerChange(ctx, change)
	return &change.After, nil
}
