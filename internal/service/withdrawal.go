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
	"taptapgo/internal/redis"
	"taptapgo/internal/repository"
)

// walletLockTTL bounds how long a crashed request can block withdrawals.
const walletLockTTL = 10 * time.Second

// WithdrawalService validates and executes withdrawals against the ledger.
type WithdrawalService struct {
	tx       repository.TxManager
	repos    repository.Repositories
	ledger   *Ledger
	locks    redis.LockStoreInterface
	notifier *NotificationService
	rules    domain.WithdrawalRules
	location *time.Location
	now      func() time.Time
}

// NewWithdrawalService creates a new WithdrawalService. locks may be nil, in
// which case the wallet row lock alone serializes a driver's withdrawals.
func NewWithdrawalService(
	tx repository.TxManager,
	repos repository.Repositories,
	ledger *Ledger,
	locks redis.LockStoreInterface,
	notifier *NotificationService,
	rules domain.WithdrawalRules,
	location *time.Location,
) *WithdrawalService {
	if location == nil {
		location = time.UTC
	}
	return &WithdrawalService{
		tx:       tx,
		repos:    repos,
		ledger:   ledger,
		locks:    locks,
		notifier: notifier,
		rules:    rules,
		location: location,
		now:      time.Now,
	}
}

// Rules returns the configured withdrawal rules.
func (s *WithdrawalService) Rules() domain.WithdrawalRules {
	return s.rules
}

// WithdrawalRequest is a driver's manual withdrawal. Empty destination fields
// fall back to the driver's saved payout details.
type WithdrawalRequest struct {
	Montant int64
	Payout  domain.PayoutDetails
}

// RequestWithdrawal debits the driver's wallet and queues a manual retrait.
// Rules are checked in order: minimum amount, balance, cooldown.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, actor domain.Actor, req WithdrawalRequest) (*domain.Retrait, error) {
	if actor.Role != domain.RoleDriver {
		return nil, forbidden("only drivers can request withdrawals")
	}
	if req.Montant <= 0 {
		return nil, invalidInput("montant must be > 0")
	}
	if req.Payout.Methode != "" && !req.Payout.Methode.Valid() {
		return nil, invalidInput("unknown methode %q", req.Payout.Methode)
	}

	if s.locks != nil {
		lock, err := s.locks.AcquireWalletLock(ctx, actor.ID, walletLockTTL)
		switch {
		case err != nil:
			logger.WithContext(ctx).Warn("wallet lock unavailable, relying on row lock", zap.Error(err))
		case lock == nil:
			return nil, s.rejected(ErrWithdrawalInProgress)
		default:
			defer func() {
				if err := s.locks.ReleaseWalletLock(context.WithoutCancel(ctx), lock); err != nil {
					logger.WithContext(ctx).Warn("failed to release wallet lock", zap.Error(err))
				}
			}()
		}
	}

	var retrait *domain.Retrait
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		driver, err := repos.Drivers.GetByID(ctx, actor.ID)
		if err != nil {
			return notFound(err, "driver")
		}
		payout := req.Payout.Merge(driver.Payout)
		if !payout.Complete() {
			return invalidInput("payout details incomplete for methode %q", payout.Methode)
		}

		wallet, err := s.ledger.Open(ctx, repos, actor.ID)
		if err != nil {
			return err
		}

		if req.Montant < s.rules.MontantMinimum {
			return fmt.Errorf("%w: montant %d HTG, minimum %d HTG", ErrBelowMinimum, req.Montant, s.rules.MontantMinimum)
		}
		if req.Montant > wallet.Balance {
			return fmt.Errorf("%w: requested %d HTG, withdrawable %d HTG", ErrInsufficientBalance, req.Montant, wallet.Balance)
		}
		if err := s.checkCooldown(ctx, repos, actor.ID); err != nil {
			return err
		}

		retrait, err = s.create(ctx, repos, actor.ID, req.Montant, payout, domain.TypeRetraitManuel)
		return err
	})
	if err != nil {
		return nil, s.rejected(s.ledger.Quarantine(ctx, s.tx, err))
	}

	metrics.Retrait(string(retrait.Type), string(retrait.Statut))
	logger.WithContext(ctx).Info("withdrawal requested",
		zap.String("retrait_id", retrait.ID),
		zap.String("driver_id", actor.ID),
		zap.Int64("montant", retrait.Montant),
	)
	s.notifier.NotifyRetrait(ctx, retrait)
	return retrait, nil
}

// MaybeAutoWithdraw runs inside the transaction that appended change. When
// the credit moved the balance across the automatic threshold it queues an
// automatique_disponible retrait for the whole withdrawable balance. It is
// skipped, and logged, when the driver has no usable payout details or the
// cooldown is still running.
func (s *WithdrawalService) MaybeAutoWithdraw(ctx context.Context, repos repository.Repositories, change LedgerChange) (*domain.Retrait, error) {
	seuil := s.rules.SeuilAutomatique
	if seuil <= 0 || change.Transaction == nil {
		return nil, nil
	}
	if !(change.Before.Balance < seuil && change.After.Balance >= seuil) {
		return nil, nil
	}

	driverID := change.After.DriverID
	log := logger.WithContext(ctx).With(zap.String("driver_id", driverID))

	driver, err := repos.Drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, "driver")
	}
	if !driver.Payout.Complete() {
		log.Info("automatic withdrawal skipped: no payout details")
		return nil, nil
	}

	var cooldown *CooldownError
	if err := s.checkCooldown(ctx, repos, driverID); errors.As(err, &cooldown) {
		log.Info("automatic withdrawal skipped: cooldown active",
			zap.Time("prochain_retrait", cooldown.NextEligibleAt))
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	montant := change.After.Balance
	if montant <= s.rules.FraisRetrait {
		log.Info("automatic withdrawal skipped: balance does not cover the fee")
		return nil, nil
	}

	retrait, err := s.create(ctx, repos, driverID, montant, driver.Payout, domain.TypeRetraitAutomatique)
	if err != nil {
		return nil, err
	}
	log.Info("automatic withdrawal queued",
		zap.String("retrait_id", retrait.ID),
		zap.Int64("montant", montant),
	)
	return retrait, nil
}

// AfterAutoWithdraw records metrics and notifies once the transaction that
// created an automatic retrait has committed.
func (s *WithdrawalService) AfterAutoWithdraw(ctx context.Context, r *domain.Retrait) {
	if r == nil {
		return
	}
	metrics.Retrait(string(r.Type), string(r.Statut))
	s.notifier.NotifyRetrait(ctx, r)
}

func (s *WithdrawalService) checkCooldown(ctx context.Context, repos repository.Repositories, driverID string) error {
	last, err := repos.Retraits.LatestActive(ctx, driverID)
	if err != nil {
		return err
	}
	next := s.rules.NextEligible(last)
	if !next.IsZero() && s.now().Before(next) {
		return &CooldownError{NextEligibleAt: next}
	}
	return nil
}

// create persists the retrait and debits the wallet for its full amount.
func (s *WithdrawalService) create(ctx context.Context, repos repository.Repositories, driverID string, montant int64, payout domain.PayoutDetails, typ domain.TypeRetrait) (*domain.Retrait, error) {
	r := &domain.Retrait{
		ID:                uuid.New().String(),
		ChauffeurID:       driverID,
		Montant:           montant,
		Frais:             s.rules.FraisRetrait,
		MontantNet:        montant - s.rules.FraisRetrait,
		Methode:           payout.Methode,
		NumeroCompte:      payout.NumeroCompte,
		BankName:          payout.BankName,
		BankAccountName:   payout.BankAccountName,
		BankAccountNumber: payout.BankAccountNumber,
		Type:              typ,
		Statut:            domain.StatutEnAttente,
		DateDemande:       s.now(),
	}
	if r.MontantNet <= 0 {
		return nil, fmt.Errorf("%w: montant %d HTG does not cover the %d HTG fee", ErrBelowMinimum, montant, r.Frais)
	}

	if err := repos.Retraits.Create(ctx, r); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Debit(ctx, repos, driverID, montant, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// Traiter marks a pending retrait as paid out.
func (s *WithdrawalService) Traiter(ctx context.Context, actor domain.Actor, retraitID string) (*domain.Retrait, error) {
	return s.finalize(ctx, actor, retraitID, domain.StatutTraite, "")
}

// Annuler cancels a pending retrait and refunds its full amount.
func (s *WithdrawalService) Annuler(ctx context.Context, actor domain.Actor, retraitID, motif string) (*domain.Retrait, error) {
	return s.finalize(ctx, actor, retraitID, domain.StatutAnnule, motif)
}

func (s *WithdrawalService) finalize(ctx context.Context, actor domain.Actor, retraitID string, statut domain.StatutRetrait, motif string) (*domain.Retrait, error) {
	if !actor.IsStaff() {
		return nil, forbidden("only admins can process withdrawals")
	}
	if retraitID == "" {
		return nil, invalidInput("retrait id is required")
	}

	var retrait *domain.Retrait
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		r, err := repos.Retraits.GetByIDForUpdate(ctx, retraitID)
		if err != nil {
			return notFound(err, "retrait")
		}
		if err := s.authorizeRetrait(ctx, repos, actor, r); err != nil {
			return err
		}
		if r.Statut != domain.StatutEnAttente {
			return fmt.Errorf("%w (currently %s)", ErrRetraitNotPending, r.Statut)
		}

		r.Statut = statut
		r.DateTraitement = s.now()
		r.TraitePar = actor.ID
		r.MotifAnnulation = motif
		if err := repos.Retraits.UpdateStatut(ctx, r, domain.StatutEnAttente); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrRetraitNotPending
			}
			return err
		}

		if statut == domain.StatutAnnule {
			if _, err := s.ledger.Refund(ctx, repos, r.ChauffeurID, r.Montant, r.ID); err != nil {
				return err
			}
		}
		retrait = r
		return nil
	})
	if err != nil {
		return nil, s.ledger.Quarantine(ctx, s.tx, err)
	}

	metrics.Retrait(string(retrait.Type), string(retrait.Statut))
	logger.WithContext(ctx).Info("withdrawal processed",
		zap.String("retrait_id", retrait.ID),
		zap.String("statut", string(retrait.Statut)),
	)
	s.notifier.NotifyRetrait(ctx, retrait)
	return retrait, nil
}

func (s *WithdrawalService) authorizeRetrait(ctx context.Context, repos repository.Repositories, actor domain.Actor, r *domain.Retrait) error {
	if actor.Role == domain.RoleSuperAdmin {
		return nil
	}
	driver, err := repos.Drivers.GetByID(ctx, r.ChauffeurID)
	if err != nil {
		return notFound(err, "driver")
	}
	if !actor.ManagesScope(driver.AdminID) {
		return forbidden("retrait belongs to another brand")
	}
	return nil
}

// AdminRetraitFilter narrows the admin queue. Statut defaults to en_attente.
type AdminRetraitFilter struct {
	Statut     domain.StatutRetrait
	Methode    domain.MethodeRetrait
	MinMontant int64
	Limit      int
}

// RetraitQueue is the admin withdrawal listing with its aggregates.
type RetraitQueue struct {
	Retraits []*domain.Retrait
	Stats    domain.RetraitStats
}

// ListForAdmin returns the withdrawal queue visible to the actor.
func (s *WithdrawalService) ListForAdmin(ctx context.Context, actor domain.Actor, f AdminRetraitFilter) (*RetraitQueue, error) {
	if !actor.IsStaff() {
		return nil, forbidden("only admins can list withdrawals")
	}
	if f.Statut == "" {
		f.Statut = domain.StatutEnAttente
	}
	if !f.Statut.Valid() {
		return nil, invalidInput("unknown statut %q", f.Statut)
	}
	if f.Methode != "" && !f.Methode.Valid() {
		return nil, invalidInput("unknown methode %q", f.Methode)
	}
	if f.MinMontant < 0 {
		return nil, invalidInput("min_montant must be >= 0")
	}

	filter := repository.RetraitFilter{
		Statut:     f.Statut,
		Methode:    f.Methode,
		MinMontant: f.MinMontant,
		Limit:      f.Limit,
	}
	if actor.Role == domain.RoleAdmin {
		filter.AdminID = actor.ID
		filter.ScopeSet = true
	}

	retraits, err := s.repos.Retraits.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := s.repos.Retraits.Stats(ctx, filter, s.dayStart())
	if err != nil {
		return nil, err
	}
	return &RetraitQueue{Retraits: retraits, Stats: stats}, nil
}

// ListForDriver returns the driver's own withdrawals.
func (s *WithdrawalService) ListForDriver(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Retrait, error) {
	if actor.Role != domain.RoleDriver {
		return nil, forbidden("only drivers have withdrawals")
	}
	return s.repos.Retraits.ListByDriver(ctx, actor.ID, limit)
}

// dayStart is midnight today in the configured timezone.
func (s *WithdrawalService) dayStart() time.Time {
	now := s.now().In(s.location)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

// rejected records business-rule rejections before returning err.
func (s *WithdrawalService) rejected(err error) error {
	switch kind := KindOf(err); kind {
	case KindBelowMinimum, KindInsufficientBalance, KindCooldownActive, KindWalletFrozen, KindInvalidState:
		metrics.WithdrawalRejected(string(kind))
	}
	return err
}
