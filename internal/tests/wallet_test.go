package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
	"taptapgo/internal/service"
)

func withdraw(env *Env, driver domain.Actor, montant int64) (*domain.Retrait, error) {
	return env.Withdrawals.RequestWithdrawal(context.Background(), driver, service.WithdrawalRequest{Montant: montant})
}

func TestWithdrawal_RulesInOrder(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)

	if _, err := withdraw(env, driver, 1500); !errors.Is(err, service.ErrInsufficientBalance) {
		t.Errorf("1500 of 1200: expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := withdraw(env, driver, 150); !errors.Is(err, service.ErrBelowMinimum) {
		t.Errorf("150: expected ErrBelowMinimum, got %v", err)
	}

	r, err := withdraw(env, driver, 500)
	if err != nil {
		t.Fatalf("500: %v", err)
	}
	if r.Statut != domain.StatutEnAttente || r.Type != domain.TypeRetraitManuel {
		t.Errorf("unexpected retrait %s/%s", r.Statut, r.Type)
	}
	if r.NumeroCompte != "50937000000" {
		t.Errorf("payout should fall back to the saved account, got %q", r.NumeroCompte)
	}
	if got := env.Balance(t, driver.ID); got != 700 {
		t.Errorf("expected balance 700, got %d", got)
	}

	_, err = withdraw(env, driver, 300)
	var cooldown *service.CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if want := r.DateDemande.Add(24 * time.Hour); !cooldown.NextEligibleAt.Equal(want) {
		t.Errorf("expected next eligible at %s, got %s", want, cooldown.NextEligibleAt)
	}
	if service.KindOf(err) != service.KindCooldownActive {
		t.Errorf("expected cooldown_active kind, got %s", service.KindOf(err))
	}
}

func TestWithdrawal_FeeDeductedFromPayout(t *testing.T) {
	rules := DefaultRules()
	rules.FraisRetrait = 25
	env := NewEnvWith(Options{Rules: rules})
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)

	r, err := withdraw(env, driver, 500)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if r.Frais != 25 || r.MontantNet != 475 {
		t.Errorf("expected 25 fee and 475 net, got %d/%d", r.Frais, r.MontantNet)
	}
	if got := env.Balance(t, driver.ID); got != 700 {
		t.Errorf("the full montant is debited, expected 700, got %d", got)
	}
}

func TestWithdrawal_CooldownCountsFromLastActivity(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)

	env.Store.AddRetrait(domain.Retrait{
		ID:             "old",
		ChauffeurID:    driver.ID,
		Montant:        300,
		Statut:         domain.StatutTraite,
		DateDemande:    time.Now().Add(-30 * time.Hour),
		DateTraitement: time.Now().Add(-2 * time.Hour),
	})
	if _, err := withdraw(env, driver, 300); service.KindOf(err) != service.KindCooldownActive {
		t.Fatalf("processing 2h ago should block, got %v", err)
	}

	env.Store.AddRetrait(domain.Retrait{
		ID:             "old",
		ChauffeurID:    driver.ID,
		Montant:        300,
		Statut:         domain.StatutTraite,
		DateDemande:    time.Now().Add(-50 * time.Hour),
		DateTraitement: time.Now().Add(-25 * time.Hour),
	})
	if _, err := withdraw(env, driver, 300); err != nil {
		t.Fatalf("processing 25h ago should allow, got %v", err)
	}
}

func TestWithdrawal_TraiterOnce(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)
	ctx := context.Background()

	r, err := withdraw(env, driver, 500)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	done, err := env.Withdrawals.Traiter(ctx, SuperAdmin, r.ID)
	if err != nil {
		t.Fatalf("traiter: %v", err)
	}
	if done.Statut != domain.StatutTraite || done.TraitePar != SuperAdmin.ID || done.DateTraitement.IsZero() {
		t.Errorf("unexpected processed retrait %+v", done)
	}

	if _, err := env.Withdrawals.Traiter(ctx, SuperAdmin, r.ID); !errors.Is(err, service.ErrRetraitNotPending) {
		t.Errorf("second traiter: expected ErrRetraitNotPending, got %v", err)
	}
	if _, err := env.Withdrawals.Annuler(ctx, SuperAdmin, r.ID, "late"); service.KindOf(err) != service.KindInvalidState {
		t.Errorf("annuler after traiter: expected invalid_state, got %v", err)
	}

	if got := env.Balance(t, driver.ID); got != 700 {
		t.Errorf("expected one debit, balance 700, got %d", got)
	}
	overview, _ := env.Wallets.GetWallet(ctx, driver)
	if overview.Wallet.TotalRetire != 500 {
		t.Errorf("expected total_retire 500, got %d", overview.Wallet.TotalRetire)
	}
}

func TestWithdrawal_AnnulerRefunds(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)
	ctx := context.Background()

	r, _ := withdraw(env, driver, 500)

	cancelled, err := env.Withdrawals.Annuler(ctx, SuperAdmin, r.ID, "wrong account")
	if err != nil {
		t.Fatalf("annuler: %v", err)
	}
	if cancelled.MotifAnnulation != "wrong account" {
		t.Errorf("expected motif to be kept, got %q", cancelled.MotifAnnulation)
	}
	if got := env.Balance(t, driver.ID); got != 1200 {
		t.Errorf("expected balance restored to 1200, got %d", got)
	}
	if _, err := env.Withdrawals.Annuler(ctx, SuperAdmin, r.ID, ""); !errors.Is(err, service.ErrRetraitNotPending) {
		t.Errorf("second annuler: expected ErrRetraitNotPending, got %v", err)
	}

	refunds := 0
	for _, tx := range env.Store.Transactions(driver.ID) {
		if tx.Type == domain.TxWithdrawalRefund {
			refunds++
		}
	}
	if refunds != 1 {
		t.Errorf("expected exactly one refund, got %d", refunds)
	}

	// A cancelled retrait does not start a cooldown.
	if _, err := withdraw(env, driver, 400); err != nil {
		t.Errorf("withdraw after annuler: %v", err)
	}
}

func TestWithdrawal_AdminScope(t *testing.T) {
	env := NewEnv()
	ctx := context.Background()
	env.Store.AddDriver(domain.Driver{
		ID:          "brand-driver",
		Name:        "Jean",
		Phone:       "+50937111111",
		AdminID:     "brand-a",
		VehicleType: domain.VehicleCar,
		Payout:      domain.PayoutDetails{Methode: domain.MethodeNatCash, NumeroCompte: "50932000000"},
	})
	env.Fund(t, "brand-driver", 1000)
	r, err := withdraw(env, DriverActor("brand-driver"), 400)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	owner := domain.Actor{ID: "brand-a", Role: domain.RoleAdmin, AdminID: "brand-a"}
	stranger := domain.Actor{ID: "brand-b", Role: domain.RoleAdmin, AdminID: "brand-b"}

	if _, err := env.Withdrawals.Traiter(ctx, stranger, r.ID); service.KindOf(err) != service.KindForbidden {
		t.Errorf("other brand: expected forbidden, got %v", err)
	}
	if _, err := env.Withdrawals.Traiter(ctx, DriverActor("brand-driver"), r.ID); service.KindOf(err) != service.KindForbidden {
		t.Errorf("driver: expected forbidden, got %v", err)
	}

	queue, err := env.Withdrawals.ListForAdmin(ctx, owner, service.AdminRetraitFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queue.Retraits) != 1 || queue.Retraits[0].ChauffeurNom != "Jean" {
		t.Fatalf("owner should see the retrait with the driver name, got %+v", queue.Retraits)
	}
	if queue.Stats.EnAttenteCount != 1 || queue.Stats.EnAttenteTotal != 400 {
		t.Errorf("unexpected stats %+v", queue.Stats)
	}

	queue, _ = env.Withdrawals.ListForAdmin(ctx, stranger, service.AdminRetraitFilter{})
	if len(queue.Retraits) != 0 || queue.Stats.EnAttenteCount != 0 {
		t.Errorf("other brand should see nothing, got %d", len(queue.Retraits))
	}

	queue, _ = env.Withdrawals.ListForAdmin(ctx, SuperAdmin, service.AdminRetraitFilter{Methode: domain.MethodeMonCash})
	if len(queue.Retraits) != 0 {
		t.Errorf("methode filter should exclude natcash, got %d", len(queue.Retraits))
	}

	if _, err := env.Withdrawals.Traiter(ctx, owner, r.ID); err != nil {
		t.Fatalf("owner traiter: %v", err)
	}
	queue, _ = env.Withdrawals.ListForAdmin(ctx, owner, service.AdminRetraitFilter{Statut: domain.StatutTraite})
	if queue.Stats.TraitesAujourdhuiCount != 1 || queue.Stats.TraitesAujourdhuiTotal != 400 {
		t.Errorf("expected one processed today, got %+v", queue.Stats)
	}
}

func TestWithdrawal_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	rules := DefaultRules()
	rules.DelaiEntreRetraits = 0
	env := NewEnvWith(Options{Rules: rules})
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)

	const requests = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := withdraw(env, driver, 500)
			switch kind := service.KindOf(err); {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case kind == service.KindInsufficientBalance, kind == service.KindInvalidState:
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	balance := env.Balance(t, driver.ID)
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
	if succeeded > 2 {
		t.Errorf("at most two 500 HTG withdrawals fit in 1200, got %d", succeeded)
	}
	if balance+succeeded*500 != 1200 {
		t.Errorf("ledger not closed: balance %d with %d withdrawals", balance, succeeded)
	}
}

func TestWithdrawal_LockHeldElsewhere(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)
	env.Locks.Hold(driver.ID)

	if _, err := withdraw(env, driver, 500); !errors.Is(err, service.ErrWithdrawalInProgress) {
		t.Fatalf("expected ErrWithdrawalInProgress, got %v", err)
	}
}

func TestWithdrawal_LockStoreDownFallsBackToRowLock(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)
	env.Locks.Error = ErrInjected

	if _, err := withdraw(env, driver, 500); err != nil {
		t.Fatalf("withdraw should proceed without redis, got %v", err)
	}
}

func TestWithdrawal_IncompletePayout(t *testing.T) {
	env := NewEnv()
	env.Store.AddDriver(domain.Driver{ID: "d1", VehicleType: domain.VehicleCar})
	env.Fund(t, "d1", 1200)

	_, err := withdraw(env, DriverActor("d1"), 500)
	if service.KindOf(err) != service.KindInvalidInput {
		t.Fatalf("expected invalid_input, got %v", err)
	}

	_, err = env.Withdrawals.RequestWithdrawal(context.Background(), DriverActor("d1"), service.WithdrawalRequest{
		Montant: 500,
		Payout: domain.PayoutDetails{
			Methode:           domain.MethodeBank,
			BankName:          "Unibank",
			BankAccountName:   "Jean Pierre",
			BankAccountNumber: "001-234",
		},
	})
	if err != nil {
		t.Fatalf("explicit bank details should be enough, got %v", err)
	}
}

// ──────────────────────────────────────────────
// AUTOMATIC WITHDRAWALS
// ──────────────────────────────────────────────

// flatTariff makes every car ride pay exactly amount to the driver.
func flatTariff(amount float64) domain.Tariff {
	t := domain.DefaultTariff()
	t.Scope = domain.TariffScopeDirect
	t.BaseFareCar = amount
	t.PricePerKmCar = 0
	t.PricePerMinCar = 0
	t.SystemCommission = 0
	return t
}

func TestAutoWithdraw_TriggersOnCrossingOnly(t *testing.T) {
	env := NewEnv()
	env.Store.SeedTariff(flatTariff(1000))
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 900)

	res := env.CompleteRide(t, driver, CarRide())
	if res.AutoRetrait == nil {
		t.Fatal("crossing 1000 should queue an automatic withdrawal")
	}
	if res.AutoRetrait.Type != domain.TypeRetraitAutomatique || res.AutoRetrait.Montant != 1900 {
		t.Errorf("expected automatique_disponible for 1900, got %s for %d", res.AutoRetrait.Type, res.AutoRetrait.Montant)
	}
	if got := env.Balance(t, driver.ID); got != 0 {
		t.Errorf("auto withdrawal takes the whole balance, got %d", got)
	}
	if !env.Publisher.Has(string(service.NotificationRetraitCreated)) {
		t.Error("expected a retrait notification")
	}

	// Already above the threshold before the credit: no new crossing.
	other := env.AddMonCashDriver("d2")
	env.Fund(t, other.ID, 1500)
	res = env.CompleteRide(t, other, CarRide())
	if res.AutoRetrait != nil {
		t.Errorf("1500 -> 2500 is not a crossing, got retrait %s", res.AutoRetrait.ID)
	}
	if got := env.Balance(t, other.ID); got != 2500 {
		t.Errorf("expected 2500, got %d", got)
	}
}

func TestAutoWithdraw_SkippedDuringCooldown(t *testing.T) {
	env := NewEnv()
	env.Store.SeedTariff(flatTariff(1000))
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 900)
	env.Store.AddRetrait(domain.Retrait{
		ID:          "recent",
		ChauffeurID: driver.ID,
		Montant:     200,
		Statut:      domain.StatutEnAttente,
		DateDemande: time.Now().Add(-time.Hour),
	})

	res := env.CompleteRide(t, driver, CarRide())
	if res.AutoRetrait != nil {
		t.Fatal("cooldown should skip the automatic withdrawal")
	}
	if got := env.Balance(t, driver.ID); got != 1900 {
		t.Errorf("credit should still land, got %d", got)
	}
}

func TestAutoWithdraw_SkippedWithoutPayoutDetails(t *testing.T) {
	env := NewEnv()
	env.Store.SeedTariff(flatTariff(1200))
	env.Store.AddDriver(domain.Driver{ID: "d1", VehicleType: domain.VehicleCar})

	res := env.CompleteRide(t, DriverActor("d1"), CarRide())
	if res.AutoRetrait != nil {
		t.Fatal("no payout details should skip the automatic withdrawal")
	}
	if got := env.Balance(t, "d1"); got != 1200 {
		t.Errorf("expected 1200, got %d", got)
	}
}

// ──────────────────────────────────────────────
// LEDGER INTEGRITY
// ──────────────────────────────────────────────

func TestLedgerCorruption_FreezesWallet(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)
	env.Store.InjectTransaction(domain.WalletTransaction{
		ID:       "bad",
		DriverID: driver.ID,
		Type:     domain.TxWithdrawalDebit,
		Amount:   300,
	})

	_, err := withdraw(env, driver, 500)
	if !errors.Is(err, service.ErrLedgerCorrupted) {
		t.Fatalf("expected ErrLedgerCorrupted, got %v", err)
	}
	if !env.Store.WalletState(driver.ID).Frozen {
		t.Fatal("wallet should be frozen")
	}
	if !env.Publisher.Has(string(service.NotificationWalletFrozen)) {
		t.Error("expected a wallet.frozen notification")
	}
	if n := len(env.Store.Retraits(driver.ID)); n != 0 {
		t.Errorf("the failed withdrawal must roll back, found %d retraits", n)
	}

	if _, err := withdraw(env, driver, 500); !errors.Is(err, service.ErrWalletFrozen) {
		t.Errorf("expected ErrWalletFrozen afterwards, got %v", err)
	}
	if _, err := env.Wallets.Adjust(context.Background(), SuperAdmin, driver.ID, 100, "fix"); !errors.Is(err, service.ErrWalletFrozen) {
		t.Errorf("adjust on a frozen wallet: expected ErrWalletFrozen, got %v", err)
	}

	overview, err := env.Wallets.GetWallet(context.Background(), driver)
	if err != nil {
		t.Fatalf("a frozen wallet is still readable: %v", err)
	}
	if !overview.Wallet.Frozen || overview.Eligibility.Raison != domain.RaisonWalletBloque {
		t.Errorf("expected frozen wallet with wallet_bloque, got %+v", overview.Eligibility)
	}
}

func TestLedgerCorruption_DetectedOnRead(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Store.InjectTransaction(domain.WalletTransaction{
		ID:       "orphan-refund",
		DriverID: driver.ID,
		Type:     domain.TxWithdrawalRefund,
		Amount:   500,
	})

	_, err := env.Wallets.GetWallet(context.Background(), driver)
	if service.KindOf(err) != service.KindLedgerCorrupted {
		t.Fatalf("expected ledger_corrupted, got %v", err)
	}
	if !env.Store.WalletState(driver.ID).Frozen {
		t.Error("reading a corrupt wallet should freeze it")
	}
}

func TestLedger_AppendFailureRollsBackRide(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	ctx := context.Background()

	ride, _ := env.Rides.CreateRide(ctx, Passenger, CarRide())
	env.Rides.AcceptRide(ctx, driver, ride.ID)
	env.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: domain.RideStatusArrived})
	env.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: domain.RideStatusStarted})

	env.Store.AppendError = ErrInjected
	_, err := env.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: domain.RideStatusCompleted})
	if !errors.Is(err, ErrInjected) {
		t.Fatalf("expected the injected error, got %v", err)
	}
	stored, _ := env.Store.Ride(ride.ID)
	if stored.Status != domain.RideStatusStarted || stored.FinalPrice != nil {
		t.Errorf("ride must stay started without a price, got %s", stored.Status)
	}

	env.Store.AppendError = nil
	if _, err := env.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: domain.RideStatusCompleted}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := env.Balance(t, driver.ID); got != 383 {
		t.Errorf("expected a single credit of 383, got %d", got)
	}
}

func TestHoldingPeriod_CreditsStayPending(t *testing.T) {
	env := NewEnvWith(Options{Rules: DefaultRules(), Holding: time.Hour})
	driver := env.AddMonCashDriver("d1")

	env.CompleteRide(t, driver, CarRide())

	overview, err := env.Wallets.GetWallet(context.Background(), driver)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if overview.Wallet.Balance != 0 || overview.Wallet.BalanceEnAttente != 383 {
		t.Errorf("expected 0 available and 383 pending, got %d/%d",
			overview.Wallet.Balance, overview.Wallet.BalanceEnAttente)
	}
	if overview.Wallet.TotalGagne != 383 {
		t.Errorf("expected total_gagne 383, got %d", overview.Wallet.TotalGagne)
	}
	if _, err := withdraw(env, driver, 300); !errors.Is(err, service.ErrInsufficientBalance) {
		t.Errorf("held credits are not withdrawable, got %v", err)
	}
}

func TestAdjust_CannotOverdraw(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 300)
	ctx := context.Background()

	if _, err := env.Wallets.Adjust(ctx, SuperAdmin, driver.ID, -500, "chargeback"); !errors.Is(err, service.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	w, err := env.Wallets.Adjust(ctx, SuperAdmin, driver.ID, -100, "chargeback")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if w.Balance != 200 {
		t.Errorf("expected 200, got %d", w.Balance)
	}

	admin := domain.Actor{ID: "brand-a", Role: domain.RoleAdmin}
	if _, err := env.Wallets.Adjust(ctx, admin, driver.ID, 100, "bonus"); service.KindOf(err) != service.KindForbidden {
		t.Errorf("admins cannot adjust, got %v", err)
	}
	if _, err := env.Wallets.Adjust(ctx, SuperAdmin, "ghost", 100, "bonus"); service.KindOf(err) != service.KindNotFound {
		t.Errorf("unknown driver: expected not_found, got %v", err)
	}
}

func TestCompletionAndWithdrawal_SameDriverConcurrently(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 25; round++ {
		env := NewEnv()
		driver := env.AddMonCashDriver("d1")
		env.Fund(t, driver.ID, 500)

		ride, err := env.Rides.CreateRide(ctx, Passenger, CarRide())
		if err != nil {
			t.Fatalf("create ride: %v", err)
		}
		if _, err := env.Rides.AcceptRide(ctx, driver, ride.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}
		for _, s := range []domain.RideStatus{domain.RideStatusArrived, domain.RideStatusStarted} {
			if _, err := env.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: s}); err != nil {
				t.Fatalf("move to %s: %v", s, err)
			}
		}

		var (
			wg                     sync.WaitGroup
			completeErr, retireErr error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, completeErr = env.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: domain.RideStatusCompleted})
		}()
		go func() {
			defer wg.Done()
			<-start
			_, retireErr = withdraw(env, driver, 500)
		}()
		close(start)
		wg.Wait()

		if completeErr != nil || retireErr != nil {
			t.Fatalf("round %d: complete=%v withdraw=%v", round, completeErr, retireErr)
		}

		// 500 funded + 383 credited - 500 withdrawn, whatever the order.
		balance := env.Balance(t, driver.ID)
		if balance != 383 {
			t.Fatalf("round %d: expected balance 383, got %d", round, balance)
		}
		var sum int64
		for _, tx := range env.Store.Transactions(driver.ID) {
			sum += tx.Amount
		}
		if sum != balance {
			t.Fatalf("round %d: ledger not closed, entries sum to %d but balance is %d", round, sum, balance)
		}
		if state := env.Store.WalletState(driver.ID); state.Frozen {
			t.Fatalf("round %d: wallet frozen: %s", round, state.FrozenReason)
		}
	}
}

func TestWithdrawal_StatusChangedConcurrently(t *testing.T) {
	env := NewEnv()
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 1200)
	ctx := context.Background()

	r, err := withdraw(env, driver, 500)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	env.Store.UpdateStatutError = repository.ErrConflict
	if _, err := env.Withdrawals.Annuler(ctx, SuperAdmin, r.ID, "duplicate"); !errors.Is(err, service.ErrRetraitNotPending) {
		t.Fatalf("expected ErrRetraitNotPending, got %v", err)
	}
	env.Store.UpdateStatutError = nil

	if got := env.Balance(t, driver.ID); got != 700 {
		t.Errorf("a lost annuler must not refund, balance %d", got)
	}
	for _, stored := range env.Store.Retraits(driver.ID) {
		if stored.Statut != domain.StatutEnAttente {
			t.Errorf("retrait should still be en_attente, got %s", stored.Statut)
		}
	}
}

func TestAutoWithdraw_EvaluatesAvailableBalanceOnly(t *testing.T) {
	env := NewEnvWith(Options{Rules: DefaultRules(), Holding: time.Hour})
	env.Store.SeedTariff(flatTariff(1000))
	driver := env.AddMonCashDriver("d1")
	env.Fund(t, driver.ID, 900)

	res := env.CompleteRide(t, driver, CarRide())
	if res.AutoRetrait != nil {
		t.Errorf("a held credit does not cross the threshold, got retrait %s", res.AutoRetrait.ID)
	}
	overview, err := env.Wallets.GetWallet(context.Background(), driver)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if overview.Wallet.Balance != 900 || overview.Wallet.BalanceEnAttente != 1000 {
		t.Errorf("expected 900 available and 1000 held, got %d/%d",
			overview.Wallet.Balance, overview.Wallet.BalanceEnAttente)
	}
}
