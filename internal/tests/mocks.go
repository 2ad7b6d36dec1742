package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taptapgo/internal/domain"
	"taptapgo/internal/redis"
	"taptapgo/internal/repository"
)

// ──────────────────────────────────────────────
// IN-MEMORY STORE
// ──────────────────────────────────────────────

type tariffKey struct {
	scope domain.TariffScope
	id    string
}

type state struct {
	drivers  map[string]domain.Driver
	tariffs  map[tariffKey]domain.Tariff
	rides    map[string]domain.Ride
	events   []domain.RideEvent
	wallets  map[string]domain.WalletState
	txs      []domain.WalletTransaction
	retraits map[string]domain.Retrait
}

func newState() *state {
	return &state{
		drivers:  make(map[string]domain.Driver),
		tariffs:  make(map[tariffKey]domain.Tariff),
		rides:    make(map[string]domain.Ride),
		wallets:  make(map[string]domain.WalletState),
		retraits: make(map[string]domain.Retrait),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.drivers {
		c.drivers[k] = v
	}
	for k, v := range s.tariffs {
		c.tariffs[k] = v
	}
	for k, v := range s.rides {
		c.rides[k] = copyRide(v)
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.retraits {
		c.retraits[k] = v
	}
	c.events = append([]domain.RideEvent(nil), s.events...)
	c.txs = append([]domain.WalletTransaction(nil), s.txs...)
	return c
}

func copyRide(r domain.Ride) domain.Ride {
	if r.FinalPrice != nil {
		price := *r.FinalPrice
		r.FinalPrice = &price
	}
	return r
}

// Store is an in-memory implementation of every repository and of the
// transaction manager. WithinTx runs on a private copy of the state that is
// swapped in on success and dropped on error. Transactions are serialized,
// which is at least as strict as the row locks Postgres takes.
type Store struct {
	mu   sync.RWMutex // guards st
	txMu sync.Mutex   // serializes writers
	st   *state

	// Counters for verification
	TxCount       int32
	RollbackCount int32
	ClaimCount    int32

	// Error injection
	AppendError       error
	TotalsError       error
	ClaimError        error
	UpdateStatutError error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// access is how a repository reaches the state: directly on the pool, or on
// a transaction's private copy.
type access interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

type poolAccess struct{ s *Store }

func (p poolAccess) read(fn func(st *state) error) error {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return fn(p.s.st)
}

func (p poolAccess) write(fn func(st *state) error) error {
	p.s.txMu.Lock()
	defer p.s.txMu.Unlock()
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return fn(p.s.st)
}

type txAccess struct{ st *state }

func (t txAccess) read(fn func(st *state) error) error  { return fn(t.st) }
func (t txAccess) write(fn func(st *state) error) error { return fn(t.st) }

// Repositories returns repositories bound to the committed state.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(poolAccess{s})
}

func (s *Store) bind(a access) repository.Repositories {
	return repository.Repositories{
		Rides:    &rideRepo{a: a, s: s},
		Drivers:  &driverRepo{a: a},
		Tariffs:  &tariffRepo{a: a},
		Wallets:  &walletRepo{a: a, s: s},
		Retraits: &retraitRepo{a: a, s: s},
	}
}

// WithinTx implements repository.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	atomic.AddInt32(&s.TxCount, 1)
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		atomic.AddInt32(&s.RollbackCount, 1)
		return err
	}

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(s.bind(txAccess{snapshot})); err != nil {
		atomic.AddInt32(&s.RollbackCount, 1)
		return err
	}

	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
	return nil
}

var _ repository.TxManager = (*Store)(nil)

// ──────────────────────────────────────────────
// SEEDING AND INSPECTION
// ──────────────────────────────────────────────

// AddDriver adds a driver.
func (s *Store) AddDriver(d domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.drivers[d.ID] = d
}

// SeedTariff stores a tariff as if it had been written once.
func (s *Store) SeedTariff(t domain.Tariff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	s.st.tariffs[tariffKey{t.Scope, t.ScopeID}] = t
}

// InjectTransaction appends a ledger entry without any check, to simulate
// corruption written outside the service.
func (s *Store) InjectTransaction(tx domain.WalletTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.st.txs = append(s.st.txs, tx)
}

// AddRetrait stores a withdrawal as is.
func (s *Store) AddRetrait(r domain.Retrait) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.retraits[r.ID] = r
}

// AddRide stores a ride as is.
func (s *Store) AddRide(r domain.Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.rides[r.ID] = copyRide(r)
}

// Ride returns the committed ride.
func (s *Store) Ride(id string) (domain.Ride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.rides[id]
	return copyRide(r), ok
}

// Events returns the audit trail of a ride in insertion order.
func (s *Store) Events(rideID string) []domain.RideEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RideEvent
	for _, e := range s.st.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out
}

// Transactions returns the committed ledger entries of a driver.
func (s *Store) Transactions(driverID string) []domain.WalletTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WalletTransaction
	for _, t := range s.st.txs {
		if t.DriverID == driverID {
			out = append(out, t)
		}
	}
	return out
}

// Retraits returns the committed withdrawals of a driver.
func (s *Store) Retraits(driverID string) []domain.Retrait {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Retrait
	for _, r := range s.st.retraits {
		if r.ChauffeurID == driverID {
			out = append(out, r)
		}
	}
	return out
}

// WalletState returns the committed wallet row.
func (s *Store) WalletState(driverID string) domain.WalletState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.wallets[driverID]
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

// ──────────────────────────────────────────────
// RIDES
// ──────────────────────────────────────────────

type rideRepo struct {
	a access
	s *Store
}

func (m *rideRepo) Create(ctx context.Context, ride *domain.Ride) error {
	return m.a.write(func(st *state) error {
		if _, ok := st.rides[ride.ID]; ok {
			return repository.ErrDuplicate
		}
		st.rides[ride.ID] = copyRide(*ride)
		return nil
	})
}

func (m *rideRepo) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	var out *domain.Ride
	err := m.a.read(func(st *state) error {
		r, ok := st.rides[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := copyRide(r)
		out = &c
		return nil
	})
	return out, err
}

func (m *rideRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return m.GetByID(ctx, id)
}

func (m *rideRepo) List(ctx context.Context, f repository.RideFilter) ([]*domain.Ride, error) {
	var out []*domain.Ride
	err := m.a.read(func(st *state) error {
		for _, r := range st.rides {
			if f.Status != "" && r.Status != f.Status {
				continue
			}
			if f.PassengerID != "" && r.PassengerID != f.PassengerID {
				continue
			}
			if f.ScopeSet && r.AdminID != f.AdminID {
				continue
			}
			if f.DriverID != "" {
				own := r.DriverID == f.DriverID
				open := f.OpenFor != nil && r.Status == domain.RideStatusPending && r.DriverID == "" &&
					r.VehicleType == f.OpenFor.VehicleType && r.AdminID == f.OpenFor.AdminID
				if !own && !open {
					continue
				}
			}
			c := copyRide(r)
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := limitOrDefault(f.Limit); len(out) > n {
		out = out[:n]
	}
	return out, err
}

func (m *rideRepo) Claim(ctx context.Context, rideID, driverID string, at time.Time) error {
	atomic.AddInt32(&m.s.ClaimCount, 1)
	if m.s.ClaimError != nil {
		return m.s.ClaimError
	}
	return m.a.write(func(st *state) error {
		r, ok := st.rides[rideID]
		if !ok || r.Status != domain.RideStatusPending || r.DriverID != "" {
			return repository.ErrConflict
		}
		for _, other := range st.rides {
			if other.DriverID == driverID && other.Status.IsActive() {
				return repository.ErrDuplicate
			}
		}
		r.DriverID = driverID
		r.Status = domain.RideStatusAccepted
		r.AcceptedAt = at
		st.rides[rideID] = r
		return nil
	})
}

func (m *rideRepo) Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	return m.a.write(func(st *state) error {
		r, ok := st.rides[ride.ID]
		if !ok || r.Status != from {
			return repository.ErrConflict
		}
		r.Status = ride.Status
		r.FinalPrice = nil
		if ride.FinalPrice != nil {
			price := *ride.FinalPrice
			r.FinalPrice = &price
		}
		r.CancelReason = ride.CancelReason
		r.CancelledBy = ride.CancelledBy
		r.CancellationFee = ride.CancellationFee
		r.ArrivedAt = ride.ArrivedAt
		r.StartedAt = ride.StartedAt
		r.CompletedAt = ride.CompletedAt
		r.CancelledAt = ride.CancelledAt
		st.rides[ride.ID] = r
		return nil
	})
}

func (m *rideRepo) HasActiveRide(ctx context.Context, driverID string) (bool, error) {
	var active bool
	err := m.a.read(func(st *state) error {
		for _, r := range st.rides {
			if r.DriverID == driverID && r.Status.IsActive() {
				active = true
				return nil
			}
		}
		return nil
	})
	return active, err
}

func (m *rideRepo) SaveRating(ctx context.Context, rideID string, rating int, comment string) error {
	return m.a.write(func(st *state) error {
		r, ok := st.rides[rideID]
		if !ok || r.Status != domain.RideStatusCompleted || r.Rating != 0 {
			return repository.ErrConflict
		}
		r.Rating = rating
		r.RatingComment = comment
		st.rides[rideID] = r
		return nil
	})
}

func (m *rideRepo) AppendEvent(ctx context.Context, event *domain.RideEvent) error {
	return m.a.write(func(st *state) error {
		st.events = append(st.events, *event)
		return nil
	})
}

// ──────────────────────────────────────────────
// DRIVERS AND TARIFFS
// ──────────────────────────────────────────────

type driverRepo struct {
	a access
}

func (m *driverRepo) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	var out *domain.Driver
	err := m.a.read(func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (m *driverRepo) UpdatePayout(ctx context.Context, id string, payout domain.PayoutDetails) error {
	return m.a.write(func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		d.Payout = payout
		st.drivers[id] = d
		return nil
	})
}

type tariffRepo struct {
	a access
}

func (m *tariffRepo) Get(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error) {
	var out *domain.Tariff
	err := m.a.read(func(st *state) error {
		t, ok := st.tariffs[tariffKey{scope, scopeID}]
		if !ok {
			return repository.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (m *tariffRepo) Upsert(ctx context.Context, t *domain.Tariff) error {
	return m.a.write(func(st *state) error {
		key := tariffKey{t.Scope, t.ScopeID}
		t.Version = st.tariffs[key].Version + 1
		t.UpdatedAt = time.Now()
		st.tariffs[key] = *t
		return nil
	})
}

// ──────────────────────────────────────────────
// WALLETS
// ──────────────────────────────────────────────

type walletRepo struct {
	a access
	s *Store
}

func (m *walletRepo) Lock(ctx context.Context, driverID string) (*domain.WalletState, error) {
	var out *domain.WalletState
	err := m.a.write(func(st *state) error {
		w, ok := st.wallets[driverID]
		if !ok {
			w = domain.WalletState{DriverID: driverID}
			st.wallets[driverID] = w
		}
		out = &w
		return nil
	})
	return out, err
}

func (m *walletRepo) GetState(ctx context.Context, driverID string) (*domain.WalletState, error) {
	var out *domain.WalletState
	err := m.a.read(func(st *state) error {
		w, ok := st.wallets[driverID]
		if !ok {
			w = domain.WalletState{DriverID: driverID}
		}
		out = &w
		return nil
	})
	return out, err
}

func (m *walletRepo) Freeze(ctx context.Context, driverID, reason string, at time.Time) error {
	return m.a.write(func(st *state) error {
		st.wallets[driverID] = domain.WalletState{
			DriverID:     driverID,
			Frozen:       true,
			FrozenReason: reason,
			FrozenAt:     at,
		}
		return nil
	})
}

func (m *walletRepo) Append(ctx context.Context, tx *domain.WalletTransaction) error {
	if m.s.AppendError != nil {
		return m.s.AppendError
	}
	return m.a.write(func(st *state) error {
		for _, t := range st.txs {
			switch {
			case t.ID == tx.ID:
				return repository.ErrDuplicate
			case tx.Type == domain.TxRideCredit && t.Type == domain.TxRideCredit && t.RideID == tx.RideID:
				return repository.ErrDuplicate
			case tx.Type == domain.TxWithdrawalRefund && t.Type == domain.TxWithdrawalRefund && t.RetraitID == tx.RetraitID:
				return repository.ErrDuplicate
			}
		}
		st.txs = append(st.txs, *tx)
		return nil
	})
}

func (m *walletRepo) Totals(ctx context.Context, driverID string, holdingSince time.Time) (domain.LedgerTotals, error) {
	if m.s.TotalsError != nil {
		return domain.LedgerTotals{}, m.s.TotalsError
	}
	var t domain.LedgerTotals
	err := m.a.read(func(st *state) error {
		for _, tx := range st.txs {
			if tx.DriverID != driverID {
				continue
			}
			switch tx.Type {
			case domain.TxRideCredit:
				t.Credits += tx.Amount
				if tx.CreatedAt.After(holdingSince) {
					t.Holding += tx.Amount
				}
			case domain.TxAdjustment:
				t.Adjustments += tx.Amount
			case domain.TxWithdrawalDebit:
				t.Debits -= tx.Amount
			case domain.TxWithdrawalRefund:
				t.Refunds += tx.Amount
			}
			if !tx.SignValid() {
				t.Anomalies++
			}
		}
		return nil
	})
	return t, err
}

func (m *walletRepo) ListTransactions(ctx context.Context, driverID string, limit int) ([]*domain.WalletTransaction, error) {
	var out []*domain.WalletTransaction
	err := m.a.read(func(st *state) error {
		for _, tx := range st.txs {
			if tx.DriverID == driverID {
				c := tx
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := limitOrDefault(limit); len(out) > n {
		out = out[:n]
	}
	return out, err
}

// ──────────────────────────────────────────────
// RETRAITS
// ──────────────────────────────────────────────

type retraitRepo struct {
	a access
	s *Store
}

func (m *retraitRepo) Create(ctx context.Context, r *domain.Retrait) error {
	return m.a.write(func(st *state) error {
		if _, ok := st.retraits[r.ID]; ok {
			return repository.ErrDuplicate
		}
		st.retraits[r.ID] = *r
		return nil
	})
}

func (m *retraitRepo) GetByID(ctx context.Context, id string) (*domain.Retrait, error) {
	var out *domain.Retrait
	err := m.a.read(func(st *state) error {
		r, ok := st.retraits[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &r
		return nil
	})
	return out, err
}

func (m *retraitRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Retrait, error) {
	return m.GetByID(ctx, id)
}

func (m *retraitRepo) UpdateStatut(ctx context.Context, r *domain.Retrait, from domain.StatutRetrait) error {
	if m.s.UpdateStatutError != nil {
		return m.s.UpdateStatutError
	}
	return m.a.write(func(st *state) error {
		stored, ok := st.retraits[r.ID]
		if !ok || stored.Statut != from {
			return repository.ErrConflict
		}
		stored.Statut = r.Statut
		stored.DateTraitement = r.DateTraitement
		stored.TraitePar = r.TraitePar
		stored.MotifAnnulation = r.MotifAnnulation
		st.retraits[r.ID] = stored
		return nil
	})
}

func (m *retraitRepo) LatestActive(ctx context.Context, driverID string) (*domain.Retrait, error) {
	var out *domain.Retrait
	err := m.a.read(func(st *state) error {
		for _, r := range st.retraits {
			if r.ChauffeurID != driverID || r.Statut == domain.StatutAnnule {
				continue
			}
			if out == nil || r.LastActivity().After(out.LastActivity()) {
				c := r
				out = &c
			}
		}
		return nil
	})
	return out, err
}

func (m *retraitRepo) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Retrait, error) {
	var out []*domain.Retrait
	err := m.a.read(func(st *state) error {
		for _, r := range st.retraits {
			if r.ChauffeurID == driverID {
				c := r
				out = append(out, &c)
			}
		}
		return nil
	})
	sortRetraits(out)
	if n := limitOrDefault(limit); len(out) > n {
		out = out[:n]
	}
	return out, err
}

func (m *retraitRepo) List(ctx context.Context, f repository.RetraitFilter) ([]*domain.Retrait, error) {
	var out []*domain.Retrait
	err := m.a.read(func(st *state) error {
		for _, r := range st.retraits {
			d := st.drivers[r.ChauffeurID]
			if !retraitInScope(f, d) {
				continue
			}
			if f.Statut != "" && r.Statut != f.Statut {
				continue
			}
			if f.Methode != "" && r.Methode != f.Methode {
				continue
			}
			if f.MinMontant > 0 && r.Montant < f.MinMontant {
				continue
			}
			c := r
			c.ChauffeurNom = d.Name
			c.ChauffeurPhone = d.Phone
			out = append(out, &c)
		}
		return nil
	})
	sortRetraits(out)
	if n := limitOrDefault(f.Limit); len(out) > n {
		out = out[:n]
	}
	return out, err
}

func (m *retraitRepo) Stats(ctx context.Context, f repository.RetraitFilter, dayStart time.Time) (domain.RetraitStats, error) {
	var stats domain.RetraitStats
	err := m.a.read(func(st *state) error {
		for _, r := range st.retraits {
			if !retraitInScope(f, st.drivers[r.ChauffeurID]) {
				continue
			}
			switch {
			case r.Statut == domain.StatutEnAttente:
				stats.EnAttenteCount++
				stats.EnAttenteTotal += r.Montant
			case r.Statut == domain.StatutTraite && !r.DateTraitement.Before(dayStart):
				stats.TraitesAujourdhuiCount++
				stats.TraitesAujourdhuiTotal += r.Montant
			}
		}
		return nil
	})
	return stats, err
}

func retraitInScope(f repository.RetraitFilter, d domain.Driver) bool {
	return !f.ScopeSet || d.AdminID == f.AdminID
}

func sortRetraits(rs []*domain.Retrait) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].DateDemande.After(rs[j].DateDemande) })
}

// ──────────────────────────────────────────────
// REDIS DOUBLES
// ──────────────────────────────────────────────

// MockLockStore is an in-process wallet lock.
type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]string
	Error error

	AcquireCount int32
}

// NewMockLockStore creates a new MockLockStore.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]string)}
}

// Hold marks the driver's lock as taken by someone else.
func (m *MockLockStore) Hold(driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held["lock:wallet:"+driverID] = "other"
}

func (m *MockLockStore) AcquireWalletLock(ctx context.Context, driverID string, ttl time.Duration) (*redis.Lock, error) {
	atomic.AddInt32(&m.AcquireCount, 1)
	if m.Error != nil {
		return nil, m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:wallet:" + driverID
	if _, ok := m.held[key]; ok {
		return nil, nil
	}
	token := uuid.NewString()
	m.held[key] = token
	return &redis.Lock{Key: key, Token: token}, nil
}

func (m *MockLockStore) ReleaseWalletLock(ctx context.Context, lock *redis.Lock) error {
	if lock == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[lock.Key] == lock.Token {
		delete(m.held, lock.Key)
	}
	return nil
}

// MockTariffCache is a map-backed tariff cache.
type MockTariffCache struct {
	mu      sync.Mutex
	tariffs map[tariffKey]domain.Tariff

	Hits          int32
	Invalidations int32
	GetError      error
}

// NewMockTariffCache creates a new MockTariffCache.
func NewMockTariffCache() *MockTariffCache {
	return &MockTariffCache{tariffs: make(map[tariffKey]domain.Tariff)}
}

func (m *MockTariffCache) GetTariff(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tariffs[tariffKey{scope, scopeID}]
	if !ok {
		return nil, nil
	}
	atomic.AddInt32(&m.Hits, 1)
	return &t, nil
}

func (m *MockTariffCache) SetTariff(ctx context.Context, t *domain.Tariff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tariffs[tariffKey{t.Scope, t.ScopeID}] = *t
	return nil
}

func (m *MockTariffCache) InvalidateTariff(ctx context.Context, scope domain.TariffScope, scopeID string) error {
	atomic.AddInt32(&m.Invalidations, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tariffs, tariffKey{scope, scopeID})
	return nil
}

var (
	_ redis.LockStoreInterface   = (*MockLockStore)(nil)
	_ redis.TariffCacheInterface = (*MockTariffCache)(nil)
)

// ──────────────────────────────────────────────
// EVENT PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent is one captured publication.
type PublishedEvent struct {
	Type    string
	Payload any
}

// RecordingPublisher captures published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Error  error
}

func (p *RecordingPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Type: eventType, Payload: payload})
	return p.Error
}

// Types returns the published event types in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// Has reports whether an event of the given type was published.
func (p *RecordingPublisher) Has(eventType string) bool {
	for _, t := range p.Types() {
		if t == eventType {
			return true
		}
	}
	return false
}

// ErrInjected is a generic failure for error injection.
var ErrInjected = errors.New("injected failure")
