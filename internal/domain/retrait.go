package domain

import "time"

// MethodeRetrait is the payout rail for a withdrawal.
type MethodeRetrait string

const (
	MethodeMonCash MethodeRetrait = "moncash"
	MethodeNatCash MethodeRetrait = "natcash"
	MethodeBank    MethodeRetrait = "bank"
)

// Valid reports whether the payout method is known.
func (m MethodeRetrait) Valid() bool {
	return m == MethodeMonCash || m == MethodeNatCash || m == MethodeBank
}

// TypeRetrait distinguishes driver-initiated from system-triggered withdrawals.
type TypeRetrait string

const (
	TypeRetraitManuel      TypeRetrait = "manuel"
	TypeRetraitAutomatique TypeRetrait = "automatique_disponible"
)

// StatutRetrait is the lifecycle state of a withdrawal.
type StatutRetrait string

const (
	StatutEnAttente StatutRetrait = "en_attente"
	StatutTraite    StatutRetrait = "traite"
	StatutAnnule    StatutRetrait = "annule"
)

// Valid reports whether the status is known.
func (s StatutRetrait) Valid() bool {
	return s == StatutEnAttente || s == StatutTraite || s == StatutAnnule
}

// Retrait is a driver's withdrawal request.
type Retrait struct {
	ID          string
	ChauffeurID string
	// Montant is debited from the wallet in full; the driver receives
	// MontantNet and the platform keeps Frais.
	Montant    int64
	Frais      int64
	MontantNet int64

	Methode           MethodeRetrait
	NumeroCompte      string
	BankName          string
	BankAccountName   string
	BankAccountNumber string

	Type   TypeRetrait
	Statut StatutRetrait

	DateDemande     time.Time
	DateTraitement  time.Time
	TraitePar       string
	MotifAnnulation string

	// Populated by admin listings.
	ChauffeurNom   string
	ChauffeurPhone string
}

// LastActivity is the reference point for the withdrawal cooldown.
func (r *Retrait) LastActivity() time.Time {
	if r.DateTraitement.After(r.DateDemande) {
		return r.DateTraitement
	}
	return r.DateDemande
}

// RetraitStats aggregates the admin withdrawal queue.
type RetraitStats struct {
	EnAttenteCount         int64
	EnAttenteTotal         int64
	TraitesAujourdhuiCount int64
	TraitesAujourdhuiTotal int64
}

// WithdrawalRules are the business constants governing withdrawals.
type WithdrawalRules struct {
	MontantMinimum     int64
	SeuilAutomatique   int64
	DelaiEntreRetraits time.Duration
	FraisRetrait       int64
}

// Eligibility describes whether a driver may withdraw right now.
type Eligibility struct {
	Possible        bool
	Raison          string
	ProchainRetrait time.Time
	Type            TypeRetrait
}

// Reasons a withdrawal is not currently possible.
const (
	RaisonWalletBloque        = "wallet_bloque"
	RaisonDelaiActif          = "delai_actif"
	RaisonBalanceInsuffisante = "balance_insuffisante"
)

// NextEligible returns when the cooldown after last ends. The zero time
// means no cooldown applies.
func (r WithdrawalRules) NextEligible(last *Retrait) time.Time {
	if last == nil || r.DelaiEntreRetraits <= 0 {
		return time.Time{}
	}
	return last.LastActivity().Add(r.DelaiEntreRetraits)
}

// Eligibility evaluates the rules against a wallet and the driver's most
// recent non-cancelled withdrawal.
func (r WithdrawalRules) Eligibility(w Wallet, last *Retrait, now time.Time) Eligibility {
	e := Eligibility{Type: TypeRetraitManuel}
	if r.SeuilAutomatique > 0 && w.Balance >= r.SeuilAutomatique {
		e.Type = TypeRetraitAutomatique
	}

	next := r.NextEligible(last)
	switch {
	case w.Frozen:
		e.Raison = RaisonWalletBloque
	case !next.IsZero() && now.Before(next):
		e.Raison = RaisonDelaiActif
		e.ProchainRetrait = next
	case w.Balance < r.MontantMinimum || w.Balance <= 0:
		e.Raison = RaisonBalanceInsuffisante
	default:
		e.Possible = true
	}
	return e
}
