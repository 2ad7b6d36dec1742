// Package metrics exposes Prometheus counters for the ride and wallet flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rideTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptapgo_ride_transitions_total",
		Help: "Ride status transitions, by source and target status.",
	}, []string{"from", "to"})

	rideAcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taptapgo_ride_accept_conflicts_total",
		Help: "Accept attempts that lost the race for a ride.",
	})

	fareEstimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptapgo_fare_estimates_total",
		Help: "Fares computed, by vehicle type and purpose.",
	}, []string{"vehicle_type", "purpose"})

	walletTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptapgo_wallet_transactions_total",
		Help: "Ledger entries appended, by type.",
	}, []string{"type"})

	walletAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptapgo_wallet_amount_htg_total",
		Help: "Absolute HTG moved through the ledger, by transaction type.",
	}, []string{"type"})

	retraitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptapgo_retraits_total",
		Help: "Withdrawal lifecycle events, by type and resulting status.",
	}, []string{"type_retrait", "statut"})

	withdrawalRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptapgo_withdrawal_rejections_total",
		Help: "Withdrawal requests rejected by business rules, by error kind.",
	}, []string{"kind"})

	ledgerIntegrityFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taptapgo_ledger_integrity_failures_total",
		Help: "Wallets frozen after failing the closed-ledger check.",
	})
)

// RideTransition records a ride status change.
func RideTransition(from, to string) {
	rideTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RideAcceptConflict records a lost accept race.
func RideAcceptConflict() {
	rideAcceptConflictsTotal.Inc()
}

// FareEstimated records a computed fare.
func FareEstimated(vehicleType, purpose string) {
	fareEstimatesTotal.WithLabelValues(vehicleType, purpose).Inc()
}

// WalletTransaction records a ledger append.
func WalletTransaction(txType string, amount int64) {
	walletTransactionsTotal.WithLabelValues(txType).Inc()
	if amount < 0 {
		amount = -amount
	}
	walletAmountTotal.WithLabelValues(txType).Add(float64(amount))
}

// Retrait records a withdrawal entering a status.
func Retrait(typeRetrait, statut string) {
	retraitsTotal.WithLabelValues(typeRetrait, statut).Inc()
}

// WithdrawalRejected records a rejected withdrawal request.
func WithdrawalRejected(kind string) {
	withdrawalRejectionsTotal.WithLabelValues(kind).Inc()
}

// LedgerIntegrityFailure records a frozen wallet.
func LedgerIntegrityFailure() {
	ledgerIntegrityFailuresTotal.Inc()
}
