package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taptapgo/internal/domain"
	"taptapgo/internal/service"
)

// WalletHandler handles the driver's wallet endpoints.
type WalletHandler struct {
	walletService     *service.WalletService
	withdrawalService *service.WithdrawalService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletService *service.WalletService, withdrawalService *service.WithdrawalService) *WalletHandler {
	return &WalletHandler{
		walletService:     walletService,
		withdrawalService: withdrawalService,
	}
}

// WithdrawRequest is the HTTP request body for a manual withdrawal. Empty
// destination fields fall back to the saved payout details.
type WithdrawRequest struct {
	Montant           int64  `json:"montant" validate:"required,gt=0"`
	Methode           string `json:"methode" validate:"omitempty,payout_method"`
	NumeroCompte      string `json:"numero_compte" validate:"max=64"`
	BankName          string `json:"bank_name" validate:"max=128"`
	BankAccountName   string `json:"bank_account_name" validate:"max=128"`
	BankAccountNumber string `json:"bank_account_number" validate:"max=64"`
}

// PayoutRequest is the HTTP request body for saving payout details.
type PayoutRequest struct {
	Methode           string `json:"methode" validate:"required,payout_method"`
	NumeroCompte      string `json:"numero_compte" validate:"required_unless=Methode bank,max=64"`
	BankName          string `json:"bank_name" validate:"required_if=Methode bank,max=128"`
	BankAccountName   string `json:"bank_account_name" validate:"required_if=Methode bank,max=128"`
	BankAccountNumber string `json:"bank_account_number" validate:"required_if=Methode bank,max=64"`
}

// WalletBalances is the derived wallet view.
type WalletBalances struct {
	Balance          int64 `json:"balance"`
	BalanceEnAttente int64 `json:"balance_en_attente"`
	TotalGagne       int64 `json:"total_gagne"`
	TotalRetire      int64 `json:"total_retire"`
	Bloque           bool  `json:"bloque,omitempty"`
}

// WithdrawalRulesResponse exposes the configured withdrawal rules.
type WithdrawalRulesResponse struct {
	MontantMinimum           int64   `json:"montant_minimum"`
	SeuilAutomatique         int64   `json:"seuil_automatique"`
	DelaiEntreRetraitsHeures float64 `json:"delai_entre_retraits_heures"`
	FraisRetrait             int64   `json:"frais_retrait"`
}

// WalletResponse is the HTTP response for GET /v1/wallet.
type WalletResponse struct {
	Wallet            WalletBalances          `json:"wallet"`
	RetraitPossible   bool                    `json:"retrait_possible"`
	Raison            string                  `json:"raison,omitempty"`
	ProchainRetraitTs string                  `json:"prochain_retrait_ts,omitempty"`
	TypeRetrait       string                  `json:"type_retrait"`
	Regles            WithdrawalRulesResponse `json:"regles"`
}

// RetraitResponse is the HTTP representation of a withdrawal.
type RetraitResponse struct {
	ID                string `json:"id"`
	ChauffeurID       string `json:"chauffeur_id"`
	ChauffeurNom      string `json:"chauffeur_nom,omitempty"`
	ChauffeurPhone    string `json:"chauffeur_phone,omitempty"`
	Montant           int64  `json:"montant"`
	Frais             int64  `json:"frais"`
	MontantNet        int64  `json:"montant_net"`
	Methode           string `json:"methode"`
	NumeroCompte      string `json:"numero_compte,omitempty"`
	BankName          string `json:"bank_name,omitempty"`
	BankAccountName   string `json:"bank_account_name,omitempty"`
	BankAccountNumber string `json:"bank_account_number,omitempty"`
	Type              string `json:"type_retrait"`
	Statut            string `json:"statut"`
	DateDemande       string `json:"date_demande"`
	DateTraitement    string `json:"date_traitement,omitempty"`
	TraitePar         string `json:"traite_par,omitempty"`
	MotifAnnulation   string `json:"motif_annulation,omitempty"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Amount    int64  `json:"amount"`
	RideID    string `json:"ride_id,omitempty"`
	RetraitID string `json:"retrait_id,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// GetWallet handles GET /v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	overview, err := h.walletService.GetWallet(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, WalletResponse{
		Wallet:            toWalletBalances(overview.Wallet),
		RetraitPossible:   overview.Eligibility.Possible,
		Raison:            overview.Eligibility.Raison,
		ProchainRetraitTs: formatTime(overview.Eligibility.ProchainRetrait),
		TypeRetrait:       string(overview.Eligibility.Type),
		Regles:            toRulesResponse(overview.Rules),
	})
}

// Withdraw handles POST /v1/wallet/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	retrait, err := h.withdrawalService.RequestWithdrawal(c.Request.Context(), actor, service.WithdrawalRequest{
		Montant: req.Montant,
		Payout: domain.PayoutDetails{
			Methode:           domain.MethodeRetrait(req.Methode),
			NumeroCompte:      req.NumeroCompte,
			BankName:          req.BankName,
			BankAccountName:   req.BankAccountName,
			BankAccountNumber: req.BankAccountNumber,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRetraitResponse(retrait))
}

// UpdatePayout handles PUT /v1/wallet/payout
func (h *WalletHandler) UpdatePayout(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req PayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	payout := domain.PayoutDetails{
		Methode:           domain.MethodeRetrait(req.Methode),
		NumeroCompte:      req.NumeroCompte,
		BankName:          req.BankName,
		BankAccountName:   req.BankAccountName,
		BankAccountNumber: req.BankAccountNumber,
	}
	if err := h.walletService.UpdatePayout(c.Request.Context(), actor, payout); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Transactions handles GET /v1/wallet/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c, 50)
	if !ok {
		return
	}

	txs, err := h.walletService.Transactions(c.Request.Context(), actor, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		response = append(response, TransactionResponse{
			ID:        t.ID,
			Type:      string(t.Type),
			Amount:    t.Amount,
			RideID:    t.RideID,
			RetraitID: t.RetraitID,
			Note:      t.Note,
			CreatedAt: formatTime(t.CreatedAt),
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"transactions": response})
}

// Retraits handles GET /v1/wallet/retraits
func (h *WalletHandler) Retraits(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c, 50)
	if !ok {
		return
	}

	retraits, err := h.withdrawalService.ListForDriver(c.Request.Context(), actor, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"retraits": toRetraitResponses(retraits)})
}

func toWalletBalances(w domain.Wallet) WalletBalances {
	return WalletBalances{
		Balance:          w.Balance,
		BalanceEnAttente: w.BalanceEnAttente,
		TotalGagne:       w.TotalGagne,
		TotalRetire:      w.TotalRetire,
		Bloque:           w.Frozen,
	}
}

func toRulesResponse(r domain.WithdrawalRules) WithdrawalRulesResponse {
	return WithdrawalRulesResponse{
		MontantMinimum:           r.MontantMinimum,
		SeuilAutomatique:         r.SeuilAutomatique,
		DelaiEntreRetraitsHeures: r.DelaiEntreRetraits.Hours(),
		FraisRetrait:             r.FraisRetrait,
	}
}

func toRetraitResponse(r *domain.Retrait) RetraitResponse {
	return RetraitResponse{
		ID:                r.ID,
		ChauffeurID:       r.ChauffeurID,
		ChauffeurNom:      r.ChauffeurNom,
		ChauffeurPhone:    r.ChauffeurPhone,
		Montant:           r.Montant,
		Frais:             r.Frais,
		MontantNet:        r.MontantNet,
		Methode:           string(r.Methode),
		NumeroCompte:      r.NumeroCompte,
		BankName:          r.BankName,
		BankAccountName:   r.BankAccountName,
		BankAccountNumber: r.BankAccountNumber,
		Type:              string(r.Type),
		Statut:            string(r.Statut),
		DateDemande:       formatTime(r.DateDemande),
		DateTraitement:    formatTime(r.DateTraitement),
		TraitePar:         r.TraitePar,
		MotifAnnulation:   r.MotifAnnulation,
	}
}

func toRetraitResponses(retraits []*domain.Retrait) []RetraitResponse {
	response := make([]RetraitResponse, 0, len(retraits))
	for _, r := range retraits {
		response = append(response, toRetraitResponse(r))
	}
	return response
}
