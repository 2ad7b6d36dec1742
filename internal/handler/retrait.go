package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taptapgo/internal/domain"
	"taptapgo/internal/service"
)

// AdminHandler handles the back-office withdrawal queue and wallet
// corrections.
type AdminHandler struct {
	withdrawalService *service.WithdrawalService
	walletService     *service.WalletService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(withdrawalService *service.WithdrawalService, walletService *service.WalletService) *AdminHandler {
	return &AdminHandler{
		withdrawalService: withdrawalService,
		walletService:     walletService,
	}
}

// AnnulerRequest is the HTTP request body for cancelling a withdrawal.
type AnnulerRequest struct {
	Motif string `json:"motif" validate:"max=500"`
}

// AdjustRequest is the HTTP request body for a wallet correction.
type AdjustRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// RetraitStatsResponse aggregates the admin queue.
type RetraitStatsResponse struct {
	EnAttenteCount         int64 `json:"en_attente_count"`
	EnAttenteTotal         int64 `json:"en_attente_total"`
	TraitesAujourdhuiCount int64 `json:"traites_aujourdhui_count"`
	TraitesAujourdhuiTotal int64 `json:"traites_aujourdhui_total"`
}

// RetraitQueueResponse is the HTTP response for the admin queue.
type RetraitQueueResponse struct {
	Retraits []RetraitResponse    `json:"retraits"`
	Stats    RetraitStatsResponse `json:"stats"`
}

// ListRetraits handles GET /v1/admin/retraits?statut=&methode=&min_montant=
func (h *AdminHandler) ListRetraits(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	filter := service.AdminRetraitFilter{
		Statut:  domain.StatutRetrait(c.Query("statut")),
		Methode: domain.MethodeRetrait(c.Query("methode")),
	}
	if raw := c.Query("min_montant"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondInvalid(c, "min_montant must be an integer")
			return
		}
		filter.MinMontant = n
	}
	limit, ok := queryLimit(c, 100)
	if !ok {
		return
	}
	filter.Limit = limit

	queue, err := h.withdrawalService.ListForAdmin(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RetraitQueueResponse{
		Retraits: toRetraitResponses(queue.Retraits),
		Stats: RetraitStatsResponse{
			EnAttenteCount:         queue.Stats.EnAttenteCount,
			EnAttenteTotal:         queue.Stats.EnAttenteTotal,
			TraitesAujourdhuiCount: queue.Stats.TraitesAujourdhuiCount,
			TraitesAujourdhuiTotal: queue.Stats.TraitesAujourdhuiTotal,
		},
	})
}

// Traiter handles POST /v1/admin/retraits/:id/traiter
func (h *AdminHandler) Traiter(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	retrait, err := h.withdrawalService.Traiter(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRetraitResponse(retrait))
}

// Annuler handles POST /v1/admin/retraits/:id/annuler
func (h *AdminHandler) Annuler(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req AnnulerRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	retrait, err := h.withdrawalService.Annuler(c.Request.Context(), actor, c.Param("id"), req.Motif)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRetraitResponse(retrait))
}

// AdjustWallet handles POST /v1/admin/wallets/:driver_id/adjust
func (h *AdminHandler) AdjustWallet(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req AdjustRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletService.Adjust(c.Request.Context(), actor, c.Param("driver_id"), req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"wallet": toWalletBalances(*wallet)})
}
