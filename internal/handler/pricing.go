package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taptapgo/internal/domain"
	"taptapgo/internal/service"
)

// PricingHandler handles tariff management.
type PricingHandler struct {
	pricingService *service.PricingService
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

// TariffRequest is the HTTP request body for PUT /v1/pricing.
type TariffRequest struct {
	BaseFareMoto     *float64 `json:"base_fare_moto" validate:"required,gte=0"`
	BaseFareCar      *float64 `json:"base_fare_car" validate:"required,gte=0"`
	PricePerKmMoto   *float64 `json:"price_per_km_moto" validate:"required,gte=0"`
	PricePerKmCar    *float64 `json:"price_per_km_car" validate:"required,gte=0"`
	PricePerMinMoto  *float64 `json:"price_per_min_moto" validate:"required,gte=0"`
	PricePerMinCar   *float64 `json:"price_per_min_car" validate:"required,gte=0"`
	SurgeMultiplier  *float64 `json:"surge_multiplier" validate:"required,gte=1"`
	SystemCommission *float64 `json:"system_commission" validate:"required,gte=0,lte=100"`
}

// TariffResponse is the HTTP representation of a tariff.
type TariffResponse struct {
	Scope            string  `json:"scope"`
	ScopeID          string  `json:"id,omitempty"`
	BaseFareMoto     float64 `json:"base_fare_moto"`
	BaseFareCar      float64 `json:"base_fare_car"`
	PricePerKmMoto   float64 `json:"price_per_km_moto"`
	PricePerKmCar    float64 `json:"price_per_km_car"`
	PricePerMinMoto  float64 `json:"price_per_min_moto"`
	PricePerMinCar   float64 `json:"price_per_min_car"`
	SurgeMultiplier  float64 `json:"surge_multiplier"`
	SystemCommission float64 `json:"system_commission"`
	Version          int     `json:"version"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

// GetTariff handles GET /v1/pricing?scope=&id=
func (h *PricingHandler) GetTariff(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	scope, ok := queryScope(c)
	if !ok {
		return
	}

	tariff, err := h.pricingService.GetTariff(c.Request.Context(), actor, scope, c.Query("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTariffResponse(tariff))
}

// UpdateTariff handles PUT /v1/pricing?scope=&id=
func (h *PricingHandler) UpdateTariff(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	scope, ok := queryScope(c)
	if !ok {
		return
	}
	var req TariffRequest
	if !bindJSON(c, &req) {
		return
	}

	tariff, err := h.pricingService.UpdateTariff(c.Request.Context(), actor, scope, c.Query("id"), domain.Tariff{
		BaseFareMoto:     *req.BaseFareMoto,
		BaseFareCar:      *req.BaseFareCar,
		PricePerKmMoto:   *req.PricePerKmMoto,
		PricePerKmCar:    *req.PricePerKmCar,
		PricePerMinMoto:  *req.PricePerMinMoto,
		PricePerMinCar:   *req.PricePerMinCar,
		SurgeMultiplier:  *req.SurgeMultiplier,
		SystemCommission: *req.SystemCommission,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTariffResponse(tariff))
}

func queryScope(c *gin.Context) (domain.TariffScope, bool) {
	scope := domain.TariffScope(c.Query("scope"))
	if !scope.Valid() {
		respondInvalid(c, "scope must be one of direct, admin, brand, city")
		return "", false
	}
	return scope, true
}

func toTariffResponse(t *domain.Tariff) TariffResponse {
	return TariffResponse{
		Scope:            string(t.Scope),
		ScopeID:          t.ScopeID,
		BaseFareMoto:     t.BaseFareMoto,
		BaseFareCar:      t.BaseFareCar,
		PricePerKmMoto:   t.PricePerKmMoto,
		PricePerKmCar:    t.PricePerKmCar,
		PricePerMinMoto:  t.PricePerMinMoto,
		PricePerMinCar:   t.PricePerMinCar,
		SurgeMultiplier:  t.SurgeMultiplier,
		SystemCommission: t.SystemCommission,
		Version:          t.Version,
		UpdatedAt:        formatTime(t.UpdatedAt),
	}
}
