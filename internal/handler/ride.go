package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taptapgo/internal/domain"
	"taptapgo/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	City               string   `json:"city"`
	PickupLat          *float64 `json:"pickup_lat" validate:"required,gte=-90,lte=90"`
	PickupLng          *float64 `json:"pickup_lng" validate:"required,gte=-180,lte=180"`
	PickupAddress      string   `json:"pickup_address" validate:"max=255"`
	DestinationLat     *float64 `json:"destination_lat" validate:"required,gte=-90,lte=90"`
	DestinationLng     *float64 `json:"destination_lng" validate:"required,gte=-180,lte=180"`
	DestinationAddress string   `json:"destination_address" validate:"max=255"`
	VehicleType        string   `json:"vehicle_type" validate:"required,vehicle_type"`
	PaymentMethod      string   `json:"payment_method" validate:"omitempty,payment_method"`
	EstimatedDistance  *float64 `json:"estimated_distance" validate:"required,gte=0,lte=10000"`
	EstimatedDuration  *float64 `json:"estimated_duration" validate:"required,gte=0,lte=10080"`
}

// EstimateRequest is the HTTP request body for a fare quote.
type EstimateRequest struct {
	City              string   `json:"city"`
	VehicleType       string   `json:"vehicle_type" validate:"required,vehicle_type"`
	EstimatedDistance *float64 `json:"estimated_distance" validate:"required,gte=0,lte=10000"`
	EstimatedDuration *float64 `json:"estimated_duration" validate:"required,gte=0,lte=10080"`
}

// UpdateStatusRequest is the HTTP request body for a ride transition.
type UpdateStatusRequest struct {
	Status      string   `json:"status" validate:"required,ride_status"`
	Reason      string   `json:"reason" validate:"max=500"`
	DistanceKm  *float64 `json:"distance_km" validate:"omitempty,gte=0,lte=10000"`
	DurationMin *float64 `json:"duration_min" validate:"omitempty,gte=0,lte=10080"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// FareBreakdownResponse itemizes a fare.
type FareBreakdownResponse struct {
	BaseFare        float64 `json:"base_fare"`
	DistanceFare    float64 `json:"distance_fare"`
	TimeFare        float64 `json:"time_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	Subtotal        float64 `json:"subtotal"`
	Total           float64 `json:"total"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                 string  `json:"id"`
	PassengerID        string  `json:"passenger_id"`
	DriverID           string  `json:"driver_id,omitempty"`
	AdminID            string  `json:"admin_id,omitempty"`
	City               string  `json:"city,omitempty"`
	PickupLat          float64 `json:"pickup_lat"`
	PickupLng          float64 `json:"pickup_lng"`
	PickupAddress      string  `json:"pickup_address,omitempty"`
	DestinationLat     float64 `json:"destination_lat"`
	DestinationLng     float64 `json:"destination_lng"`
	DestinationAddress string  `json:"destination_address,omitempty"`
	VehicleType        string  `json:"vehicle_type"`
	PaymentMethod      string  `json:"payment_method"`
	EstimatedDistance  float64 `json:"estimated_distance"`
	EstimatedDuration  float64 `json:"estimated_duration"`
	EstimatedPrice     int64   `json:"estimated_price"`
	FinalPrice         *int64  `json:"final_price,omitempty"`
	TariffVersion      int     `json:"tariff_version"`
	Status             string  `json:"status"`
	CancelReason       string  `json:"cancel_reason,omitempty"`
	CancelledBy        string  `json:"cancelled_by,omitempty"`
	CancellationFee    int64   `json:"cancellation_fee,omitempty"`
	Rating             int     `json:"rating,omitempty"`
	CreatedAt          string  `json:"created_at"`
	AcceptedAt         string  `json:"accepted_at,omitempty"`
	ArrivedAt          string  `json:"arrived_at,omitempty"`
	StartedAt          string  `json:"started_at,omitempty"`
	CompletedAt        string  `json:"completed_at,omitempty"`
	CancelledAt        string  `json:"cancelled_at,omitempty"`
}

// ReceiptResponse is the settlement of a completed ride.
type ReceiptResponse struct {
	DistanceKm     float64               `json:"distance_km"`
	DurationMin    float64               `json:"duration_min"`
	Breakdown      FareBreakdownResponse `json:"breakdown"`
	FinalPrice     int64                 `json:"final_price"`
	CommissionRate float64               `json:"commission_rate"`
	Commission     int64                 `json:"commission"`
	DriverNet      int64                 `json:"driver_net"`
	TariffVersion  int                   `json:"tariff_version"`
	Text           string                `json:"text"`
}

// StatusResponse is the HTTP response for a ride transition.
type StatusResponse struct {
	Ride        RideResponse     `json:"ride"`
	Receipt     *ReceiptResponse `json:"receipt,omitempty"`
	AutoRetrait *RetraitResponse `json:"retrait_automatique,omitempty"`
}

// QuoteResponse is the HTTP response for a fare quote.
type QuoteResponse struct {
	Breakdown      FareBreakdownResponse `json:"breakdown"`
	EstimatedPrice int64                 `json:"estimated_price"`
	TariffScope    string                `json:"tariff_scope"`
	TariffVersion  int                   `json:"tariff_version"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req CreateRideRequest
	if !bindJSON(c, &req) {
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), actor, service.CreateRideRequest{
		City:               req.City,
		PickupLat:          *req.PickupLat,
		PickupLng:          *req.PickupLng,
		PickupAddress:      req.PickupAddress,
		DestinationLat:     *req.DestinationLat,
		DestinationLng:     *req.DestinationLng,
		DestinationAddress: req.DestinationAddress,
		VehicleType:        domain.VehicleType(req.VehicleType),
		PaymentMethod:      domain.PaymentMethod(req.PaymentMethod),
		DistanceKm:         *req.EstimatedDistance,
		DurationMin:        *req.EstimatedDuration,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// Estimate handles POST /v1/rides/estimate
func (h *RideHandler) Estimate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req EstimateRequest
	if !bindJSON(c, &req) {
		return
	}

	quote, err := h.rideService.EstimateRide(c.Request.Context(), actor, service.EstimateRequest{
		City:        req.City,
		VehicleType: domain.VehicleType(req.VehicleType),
		DistanceKm:  *req.EstimatedDistance,
		DurationMin: *req.EstimatedDuration,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		Breakdown:      toBreakdownResponse(quote.Breakdown),
		EstimatedPrice: quote.EstimatedPrice,
		TariffScope:    string(quote.Tariff.Scope),
		TariffVersion:  quote.Tariff.Version,
	})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListRides handles GET /v1/rides?status=
func (h *RideHandler) ListRides(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var status domain.RideStatus
	if raw := c.Query("status"); raw != "" {
		parsed, valid := domain.ParseRideStatus(raw)
		if !valid {
			respondInvalid(c, "status: unknown value \""+raw+"\"")
			return
		}
		status = parsed
	}
	limit, ok := queryLimit(c, 50)
	if !ok {
		return
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), actor, status, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": response})
}

// AcceptRide handles PUT /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// UpdateStatus handles PUT /v1/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.rideService.UpdateStatus(c.Request.Context(), actor, c.Param("id"), service.StatusUpdate{
		Status:      domain.RideStatus(req.Status),
		Reason:      req.Reason,
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := StatusResponse{Ride: toRideResponse(result.Ride)}
	if result.Receipt != nil {
		response.Receipt = toReceiptResponse(result.Receipt)
	}
	if result.AutoRetrait != nil {
		r := toRetraitResponse(result.AutoRetrait)
		response.AutoRetrait = &r
	}
	respondJSON(c, http.StatusOK, response)
}

// RateRide handles POST /v1/rides/:id/rate
func (h *RideHandler) RateRide(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req RateRideRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.rideService.RateRide(c.Request.Context(), actor, c.Param("id"), req.Rating, req.Comment); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:                 r.ID,
		PassengerID:        r.PassengerID,
		DriverID:           r.DriverID,
		AdminID:            r.AdminID,
		City:               r.City,
		PickupLat:          r.PickupLat,
		PickupLng:          r.PickupLng,
		PickupAddress:      r.PickupAddress,
		DestinationLat:     r.DestinationLat,
		DestinationLng:     r.DestinationLng,
		DestinationAddress: r.DestinationAddress,
		VehicleType:        string(r.VehicleType),
		PaymentMethod:      string(r.PaymentMethod),
		EstimatedDistance:  r.EstimatedDistanceKm,
		EstimatedDuration:  r.EstimatedDurationMin,
		EstimatedPrice:     r.EstimatedPrice,
		FinalPrice:         r.FinalPrice,
		TariffVersion:      r.Tariff.Version,
		Status:             string(r.Status),
		CancelReason:       r.CancelReason,
		CancelledBy:        string(r.CancelledBy),
		CancellationFee:    r.CancellationFee,
		Rating:             r.Rating,
		CreatedAt:          formatTime(r.CreatedAt),
		AcceptedAt:         formatTime(r.AcceptedAt),
		ArrivedAt:          formatTime(r.ArrivedAt),
		StartedAt:          formatTime(r.StartedAt),
		CompletedAt:        formatTime(r.CompletedAt),
		CancelledAt:        formatTime(r.CancelledAt),
	}
}

func toBreakdownResponse(b domain.FareBreakdown) FareBreakdownResponse {
	return FareBreakdownResponse{
		BaseFare:        b.BaseFare,
		DistanceFare:    b.DistanceFare,
		TimeFare:        b.TimeFare,
		SurgeMultiplier: b.SurgeMultiplier,
		Subtotal:        b.Subtotal,
		Total:           b.Total,
	}
}

func toReceiptResponse(r *domain.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		DistanceKm:     r.DistanceKm,
		DurationMin:    r.DurationMin,
		Breakdown:      toBreakdownResponse(r.Breakdown),
		FinalPrice:     r.FinalPrice,
		CommissionRate: r.CommissionRate,
		Commission:     r.Commission,
		DriverNet:      r.DriverNet,
		TariffVersion:  r.TariffVersion,
		Text:           service.FormatReceipt(r),
	}
}
