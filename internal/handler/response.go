package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
	"taptapgo/internal/middleware"
	"taptapgo/internal/service"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind              service.Kind `json:"kind"`
	Detail            string       `json:"detail"`
	ProchainRetraitTs *time.Time   `json:"prochain_retrait_ts,omitempty"`
}

// respondError sends an error response with the status matching its kind.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	code := mapKindToHTTPStatus(kind)

	resp := ErrorResponse{Kind: kind, Detail: err.Error()}
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		next := cooldown.NextEligibleAt
		resp.ProchainRetraitTs = &next
	}

	c.Set(middleware.ErrorKindKey, string(kind))
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.WithContext(c.Request.Context()).Error("request failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		if kind == service.KindInternal {
			resp.Detail = "internal error"
		}
	}
	c.JSON(code, resp)
}

// respondInvalid rejects a malformed request body or query.
func respondInvalid(c *gin.Context, detail string) {
	c.Set(middleware.ErrorKindKey, string(service.KindInvalidInput))
	c.JSON(http.StatusBadRequest, ErrorResponse{Kind: service.KindInvalidInput, Detail: detail})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapKindToHTTPStatus maps an error kind to its HTTP status code.
func mapKindToHTTPStatus(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidTransition, service.KindInvalidState:
		return http.StatusConflict
	case service.KindInsufficientBalance, service.KindBelowMinimum:
		return http.StatusUnprocessableEntity
	case service.KindWalletFrozen:
		return http.StatusLocked
	case service.KindCooldownActive:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// actorFrom returns the authenticated actor. Routes are always mounted
// behind middleware.Auth, so a missing actor is a wiring error.
func actorFrom(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"kind":   "unauthorized",
			"detail": "authorization required",
		})
	}
	return actor, ok
}

// queryLimit reads ?limit=, defaulting to def and capped at 200.
func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		respondInvalid(c, "limit must be a positive integer")
		return 0, false
	}
	return min(n, 200), true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
