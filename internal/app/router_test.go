package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taptapgo/internal/domain"
	"taptapgo/internal/handler"
	"taptapgo/internal/middleware"
	"taptapgo/internal/tests"
)

const secret = "router-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func routerDeps(env *tests.Env) RouterDeps {
	return RouterDeps{
		RideHandler:    handler.NewRideHandler(env.Rides),
		WalletHandler:  handler.NewWalletHandler(env.Wallets, env.Withdrawals),
		AdminHandler:   handler.NewAdminHandler(env.Withdrawals, env.Wallets),
		PricingHandler: handler.NewPricingHandler(env.Pricing),
		JWTSecret:      secret,
	}
}

func bearer(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(router *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_AuthAndRoles(t *testing.T) {
	router := NewRouter(routerDeps(tests.NewEnv()))
	estimate := `{"vehicle_type":"car","estimated_distance":5,"estimated_duration":15}`

	w := serve(router, http.MethodPost, "/v1/rides/estimate", "", estimate)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	passenger := bearer(t, "passenger-1", domain.RolePassenger)
	w = serve(router, http.MethodPost, "/v1/rides/estimate", passenger, estimate)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "500")

	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/v1/wallet", passenger, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/v1/admin/retraits", passenger, "").Code)

	admin := bearer(t, "brand-a", domain.RoleAdmin)
	assert.Equal(t, http.StatusForbidden,
		serve(router, http.MethodPost, "/v1/admin/wallets/driver-1/adjust", admin, `{"amount":100,"reason":"x"}`).Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	client, mock := redismock.NewClientMock()
	deps := routerDeps(tests.NewEnv())
	deps.RedisClient = client
	router := NewRouter(deps)

	mock.ExpectPing().SetVal("PONG")
	w := serve(router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	w = serve(router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", "", "").Code)
}
