package middleware

import (
	"encoding/json"
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
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authEngine(roles ...domain.Role) *gin.Engine {
	engine := gin.New()
	handlers := []gin.HandlerFunc{Auth(testSecret)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role, "admin_id": actor.AdminID})
	})
	engine.GET("/whoami", handlers...)
	return engine
}

func get(engine *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuth_ValidToken(t *testing.T) {
	token := signToken(t, testSecret, Claims{
		Role:             domain.RoleDriver,
		AdminID:          "brand-a",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "driver-1"},
	})

	w := get(authEngine(), token)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "driver-1", body["id"])
	assert.Equal(t, "driver", body["role"])
	assert.Equal(t, "brand-a", body["admin_id"])
}

func TestAuth_AdminScopeIsItsOwnID(t *testing.T) {
	token := signToken(t, testSecret, Claims{
		Role:             domain.RoleAdmin,
		AdminID:          "someone-else",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "brand-a"},
	})

	w := get(authEngine(), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"admin_id":"brand-a"`)
}

func TestAuth_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"missing header", func(t *testing.T) string { return "" }},
		{"garbage", func(t *testing.T) string { return "not.a.jwt" }},
		{"wrong secret", func(t *testing.T) string {
			return signToken(t, "other", Claims{Role: domain.RolePassenger, RegisteredClaims: jwt.RegisteredClaims{Subject: "p1"}})
		}},
		{"expired", func(t *testing.T) string {
			return signToken(t, testSecret, Claims{
				Role: domain.RolePassenger,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "p1",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				},
			})
		}},
		{"no subject", func(t *testing.T) string {
			return signToken(t, testSecret, Claims{Role: domain.RolePassenger})
		}},
		{"unknown role", func(t *testing.T) string {
			return signToken(t, testSecret, Claims{Role: "pilot", RegisteredClaims: jwt.RegisteredClaims{Subject: "p1"}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(authEngine(), tt.token(t))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"kind":"unauthorized"`)
		})
	}
}

func TestRequireRole(t *testing.T) {
	engine := authEngine(domain.RoleAdmin, domain.RoleSuperAdmin)

	passenger := signToken(t, testSecret, Claims{Role: domain.RolePassenger, RegisteredClaims: jwt.RegisteredClaims{Subject: "p1"}})
	assert.Equal(t, http.StatusForbidden, get(engine, passenger).Code)

	superadmin := signToken(t, testSecret, Claims{Role: domain.RoleSuperAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "root"}})
	assert.Equal(t, http.StatusOK, get(engine, superadmin).Code)
}

// ──────────────────────────────────────────────
// IDEMPOTENCY
// ──────────────────────────────────────────────

func idempotentEngine(idempotency gin.HandlerFunc, calls *int) *gin.Engine {
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		ctx := WithActor(c.Request.Context(), domain.Actor{ID: "driver-1", Role: domain.RoleDriver})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	engine.Use(idempotency)
	engine.POST("/v1/wallet/withdraw", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"id": "retrait-1"})
	})
	engine.GET("/v1/wallet", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"balance": 700})
	})
	return engine
}

func post(engine *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/withdraw", strings.NewReader(`{"montant":500}`))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

const cacheKey = "idempotency:driver-1:POST:/v1/wallet/withdraw:key-1"

func TestIdempotency_StoresFirstResponse(t *testing.T) {
	client, mock := redismock.NewClientMock()
	calls := 0
	engine := idempotentEngine(IdempotencyMiddleware(client), &calls)

	mock.ExpectGet(cacheKey).RedisNil()
	mock.ExpectSetNX(cacheKey+":lock", "1", idempotencyLockTTL).SetVal(true)
	mock.Regexp().ExpectSet(cacheKey, `.+`, idempotencyTTL).SetVal("OK")
	mock.ExpectDel(cacheKey + ":lock").SetVal(1)

	w := post(engine, "key-1")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	client, mock := redismock.NewClientMock()
	calls := 0
	engine := idempotentEngine(IdempotencyMiddleware(client), &calls)

	cached, err := json.Marshal(cachedResponse{
		StatusCode: http.StatusCreated,
		Body:       json.RawMessage(`{"id":"retrait-1"}`),
		Headers:    http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
	})
	require.NoError(t, err)
	mock.ExpectGet(cacheKey).SetVal(string(cached))

	w := post(engine, "key-1")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 0, calls)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"id":"retrait-1"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ConcurrentRetryConflicts(t *testing.T) {
	client, mock := redismock.NewClientMock()
	calls := 0
	engine := idempotentEngine(IdempotencyMiddleware(client), &calls)

	mock.ExpectGet(cacheKey).RedisNil()
	mock.ExpectSetNX(cacheKey+":lock", "1", idempotencyLockTTL).SetVal(false)

	w := post(engine, "key-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_RedisDownProceeds(t *testing.T) {
	client, mock := redismock.NewClientMock()
	calls := 0
	engine := idempotentEngine(IdempotencyMiddleware(client), &calls)

	mock.ExpectGet(cacheKey).SetErr(errors.New("connection refused"))

	w := post(engine, "key-1")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_SkipsWithoutKeyOrForReads(t *testing.T) {
	client, mock := redismock.NewClientMock()
	calls := 0
	engine := idempotentEngine(IdempotencyMiddleware(client), &calls)

	assert.Equal(t, http.StatusCreated, post(engine, "").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
	req.Header.Set(idempotencyHeader, "key-1")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_NilClientIsNoop(t *testing.T) {
	calls := 0
	engine := idempotentEngine(IdempotencyMiddleware(nil), &calls)

	assert.Equal(t, http.StatusCreated, post(engine, "key-1").Code)
	assert.Equal(t, 1, calls)
}

func TestRequestID_EchoesValidUUID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "6f1c2b9e-4a57-4d0b-9e3a-2f7c8d1e5a10")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "6f1c2b9e-4a57-4d0b-9e3a-2f7c8d1e5a10", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
