package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
)

type actorContextKey struct{}

// Claims are the JWT claims issued by the auth service.
type Claims struct {
	Role    domain.Role `json:"role"`
	AdminID string      `json:"admin_id,omitempty"`
	jwt.RegisteredClaims
}

// WithActor returns a context carrying the calling actor.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFrom returns the actor stored by Auth.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Auth validates the HS256 bearer token and attaches the actor it names to
// the request context.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "authorization required")
			return
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		ctx := WithActor(c.Request.Context(), actor)
		ctx = logger.ContextWithFields(ctx,
			zap.String("actor_id", actor.ID),
			zap.String("actor_role", string(actor.Role)),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorFromClaims(claims *Claims) (domain.Actor, error) {
	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token has no subject")
	}
	if !claims.Role.Valid() {
		return domain.Actor{}, errors.New("token has an unknown role")
	}

	actor := domain.Actor{ID: claims.Subject, Role: claims.Role, AdminID: claims.AdminID}
	if actor.Role == domain.RoleAdmin {
		actor.AdminID = actor.ID
	}
	return actor, nil
}

// RequireRole rejects actors whose role is not listed.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c.Request.Context())
		if !ok {
			abortUnauthorized(c, "authorization required")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"kind":   "forbidden",
			"detail": "insufficient permissions",
		})
	}
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"kind":   "unauthorized",
		"detail": detail,
	})
}
