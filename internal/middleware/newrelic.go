package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAnnotate tags the nrgin transaction with the calling actor and
// reports handler errors. It must be registered after nrgin.Middleware.
func NewRelicAnnotate() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}
		if actor, ok := ActorFrom(c.Request.Context()); ok {
			txn.AddAttribute("actor.id", actor.ID)
			txn.AddAttribute("actor.role", string(actor.Role))
		}
		if kind, ok := c.Get(ErrorKindKey); ok {
			txn.AddAttribute("error.kind", kind)
		}
		for _, e := range c.Errors {
			txn.NoticeError(e.Err)
		}
	}
}

// ErrorKindKey is the gin context key handlers use to record the error kind
// of a failed request.
const ErrorKindKey = "error_kind"
