package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

const actorKey = "actor"

// identityMiddleware extracts the actor identity set by the upstream auth
// gateway. The engine trusts these headers; there is no authentication here.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := entity.Actor{
			ID:        c.GetHeader("X-User-ID"),
			Role:      entity.Role(c.GetHeader("X-User-Role")),
			CompanyID: c.GetHeader("X-Company-ID"),
		}

		if actor.ID == "" || actor.CompanyID == "" || !actor.Role.IsValid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid identity headers",
			})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// currentActor retrieves the actor stored by identityMiddleware.
func currentActor(c *gin.Context) entity.Actor {
	actor, _ := c.Get(actorKey)
	return actor.(entity.Actor)
}
