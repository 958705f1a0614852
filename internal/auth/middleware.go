package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"land-registry/registry-backend/internal/errs"
)

const actorKey = "auth.actor"

// RequireActor rejects requests without a valid bearer token and stores the
// resolved actor on the context.
func RequireActor(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			// Websocket clients cannot set headers from the browser.
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.Response{Error: "missing bearer token", Code: errs.KindUnauthorized})
			return
		}

		actor, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.Response{Error: "invalid token", Code: errs.KindUnauthorized})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole allows only the listed roles through. It must run after
// RequireActor.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.Response{Error: "not authenticated", Code: errs.KindUnauthorized})
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errs.Response{Error: "role not permitted", Code: errs.KindForbidden})
	}
}

// ActorFromContext returns the actor stored by RequireActor.
func ActorFromContext(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
