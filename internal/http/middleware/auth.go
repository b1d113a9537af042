// README: Auth middleware verifies the operator's bearer token and stores a session.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/infra"
	"fleetclaim/internal/session"
	"fleetclaim/internal/types"
)

const sessionKey = "session"

// Auth requires "Authorization: Bearer <token>". The verified token becomes the request's
// session, and the same bearer token is forwarded to the dispatch authority.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		tok, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil || tok == nil || tok.UID == "" {
			abortUnauthorized(c, "invalid token")
			return
		}
		sess := session.Session{
			OperatorID:     types.ID(tok.UID),
			OrganizationID: types.ID(tok.OrganizationID()),
			Token:          raw,
			ExpiresAt:      tok.ExpiresAt,
		}
		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(session.With(c.Request.Context(), sess))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": fault.UserMessage(fault.AuthExpired("auth", msg)),
		"kind":  fault.KindAuthExpired,
	})
}

// CallerUID returns the authenticated operator id, or "" outside Auth.
func CallerUID(c *gin.Context) string {
	return CallerSession(c).OperatorID.String()
}

func CallerSession(c *gin.Context) session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return session.Session{}
	}
	s, _ := v.(session.Session)
	return s
}
