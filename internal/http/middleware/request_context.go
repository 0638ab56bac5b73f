package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/journeys-backend/internal/http/response"
	"github.com/yungbote/journeys-backend/internal/pkg/ctxutil"
)

const HeaderUserID = "X-User-Id"

// AttachRequestContext resolves the caller from the X-User-Id header. A
// missing header means anonymous; a malformed one is rejected.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{}
		if raw := strings.TrimSpace(c.GetHeader(HeaderUserID)); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.RespondError(c, http.StatusBadRequest, "invalid_user_id", fmt.Errorf("invalid %s header: %w", HeaderUserID, err))
				c.Abort()
				return
			}
			rd.UserID = id
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// RequireUser rejects anonymous callers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ctxutil.UserID(c.Request.Context()) == uuid.Nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing %s header", HeaderUserID))
			c.Abort()
			return
		}
		c.Next()
	}
}
