package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft-backend/internal/users"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
	CtxUserDBID    = "user_db_id"
)

// UserEnsurer maps an identity to the local users row, creating it on first sight.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, u users.UpsertUser) (string, error)
}

// WithUser resolves the caller to a local user id. The identity comes from the Firebase
// middleware when it ran; otherwise, when allowDevHeader is set, from X-User-Id
// (falling back to "demo-user"). Without either the request is rejected.
func WithUser(userRepo UserEnsurer, allowDevHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		fuid := strings.TrimSpace(c.GetString(CtxFirebaseUID))
		email := c.GetString(CtxEmail)

		if fuid == "" {
			if !allowDevHeader {
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
				c.Abort()
				return
			}
			fuid = strings.TrimSpace(c.GetHeader("X-User-Id"))
			if fuid == "" {
				fuid = "demo-user"
			}
			email = c.GetHeader("X-User-Email")
		}

		uid, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			FirebaseUID: fuid,
			Email:       email,
			DisplayName: c.GetHeader("X-User-Name"),
			PhotoURL:    c.GetHeader("X-User-Photo"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(CtxFirebaseUID, fuid)
		c.Set(CtxUserDBID, uid)
		c.Next()
	}
}

func UserDBID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserDBID))
}

// UserFirebaseUID extracts the Firebase UID from the Gin context
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}
