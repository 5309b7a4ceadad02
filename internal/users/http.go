package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Profiles reads a user by local id.
type Profiles interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// RegisterMe mounts GET /me. userID extracts the caller's local id from the request.
func RegisterMe(rg *gin.RouterGroup, repo Profiles, userID func(*gin.Context) string) {
	rg.GET("/me", func(c *gin.Context) {
		id := strings.TrimSpace(userID(c))
		if id == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing user"})
			return
		}

		u, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "user": u})
	})
}
