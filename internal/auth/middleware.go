package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookreview/internal/session"
)

const CtxUserKey = "auth_user"

// CurrentUser is the identity RequireLogin exposes to handlers.
type CurrentUser struct {
	ID       int64
	Username string
}

// RequireLogin redirects to /login unless the session is authenticated.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := session.FromGin(c)
		if sc == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		id, ok := sc.UserID()
		if !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(CtxUserKey, &CurrentUser{ID: id, Username: sc.Username()})
		c.Next()
	}
}

// GetUser returns the user RequireLogin stored, or nil outside the guard.
func GetUser(c *gin.Context) *CurrentUser {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*CurrentUser)
	return u
}
