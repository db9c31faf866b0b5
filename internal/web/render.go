// Package web renders page view models and redirects for the form-driven
// routes. A page is the JSON data a template would receive: its name, the
// pending flash notices, the login state, and page-specific fields.
package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bookreview/internal/session"
)

const (
	FlashInfo    = "info"
	FlashWarning = "warning"
)

// Page writes a page view model, consuming pending flashes.
func Page(c *gin.Context, status int, name string, fields gin.H) {
	body := gin.H{
		"page":      name,
		"flashes":   []session.Flash{},
		"logged_in": false,
	}
	if sc := session.FromGin(c); sc != nil {
		body["flashes"] = sc.PopFlashes()
		body["logged_in"] = sc.LoggedIn()
		if sc.LoggedIn() {
			body["username"] = sc.Username()
		}
		if err := sc.Save(c.Request.Context()); err != nil {
			Logger(c).WithError(err).Warn("save session")
		}
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// FormError re-renders a form page with a user-facing error message.
func FormError(c *gin.Context, status int, name, message string) {
	Page(c, status, name, gin.H{"error": message})
}

// Redirect saves the session (so queued flashes survive) and redirects.
func Redirect(c *gin.Context, location string) {
	if sc := session.FromGin(c); sc != nil {
		if err := sc.Save(c.Request.Context()); err != nil {
			Logger(c).WithError(err).Error("save session before redirect")
			InternalError(c)
			return
		}
	}
	c.Redirect(http.StatusFound, location)
}

// RedirectWithFlash queues a notice and redirects.
func RedirectWithFlash(c *gin.Context, location, category, message string) {
	if sc := session.FromGin(c); sc != nil {
		sc.AddFlash(category, message)
	}
	Redirect(c, location)
}

func InternalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
}

const ctxLoggerKey = "web.logger"

// WithLogger stores a request-scoped logger for handlers to pick up.
func WithLogger(c *gin.Context, l logrus.FieldLogger) {
	c.Set(ctxLoggerKey, l)
}

// Logger returns the request-scoped logger, or the standard logger when
// the request logging middleware is not installed.
func Logger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(ctxLoggerKey); ok {
		if l, ok := v.(logrus.FieldLogger); ok {
			return l
		}
	}
	return logrus.StandardLogger()
}
