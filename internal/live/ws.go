package live

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bookreview/internal/auth"
)

// NewUpgrader accepts same-origin requests, requests without an Origin
// header, and the listed origins.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
		},
	}
}

// Handler serves GET /book/:isbn/live. It must sit behind auth.RequireLogin.
func Handler(hub *Hub, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		isbn := strings.TrimSpace(c.Param("isbn"))
		if isbn == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "isbn is required"})
			return
		}

		user := "anon"
		if u := auth.GetUser(c); u != nil {
			user = u.Username
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the error response.
			return
		}

		if err := hub.Join(isbn, ws, user); err != nil {
			_ = ws.Close()
			return
		}

		// Viewers only listen; reading keeps control frames flowing and
		// notices the close.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Leave(isbn, ws)
	}
}
