package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookreview/internal/session"
)

func TestPageWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		FormError(c, http.StatusBadRequest, "search", "Nothing was entered. Please try again.")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"page":"search","flashes":[],"logged_in":false,"error":"Nothing was entered. Please try again."}`, rec.Body.String())
}

func TestRedirectWithFlashCarriesNotice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := session.NewManager(session.NewMemoryStore(), session.TokenService{Secret: []byte("s")}, time.Hour, session.CookieOptions{}, nil)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/go", func(c *gin.Context) { RedirectWithFlash(c, "/land", FlashWarning, "careful") })
	r.GET("/land", func(c *gin.Context) { Page(c, http.StatusOK, "land", gin.H{"x": 1}) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/go", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/land", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/land", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"page":"land","flashes":[{"category":"warning","message":"careful"}],"logged_in":false,"x":1}`, rec.Body.String())
}
