package server

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookreview/internal/auth"
	"bookreview/internal/books"
	"bookreview/internal/live"
	"bookreview/internal/ratings"
	"bookreview/internal/reviews"
	"bookreview/internal/session"
	"bookreview/internal/testutil"
)

const harryISBN = "0439708184"

type app struct {
	srv    *httptest.Server
	client *http.Client
	t      *testing.T
}

func newApp(t *testing.T, ratingsHandler http.HandlerFunc) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	rs := httptest.NewServer(ratingsHandler)
	t.Cleanup(rs.Close)

	db := testutil.NewDB(t)
	testutil.Insert(t, db,
		testutil.Book(harryISBN, "Harry Potter and the Sorcerer's Stone", "J.K. Rowling", 1997),
		testutil.Book("0380795272", "Krondor: The Betrayal", "Raymond E. Feist", 1998),
	)

	authSvc := auth.NewService(auth.NewRepo(db), logger)
	authSvc.Cost = bcrypt.MinCost
	hub := live.NewHub(0, logger)

	router := NewRouter(Deps{
		DB: db,
		Sessions: session.NewManager(
			session.NewMemoryStore(),
			session.TokenService{Secret: []byte("test"), Issuer: "bookreview"},
			time.Hour, session.CookieOptions{}, logger,
		),
		Auth:   authSvc,
		Books:  books.NewService(books.NewRepo(db), reviews.NewRepo(db), ratings.NewClient(rs.URL, "key", time.Second), hub, logger),
		Hub:    hub,
		Logger: logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &app{
		srv: srv,
		t:   t,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func goodRatings(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"books":[{"isbn":"0439708184","reviews_count":42,"ratings_count":40,"average_rating":"4.47"}]}`))
}

type page struct {
	Status   int
	Location string
	Body     map[string]any
}

func (a *app) do(req *http.Request) page {
	a.t.Helper()
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	p := page{Status: resp.StatusCode, Location: resp.Header.Get("Location")}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&p.Body))
	}
	return p
}

func (a *app) get(path string) page {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.srv.URL+path, nil)
	require.NoError(a.t, err)
	return a.do(req)
}

func (a *app) post(path string, form url.Values) page {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func (a *app) register(username, password, confirm string) page {
	return a.post("/register", url.Values{"username": {username}, "password": {password}, "confirmPassword": {confirm}})
}

func (a *app) login(username, password string) page {
	return a.post("/login", url.Values{"username": {username}, "password": {password}})
}

func flashes(p page) []string {
	raw, _ := p.Body["flashes"].([]any)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		m, _ := f.(map[string]any)
		out = append(out, m["category"].(string)+": "+m["message"].(string))
	}
	return out
}

func TestGuardRedirectsAnonymousUsers(t *testing.T) {
	a := newApp(t, goodRatings)

	for _, path := range []string{"/search", "/searchResults?search=harry", "/book/" + harryISBN, "/logout"} {
		p := a.get(path)
		assert.Equal(t, http.StatusFound, p.Status, path)
		assert.Equal(t, "/login", p.Location, path)
	}

	p := a.post("/book/"+harryISBN, url.Values{"rating": {"5"}})
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/login", p.Location)
}

func TestRegisterLoginLogout(t *testing.T) {
	a := newApp(t, goodRatings)

	p := a.register("alice", "pw123", "pw123")
	require.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/login", p.Location)

	p = a.get("/login")
	assert.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, []string{"info: Account created"}, flashes(p))

	p = a.register("alice", "pw123", "pw123")
	assert.Equal(t, http.StatusConflict, p.Status)
	assert.Equal(t, "Username already exists. Please try again.", p.Body["error"])

	p = a.register("bob", "pw123", "pw124")
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, auth.MsgPasswordMismatch, p.Body["error"])

	p = a.login("alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, p.Status)
	assert.Equal(t, auth.MsgInvalidCredentials, p.Body["error"])
	assert.Equal(t, http.StatusFound, a.get("/search").Status)

	p = a.login("nobody", "pw123")
	assert.Equal(t, http.StatusUnauthorized, p.Status)
	assert.Equal(t, auth.MsgInvalidCredentials, p.Body["error"])

	p = a.login("", "pw123")
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, auth.MsgNoUsername, p.Body["error"])

	p = a.login("alice", "pw123")
	require.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/search", p.Location)

	p = a.get("/search")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, true, p.Body["logged_in"])
	assert.Equal(t, "alice", p.Body["username"])
	assert.Equal(t, []string{"info: Login successful."}, flashes(p))

	p = a.get("/logout")
	require.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/", p.Location)

	p = a.get("/")
	assert.Equal(t, false, p.Body["logged_in"])
	assert.Equal(t, []string{"info: Logged out of account."}, flashes(p))

	p = a.get("/search")
	assert.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, "/login", p.Location)
}

func TestLoginAndRegisterPagesClearIdentity(t *testing.T) {
	a := newApp(t, goodRatings)
	require.Equal(t, http.StatusFound, a.register("alice", "pw123", "pw123").Status)

	for _, path := range []string{"/login", "/register"} {
		require.Equal(t, http.StatusFound, a.login("alice", "pw123").Status)
		require.Equal(t, http.StatusOK, a.get("/search").Status)

		p := a.get(path)
		require.Equal(t, http.StatusOK, p.Status, path)
		assert.Equal(t, false, p.Body["logged_in"], path)

		p = a.get("/search")
		assert.Equal(t, http.StatusFound, p.Status, "after GET "+path)
		assert.Equal(t, "/login", p.Location, "after GET "+path)
	}
}

func TestSearchPages(t *testing.T) {
	a := newApp(t, goodRatings)
	a.register("alice", "pw123", "pw123")
	a.login("alice", "pw123")

	p := a.post("/searchResults", url.Values{"search": {"   "}})
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, books.MsgNothingEntered, p.Body["error"])

	p = a.get("/searchResults?search=harry")
	require.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, "results", p.Body["page"])
	list, _ := p.Body["books"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, harryISBN, list[0].(map[string]any)["isbn"])

	p = a.post("/searchResults", url.Values{"search": {"zzz"}})
	require.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, books.MsgNoMatches, p.Body["error"])
	assert.Empty(t, p.Body["books"])
}

func TestBookPageAndReviews(t *testing.T) {
	a := newApp(t, goodRatings)
	a.register("alice", "pw123", "pw123")
	a.login("alice", "pw123")
	bookURL := "/book/" + harryISBN

	p := a.get("/book/9999999999")
	assert.Equal(t, http.StatusNotFound, p.Status)

	p = a.get(bookURL)
	require.Equal(t, http.StatusOK, p.Status)
	ratingsBody, _ := p.Body["ratings"].(map[string]any)
	require.NotNil(t, ratingsBody)
	assert.EqualValues(t, 42, ratingsBody["reviews_count"])
	assert.InDelta(t, 4.47, ratingsBody["average_rating"], 1e-9)
	assert.Empty(t, p.Body["reviews"])

	p = a.post(bookURL, url.Values{"rating": {"9"}})
	assert.Equal(t, http.StatusBadRequest, p.Status)

	p = a.post(bookURL, url.Values{"rating": {"5"}, "comment": {"Loved it"}})
	require.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, bookURL, p.Location)

	p = a.get(bookURL)
	assert.Equal(t, []string{"info: Review submitted successfully."}, flashes(p))
	list, _ := p.Body["reviews"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].(map[string]any)["username"])
	assert.Equal(t, "Loved it", list[0].(map[string]any)["comment"])

	p = a.post(bookURL, url.Values{"rating": {"1"}, "comment": {"second thoughts"}})
	require.Equal(t, http.StatusFound, p.Status)
	assert.Equal(t, bookURL, p.Location)

	p = a.get(bookURL)
	assert.Equal(t, []string{"warning: You already submitted a review for this book"}, flashes(p))
	list, _ = p.Body["reviews"].([]any)
	assert.Len(t, list, 1)
}

func TestBookPageSurvivesRatingOutage(t *testing.T) {
	a := newApp(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	a.register("alice", "pw123", "pw123")
	a.login("alice", "pw123")

	p := a.get("/book/" + harryISBN)
	require.Equal(t, http.StatusOK, p.Status)
	assert.Nil(t, p.Body["ratings"])
	assert.Equal(t, books.MsgRatingUnavailable, p.Body["ratings_error"])
}

func TestLiveFeedRequiresLoginAndStreamsReviews(t *testing.T) {
	a := newApp(t, goodRatings)
	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/book/" + harryISBN + "/live"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	a.register("alice", "pw123", "pw123")
	a.login("alice", "pw123")

	dialer := *websocket.DefaultDialer
	dialer.Jar = a.client.Jar
	ws, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	var ev live.Event
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, live.EventViewerJoin, ev.Type)
	assert.Equal(t, "alice", ev.User)

	p := a.post("/book/"+harryISBN, url.Values{"rating": {"4"}, "comment": {"fun"}})
	require.Equal(t, http.StatusFound, p.Status)

	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, live.EventReviewCreated, ev.Type)
	assert.Equal(t, 4, ev.Rating)
	assert.Equal(t, "fun", ev.Comment)
}

func TestHealthAndRequestID(t *testing.T) {
	a := newApp(t, goodRatings)

	resp, err := a.client.Get(a.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	p := a.get("/ready")
	assert.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, "ready", p.Body["status"])
}
