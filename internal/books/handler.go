package books

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookreview/internal/auth"
	"bookreview/internal/web"
	"bookreview/pkg/apperr"
)

const (
	pageSearch  = "search"
	pageResults = "results"
	pageBook    = "book"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

// RegisterRoutes mounts the catalog pages; rg must already require login.
func (h *Handler) RegisterRoutes(rg gin.IRouter) {
	rg.GET("/search", h.searchPage)
	rg.GET("/searchResults", h.searchResults)
	rg.POST("/searchResults", h.searchResults)
	rg.GET("/book/:isbn", h.bookPage)
	rg.POST("/book/:isbn", h.submitReview)
}

func (h *Handler) searchPage(c *gin.Context) {
	web.Page(c, http.StatusOK, pageSearch, nil)
}

func (h *Handler) searchResults(c *gin.Context) {
	query := c.PostForm("search")
	if query == "" {
		query = c.Query("search")
	}

	items, err := h.Service.Search(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			web.FormError(c, http.StatusBadRequest, pageSearch, MsgNothingEntered)
			return
		}
		web.Logger(c).WithError(err).Error("search failed")
		web.InternalError(c)
		return
	}

	if len(items) == 0 {
		web.Page(c, http.StatusOK, pageSearch, gin.H{"error": MsgNoMatches, "search": query, "books": items})
		return
	}
	web.Page(c, http.StatusOK, pageResults, gin.H{"search": query, "books": items})
}

func (h *Handler) bookPage(c *gin.Context) {
	page, err := h.Service.GetBookPage(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Page(c, http.StatusOK, pageBook, gin.H{
		"book":          page.Book,
		"ratings":       page.Ratings,
		"ratings_error": page.RatingsError,
		"reviews":       page.Reviews,
	})
}

func (h *Handler) submitReview(c *gin.Context) {
	u := auth.GetUser(c)
	if u == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	isbn := c.Param("isbn")
	_, err := h.Service.SubmitReview(c.Request.Context(), isbn, u.ID, u.Username, c.PostForm("rating"), c.PostForm("comment"))
	switch {
	case err == nil:
		web.RedirectWithFlash(c, "/book/"+isbn, web.FlashInfo, MsgReviewSubmitted)
	case errors.Is(err, apperr.ErrDuplicate):
		web.RedirectWithFlash(c, "/book/"+isbn, web.FlashWarning, apperr.Message(err, "You already submitted a review for this book"))
	default:
		h.fail(c, err)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": apperr.Message(err, MsgBookNotFound)})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err, MsgInvalidRating)})
	default:
		web.Logger(c).WithError(err).Error("book page failed")
		web.InternalError(c)
	}
}
