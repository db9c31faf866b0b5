package ratings

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bookreview/pkg/models"
)

// LoadFixtures reads a JSON array of rating summaries, keyed by isbn.
func LoadFixtures(r io.Reader) (map[string]models.RatingSummary, error) {
	var list []models.RatingSummary
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode rating fixtures: %w", err)
	}
	out := make(map[string]models.RatingSummary, len(list))
	for _, s := range list {
		if s.ISBN == "" {
			continue
		}
		out[s.ISBN] = s
	}
	return out, nil
}

type wireBook struct {
	ISBN                 string `json:"isbn"`
	ISBN13               string `json:"isbn13"`
	RatingsCount         int    `json:"ratings_count"`
	ReviewsCount         int    `json:"reviews_count"`
	TextReviewsCount     int    `json:"text_reviews_count"`
	WorkRatingsCount     int    `json:"work_ratings_count"`
	WorkReviewsCount     int    `json:"work_reviews_count"`
	WorkTextReviewsCount int    `json:"work_text_reviews_count"`
	AverageRating        string `json:"average_rating"`
}

// StubRouter serves the review_counts endpoint from fixtures so the app can
// run without the real service. A request must carry key when key is set.
func StubRouter(fixtures map[string]models.RatingSummary, key string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(reviewCounts, func(c *gin.Context) {
		if key != "" && c.Query("key") != key {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
			return
		}

		var books []wireBook
		for _, isbn := range strings.Split(c.Query("isbns"), ",") {
			s, ok := fixtures[strings.TrimSpace(isbn)]
			if !ok {
				continue
			}
			books = append(books, wireBook{
				ISBN:                 s.ISBN,
				ISBN13:               s.ISBN13,
				RatingsCount:         s.RatingsCount,
				ReviewsCount:         s.ReviewsCount,
				TextReviewsCount:     s.TextReviewsCount,
				WorkRatingsCount:     s.WorkRatingsCount,
				WorkReviewsCount:     s.WorkReviewsCount,
				WorkTextReviewsCount: s.WorkTextReviewsCount,
				AverageRating:        strconv.FormatFloat(s.AverageRating, 'f', 2, 64),
			})
		}
		if len(books) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no books found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"books": books})
	})
	return r
}
