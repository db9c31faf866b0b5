// Package ratings fetches aggregate rating counts for an ISBN from a
// Goodreads-style review_counts endpoint.
package ratings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookreview/pkg/models"
)

const (
	DefaultBaseURL = "https://www.goodreads.com"
	reviewCounts   = "/book/review_counts.json"
	maxBodyBytes   = 1 << 20
)

// ErrNoData means the service answered but had nothing for the isbn.
var ErrNoData = errors.New("ratings: no data for isbn")

// StatusError is returned for any non-200 answer.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ratings: unexpected status %d", e.Code)
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type countsResponse struct {
	Books []struct {
		ISBN                 string    `json:"isbn"`
		ISBN13               string    `json:"isbn13"`
		RatingsCount         int       `json:"ratings_count"`
		ReviewsCount         int       `json:"reviews_count"`
		TextReviewsCount     int       `json:"text_reviews_count"`
		WorkRatingsCount     int       `json:"work_ratings_count"`
		WorkReviewsCount     int       `json:"work_reviews_count"`
		WorkTextReviewsCount int       `json:"work_text_reviews_count"`
		AverageRating        flexFloat `json:"average_rating"`
	} `json:"books"`
}

// Lookup returns the aggregate counts for isbn. The request is bound to ctx
// as well as the client timeout.
func (c *Client) Lookup(ctx context.Context, isbn string) (*models.RatingSummary, error) {
	q := url.Values{}
	q.Set("key", c.APIKey)
	q.Set("isbns", isbn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+reviewCounts+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build ratings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ratings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var body countsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ratings response: %w", err)
	}
	if len(body.Books) == 0 {
		return nil, ErrNoData
	}

	b := body.Books[0]
	return &models.RatingSummary{
		ISBN:                 b.ISBN,
		ISBN13:               b.ISBN13,
		RatingsCount:         b.RatingsCount,
		ReviewsCount:         b.ReviewsCount,
		TextReviewsCount:     b.TextReviewsCount,
		WorkRatingsCount:     b.WorkRatingsCount,
		WorkReviewsCount:     b.WorkReviewsCount,
		WorkTextReviewsCount: b.WorkTextReviewsCount,
		AverageRating:        float64(b.AverageRating),
	}, nil
}

// flexFloat accepts both "4.22" and 4.22.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("average_rating %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}
