package models

// RatingSummary is the crowd-sourced aggregate returned by the rating
// service for one ISBN.
type RatingSummary struct {
	ISBN                 string  `json:"isbn"`
	ISBN13               string  `json:"isbn13,omitempty"`
	RatingsCount         int     `json:"ratings_count"`
	ReviewsCount         int     `json:"reviews_count"`
	TextReviewsCount     int     `json:"text_reviews_count"`
	WorkRatingsCount     int     `json:"work_ratings_count"`
	WorkReviewsCount     int     `json:"work_reviews_count"`
	WorkTextReviewsCount int     `json:"work_text_reviews_count"`
	AverageRating        float64 `json:"average_rating"`
}
