package models

import "time"

type Review struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	BookID  int64     `json:"book_id"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment,omitempty"`
	Date    time.Time `json:"date"`
}

// BookReview is a review joined with its author's username, as listed on
// a book page.
type BookReview struct {
	Username string    `json:"username"`
	Rating   int       `json:"rating"`
	Comment  string    `json:"comment"`
	Date     time.Time `json:"-"`
	DateText string    `json:"date"`
}
