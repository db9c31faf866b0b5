package books

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"bookreview/internal/live"
	"bookreview/internal/reviews"
	"bookreview/pkg/apperr"
	"bookreview/pkg/models"
)

const (
	MsgNothingEntered    = "Nothing was entered. Please try again."
	MsgNoMatches         = "Sorry, no books matched this search."
	MsgBookNotFound      = "Sorry, that book is not in the catalog."
	MsgInvalidRating     = "Please choose a rating from 1 to 5."
	MsgReviewSubmitted   = "Review submitted successfully."
	MsgRatingUnavailable = "Rating data is currently unavailable."
)

// RatingLookup fetches crowd-sourced aggregates for an isbn.
type RatingLookup interface {
	Lookup(ctx context.Context, isbn string) (*models.RatingSummary, error)
}

// Publisher receives every successfully stored review.
type Publisher interface {
	Publish(ev live.Event)
}

type Service struct {
	Books     *Repo
	Reviews   *reviews.Repo
	Ratings   RatingLookup
	Publisher Publisher
	Logger    logrus.FieldLogger
}

func NewService(books *Repo, revs *reviews.Repo, ratings RatingLookup, pub Publisher, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{Books: books, Reviews: revs, Ratings: ratings, Publisher: pub, Logger: logger}
}

// Search returns up to SearchLimit books. An empty result is not an error.
func (s *Service) Search(ctx context.Context, query string) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation(MsgNothingEntered)
	}
	return s.Books.Search(ctx, SearchQuery{Q: query, Limit: SearchLimit})
}

// BookPage is everything the book page shows. Ratings is nil when the
// rating service could not be reached; RatingsError then says so.
type BookPage struct {
	Book         models.Book           `json:"book"`
	Ratings      *models.RatingSummary `json:"ratings"`
	RatingsError string                `json:"ratings_error,omitempty"`
	Reviews      []models.BookReview   `json:"reviews"`
}

func (s *Service) GetBookPage(ctx context.Context, isbn string) (*BookPage, error) {
	b, err := s.lookupBook(ctx, isbn)
	if err != nil {
		return nil, err
	}

	page := &BookPage{Book: *b}

	if s.Ratings != nil {
		summary, err := s.Ratings.Lookup(ctx, b.ISBN)
		if err != nil {
			s.Logger.WithError(err).WithField("isbn", b.ISBN).Warn("rating lookup failed")
			page.RatingsError = MsgRatingUnavailable
		} else {
			page.Ratings = summary
		}
	} else {
		page.RatingsError = MsgRatingUnavailable
	}

	page.Reviews, err = s.Reviews.ListByBook(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// SubmitReview stores the user's only review of the book. rating is the
// raw form value.
func (s *Service) SubmitReview(ctx context.Context, isbn string, userID int64, username, rating, comment string) (*models.Review, error) {
	b, err := s.lookupBook(ctx, isbn)
	if err != nil {
		return nil, err
	}

	stars, err := strconv.Atoi(strings.TrimSpace(rating))
	if err != nil || stars < 1 || stars > 5 {
		return nil, apperr.Validation(MsgInvalidRating)
	}

	rv := &models.Review{
		UserID:  userID,
		BookID:  b.ID,
		Rating:  stars,
		Comment: strings.TrimSpace(comment),
	}
	if err := s.Reviews.Create(ctx, rv); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("submit review: %w", err)
	}

	s.Logger.WithFields(logrus.Fields{"isbn": b.ISBN, "user_id": userID, "rating": stars}).Info("review submitted")

	if s.Publisher != nil {
		s.Publisher.Publish(live.Event{
			Type:    live.EventReviewCreated,
			ISBN:    b.ISBN,
			User:    username,
			Rating:  rv.Rating,
			Comment: rv.Comment,
			Date:    rv.Date.Format(reviews.DateLayout),
		})
	}
	return rv, nil
}

func (s *Service) lookupBook(ctx context.Context, isbn string) (*models.Book, error) {
	isbn = strings.TrimSpace(isbn)
	b, err := s.Books.GetByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.NotFound(MsgBookNotFound)
	}
	return b, nil
}
