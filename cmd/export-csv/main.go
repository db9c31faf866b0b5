package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"bookreview/internal/books"
	"bookreview/internal/catalog"
	"bookreview/internal/reviews"
	"bookreview/pkg/database"
	"bookreview/pkg/utils"
)

func main() {
	var (
		booksOut   = flag.String("books", "data/books.csv", "output CSV path for books")
		reviewsOut = flag.String("reviews", "data/reviews.csv", "output CSV path for reviews")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dbURL, err := utils.LoadDatabaseURL()
	if err != nil {
		logger.WithError(err).Fatal("config")
	}
	dbCfg, err := database.ParseURL(dbURL)
	if err != nil {
		logger.WithError(err).Fatal("invalid DATABASE_URL")
	}
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(ctx, db, dbCfg.Driver); err != nil {
		logger.WithError(err).Fatal("db migrate failed")
	}

	nBooks, err := writeFile(*booksOut, func(w io.Writer) (int, error) {
		return catalog.ExportBooks(ctx, books.NewRepo(db), w)
	})
	if err != nil {
		logger.WithError(err).Fatal("export books failed")
	}

	nReviews, err := writeFile(*reviewsOut, func(w io.Writer) (int, error) {
		return catalog.ExportReviews(ctx, reviews.NewRepo(db), w)
	})
	if err != nil {
		logger.WithError(err).Fatal("export reviews failed")
	}

	logger.WithFields(logrus.Fields{
		"books":        nBooks,
		"reviews":      nReviews,
		"books_path":   *booksOut,
		"reviews_path": *reviewsOut,
	}).Info("exported catalog")
}

func writeFile(path string, fn func(io.Writer) (int, error)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
