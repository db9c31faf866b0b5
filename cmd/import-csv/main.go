package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"bookreview/internal/books"
	"bookreview/internal/catalog"
	"bookreview/pkg/database"
	"bookreview/pkg/utils"
)

func main() {
	booksIn := flag.String("books", "data/books.csv", "input CSV path for books (isbn,title,author,year)")
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

	f, err := os.Open(*booksIn)
	if err != nil {
		logger.WithError(err).Fatal("open input")
	}
	defer f.Close()

	n, err := catalog.ImportBooks(ctx, books.NewRepo(db), f)
	if err != nil {
		logger.WithError(err).WithField("imported", n).Fatal("import books failed")
	}
	logger.WithFields(logrus.Fields{"books": n, "path": *booksIn}).Info("imported catalog")
}
