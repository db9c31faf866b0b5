package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"bookreview/internal/ratings"
)

func main() {
	var (
		addr     = flag.String("addr", ":9000", "listen address")
		dataPath = flag.String("data", "data/ratings.json", "JSON array of rating summaries")
		key      = flag.String("key", os.Getenv("RATINGS_API_KEY"), "required api key; empty accepts any")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	f, err := os.Open(*dataPath)
	if err != nil {
		logger.WithError(err).Fatal("open rating fixtures")
	}
	fixtures, err := ratings.LoadFixtures(f)
	_ = f.Close()
	if err != nil {
		logger.WithError(err).Fatal("load rating fixtures")
	}

	logger.WithFields(logrus.Fields{"addr": *addr, "books": len(fixtures)}).Info("ratings stub listening")
	if err := ratings.StubRouter(fixtures, *key).Run(*addr); err != nil {
		logger.WithError(err).Fatal("ratings stub stopped")
	}
}
