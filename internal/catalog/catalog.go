// Package catalog moves books and reviews between the database and CSV.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bookreview/internal/books"
	"bookreview/internal/reviews"
	"bookreview/pkg/models"
)

var (
	BookColumns   = []string{"isbn", "title", "author", "year"}
	ReviewColumns = []string{"isbn", "username", "rating", "comment", "date"}
)

// ImportBooks upserts every isbn,title,author,year row of r. Column names
// are matched case-insensitively; rows without isbn or title are skipped.
// It returns the number of books written.
func ImportBooks(ctx context.Context, repo *books.Repo, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return 0, err
	}
	for _, col := range []string{"isbn", "title"} {
		if _, ok := header[col]; !ok {
			return 0, fmt.Errorf("csv header is missing %q", col)
		}
	}

	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		if len(row) == 0 {
			continue
		}

		b := models.Book{
			ISBN:   valueAt(header, row, "isbn"),
			Title:  valueAt(header, row, "title"),
			Author: valueAt(header, row, "author"),
		}
		if b.ISBN == "" || b.Title == "" {
			continue
		}

		if raw := valueAt(header, row, "year"); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				line, _ := cr.FieldPos(0)
				return n, fmt.Errorf("line %d: parse year for %s: %w", line, b.ISBN, err)
			}
			b.Year = year
		}

		if err := repo.Upsert(ctx, &b); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ExportBooks writes the whole catalog with a header row.
func ExportBooks(ctx context.Context, repo *books.Repo, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(BookColumns); err != nil {
		return 0, err
	}

	n := 0
	err := repo.Each(ctx, func(b models.Book) error {
		n++
		return cw.Write([]string{b.ISBN, b.Title, b.Author, strconv.Itoa(b.Year)})
	})
	if err != nil {
		return n, err
	}

	cw.Flush()
	return n, cw.Error()
}

// ExportReviews writes every review keyed by isbn and username, dates in
// RFC 3339.
func ExportReviews(ctx context.Context, repo *reviews.Repo, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReviewColumns); err != nil {
		return 0, err
	}

	n := 0
	err := repo.ListAll(ctx, func(r reviews.ExportRow) error {
		n++
		return cw.Write([]string{
			r.ISBN,
			r.Username,
			strconv.Itoa(r.Rating),
			r.Comment,
			r.Date.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return n, err
	}

	cw.Flush()
	return n, cw.Error()
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
