package catalog

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookreview/internal/books"
	"bookreview/internal/reviews"
	"bookreview/internal/testutil"
)

func TestImportBooksUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := books.NewRepo(db)
	ctx := context.Background()

	in := "ISBN,Title,Author,Year\n" +
		"0380795272,Krondor: The Betrayal,Raymond E. Feist,1998\n" +
		"1416949658,The Dark Is Rising,Susan Cooper,1973\n" +
		",No ISBN,Nobody,2000\n"
	n, err := ImportBooks(ctx, repo, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ImportBooks(ctx, repo, strings.NewReader("isbn,title,author,year\n0380795272,Krondor,R. Feist,1999\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, testutil.CountRows(t, db, "books"))

	b, err := repo.GetByISBN(ctx, "0380795272")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "Krondor", b.Title)
	assert.Equal(t, 1999, b.Year)
}

func TestImportBooksRejectsBadInput(t *testing.T) {
	repo := books.NewRepo(testutil.NewDB(t))
	ctx := context.Background()

	_, err := ImportBooks(ctx, repo, strings.NewReader(""))
	assert.Error(t, err)

	_, err = ImportBooks(ctx, repo, strings.NewReader("title,author\nx,y\n"))
	assert.ErrorContains(t, err, `"isbn"`)

	_, err = ImportBooks(ctx, repo, strings.NewReader("isbn,title,author,year\n1,A,B,nineteen\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestExportBooksAndReviews(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.User("alice")
	krondor := testutil.Book("0380795272", "Krondor: The Betrayal", "Raymond E. Feist", 1998)
	review := testutil.Review(4, "Great, really")
	review.Value().Date = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	testutil.Insert(t, db, alice.With(review), krondor.With(review), testutil.Book("1416949658", "The Dark Is Rising", "Susan Cooper", 1973))

	var out bytes.Buffer
	n, err := ExportBooks(context.Background(), books.NewRepo(db), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t,
		"isbn,title,author,year\n"+
			"0380795272,Krondor: The Betrayal,Raymond E. Feist,1998\n"+
			"1416949658,The Dark Is Rising,Susan Cooper,1973\n",
		out.String())

	out.Reset()
	n, err = ExportReviews(context.Background(), reviews.NewRepo(db), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t,
		"isbn,username,rating,comment,date\n"+
			"0380795272,alice,4,\"Great, really\",2024-03-05T14:07:09Z\n",
		out.String())
}
