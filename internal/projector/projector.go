// Package projector derives the read-side view of books: average ratings,
// trending order and random recommendations. Every function is pure and
// returns fresh values.
package projector

import (
	"math/rand/v2"
	"slices"

	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/models"
)

// RecommendCount is the size of a recommendation list.
const RecommendCount = 10

// AverageRating is the mean score of rs, or 0 when rs is empty.
func AverageRating(rs []models.Rating) float64 {
	if len(rs) == 0 {
		return 0
	}
	sum := 0
	for _, r := range rs {
		sum += r.Score
	}
	return float64(sum) / float64(len(rs))
}

// ProjectBook maps doc to a Book with AverageRating populated.
func ProjectBook(doc docstore.Document) models.Book {
	b := models.BookFromDocument(doc)
	b.AverageRating = AverageRating(b.Ratings)
	return b
}

// Project maps every document of a collection snapshot, keeping its order.
func Project(docs []docstore.Document) []models.Book {
	out := make([]models.Book, 0, len(docs))
	for _, d := range docs {
		out = append(out, ProjectBook(d))
	}
	return out
}

// Trending returns books ordered by average rating, highest first, limited
// to n (n <= 0 means all). Books with equal averages keep their input order.
func Trending(books []models.Book, n int) []models.Book {
	out := slices.Clone(books)
	slices.SortStableFunc(out, func(a, b models.Book) int {
		switch {
		case a.AverageRating > b.AverageRating:
			return -1
		case a.AverageRating < b.AverageRating:
			return 1
		}
		return 0
	})
	return truncate(out, n)
}

// Recommend returns up to n books drawn uniformly at random using a
// Fisher-Yates shuffle. A nil rng uses the global source.
func Recommend(books []models.Book, n int, rng *rand.Rand) []models.Book {
	out := slices.Clone(books)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return truncate(out, n)
}

func truncate(books []models.Book, n int) []models.Book {
	if books == nil {
		books = []models.Book{}
	}
	if n > 0 && len(books) > n {
		return books[:n]
	}
	return books
}
