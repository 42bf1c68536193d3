package models

import (
	"math"

	"github.com/dmitrijs2005/bookly/internal/docstore"
)

// Document field names.
const (
	FieldTitle          = "title"
	FieldAuthor         = "author"
	FieldDescription    = "description"
	FieldCategory       = "category"
	FieldPdfURL         = "pdfUrl"
	FieldCoverURL       = "coverUrl"
	FieldPublisherUID   = "publisherUid"
	FieldPublisherEmail = "publisherEmail"
	FieldRatings        = "ratings"

	FieldText  = "text"
	FieldUser  = "user"
	FieldScore = "score"
)

// BookFromDocument maps a store document to a Book. Missing or mistyped
// fields are left at their zero value; AverageRating is not computed.
func BookFromDocument(doc docstore.Document) Book {
	f := doc.Fields
	return Book{
		ID:             doc.ID,
		Title:          str(f, FieldTitle),
		Author:         str(f, FieldAuthor),
		Description:    str(f, FieldDescription),
		Category:       Category(str(f, FieldCategory)),
		PdfURL:         str(f, FieldPdfURL),
		CoverURL:       str(f, FieldCoverURL),
		PublisherUID:   str(f, FieldPublisherUID),
		PublisherEmail: str(f, FieldPublisherEmail),
		CreatedAt:      doc.CreateTime,
		Ratings:        RatingsFromValue(f[FieldRatings]),
	}
}

// BookFields is the document written when a book is added. Ratings start
// empty.
func BookFields(b Book) docstore.Fields {
	return docstore.Fields{
		FieldTitle:          b.Title,
		FieldAuthor:         b.Author,
		FieldDescription:    b.Description,
		FieldCategory:       string(b.Category),
		FieldPdfURL:         b.PdfURL,
		FieldCoverURL:       b.CoverURL,
		FieldPublisherUID:   b.PublisherUID,
		FieldPublisherEmail: b.PublisherEmail,
		FieldRatings:        RatingsValue(b.Ratings),
	}
}

// RatingsFromValue decodes the stored ratings array, skipping malformed
// entries.
func RatingsFromValue(v any) []Rating {
	arr, _ := v.([]any)
	out := make([]Rating, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		user, ok := m[FieldUser].(string)
		if !ok {
			continue
		}
		score, ok := toInt(m[FieldScore])
		if !ok {
			continue
		}
		out = append(out, Rating{User: user, Score: score})
	}
	return out
}

// RatingValue is the stored form of one rating.
func RatingValue(r Rating) map[string]any {
	return map[string]any{FieldUser: r.User, FieldScore: r.Score}
}

// RatingsValue is the stored form of a ratings array.
func RatingsValue(rs []Rating) []any {
	out := make([]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, RatingValue(r))
	}
	return out
}

// CommentFromDocument maps a comments subcollection document to a Comment.
func CommentFromDocument(bookID string, doc docstore.Document) Comment {
	return Comment{
		ID:        doc.ID,
		BookID:    bookID,
		Text:      str(doc.Fields, FieldText),
		Author:    str(doc.Fields, FieldUser),
		CreatedAt: doc.CreateTime,
	}
}

// CommentFields is the document written for a new comment.
func CommentFields(c Comment) docstore.Fields {
	return docstore.Fields{
		FieldText: c.Text,
		FieldUser: c.Author,
	}
}

func str(f docstore.Fields, key string) string {
	s, _ := f[key].(string)
	return s
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
