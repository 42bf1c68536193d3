package docstore

import (
	"strings"

	"github.com/dmitrijs2005/bookly/internal/common"
)

// Collection and field names used by Bookly.
const (
	BooksCollection    = "books"
	CommentsCollection = "comments"
)

func segments(path string) ([]string, bool) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return nil, false
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// IsCollectionPath reports whether path addresses a collection.
func IsCollectionPath(path string) bool {
	parts, ok := segments(path)
	return ok && len(parts)%2 == 1
}

// IsDocumentPath reports whether path addresses a document.
func IsDocumentPath(path string) bool {
	parts, ok := segments(path)
	return ok && len(parts)%2 == 0
}

// SplitDocumentPath returns the parent collection and id of docPath.
func SplitDocumentPath(docPath string) (collection, id string, err error) {
	if !IsDocumentPath(docPath) {
		return "", "", common.Validation("Invalid document path.")
	}
	i := strings.LastIndex(docPath, "/")
	return docPath[:i], docPath[i+1:], nil
}

// DocumentPath joins a collection path and a document id.
func DocumentPath(collection, id string) string {
	return collection + "/" + id
}

// BookPath is the document path of a book.
func BookPath(bookID string) string {
	return DocumentPath(BooksCollection, bookID)
}

// CommentsPath is the comments subcollection of a book.
func CommentsPath(bookID string) string {
	return BookPath(bookID) + "/" + CommentsCollection
}

func validateCollection(path string) error {
	if !IsCollectionPath(path) {
		return common.Validation("Invalid collection path.")
	}
	return nil
}
