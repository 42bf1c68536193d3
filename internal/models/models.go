// Package models defines Bookly's domain types and their mapping to and from
// store documents.
package models

import (
	"slices"
	"time"
)

// Category is one of the fixed book categories.
type Category string

const (
	CategoryRomance      Category = "Romance"
	CategoryHorror       Category = "Horror"
	CategoryTranslation  Category = "Translation"
	CategoryShortStories Category = "Short stories"
	CategoryAdventure    Category = "Adventure"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryRomance,
	CategoryHorror,
	CategoryTranslation,
	CategoryShortStories,
	CategoryAdventure,
}

// DefaultCategory is preselected on shelves and in the add-book form.
const DefaultCategory = CategoryRomance

// Valid reports whether c belongs to the fixed set.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Rating is one user's score for a book.
type Rating struct {
	User  string `json:"user"`
	Score int    `json:"score"`
}

// Book is a shared book. AverageRating is derived and never stored.
type Book struct {
	ID             string
	Title          string
	Author         string
	Description    string
	Category       Category
	PdfURL         string
	CoverURL       string
	PublisherUID   string
	PublisherEmail string
	CreatedAt      time.Time
	Ratings        []Rating
	AverageRating  float64
}

// Comment is an immutable remark left on a book.
type Comment struct {
	ID        string
	BookID    string
	Text      string
	Author    string
	CreatedAt time.Time
}

// User is the signed-in identity.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Identity is the key used for ratings and comment authorship: the email,
// or the id for accounts without one.
func (u *User) Identity() string {
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}
