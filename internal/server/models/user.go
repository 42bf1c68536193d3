// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a stored account. Accounts created through Google sign-in have
// no password: Salt and PasswordHash are empty and GoogleSubject is set.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	PhotoURL      string
	GoogleSubject string
	Salt          []byte
	PasswordHash  []byte
	CreatedAt     time.Time
}
