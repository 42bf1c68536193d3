package api

import (
	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/docstore"
)

type Empty struct{}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type PingResponse struct {
	Status string `json:"status"`
}

type GetDocumentRequest struct {
	Path string `json:"path"`
}

type DocumentResponse struct {
	Document docstore.Document `json:"document"`
}

type AddDocumentRequest struct {
	Collection string          `json:"collection"`
	Fields     docstore.Fields `json:"fields"`
}

type AddDocumentResponse struct {
	ID string `json:"id"`
}

type UpdateDocumentRequest struct {
	Path  string         `json:"path"`
	Patch docstore.Patch `json:"patch"`
}

type CreateUploadRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

type CreateUploadResponse struct {
	Ticket blob.Ticket `json:"ticket"`
}

// SubscribeRequest targets a collection (with Query) or, when Document is
// set, a single document path.
type SubscribeRequest struct {
	Collection string         `json:"collection,omitempty"`
	Query      docstore.Query `json:"query"`
	Document   string         `json:"document,omitempty"`
}

type SnapshotMessage struct {
	Snapshot docstore.Snapshot `json:"snapshot"`
}
