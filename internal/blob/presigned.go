package blob

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/bookly/internal/netx"
)

// Ticketer hands out upload tickets; the gRPC client implements it.
type Ticketer interface {
	CreateUpload(ctx context.Context, name, contentType string) (Ticket, error)
}

// PresignedUploader uploads through tickets issued by the server.
type PresignedUploader struct {
	tickets Ticketer
	client  *http.Client
}

func NewPresignedUploader(tickets Ticketer, client *http.Client) *PresignedUploader {
	return &PresignedUploader{tickets: tickets, client: client}
}

func (u *PresignedUploader) Upload(ctx context.Context, f File) (string, error) {
	t, err := u.tickets.CreateUpload(ctx, f.Name, f.ContentType)
	if err != nil {
		return "", uploadError(err)
	}
	if err := netx.PutPresigned(ctx, u.client, t.UploadURL, f.ContentType, f.Body, f.Size); err != nil {
		return "", uploadError(err)
	}
	return t.PublicURL, nil
}
