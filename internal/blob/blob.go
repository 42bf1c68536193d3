// Package blob uploads book files to object storage and returns their
// public URLs.
//
// Two providers implement Uploader: PresignedUploader asks the Bookly
// server for a presigned PUT into the user-content bucket, FormUploader
// posts to an unsigned multipart upload endpoint. Callers depend only on
// the returned URL.
package blob

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookly/internal/common"
)

// File is an upload payload. Size is -1 when unknown.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Ticket grants a single presigned PUT.
type Ticket struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

const (
	ContentTypePDF = "application/pdf"

	uploadFailedMessage = "Failed to upload file."
)

// IsPDF reports whether contentType names a PDF document.
func IsPDF(contentType string) bool {
	return strings.EqualFold(mediaType(contentType), ContentTypePDF)
}

// IsImage reports whether contentType is an image/* type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType(contentType)), "image/")
}

func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

func uploadError(err error) error {
	return common.Wrap(common.ErrUpload, uploadFailedMessage, err)
}
