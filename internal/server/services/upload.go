package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/logging"
)

// Presigner signs a single upload into object storage.
type Presigner interface {
	Presign(ctx context.Context, name, contentType string) (blob.Ticket, error)
}

// UploadService hands out presigned upload tickets for book content and
// cover images.
type UploadService struct {
	presigner Presigner
	log       logging.Logger
}

func NewUploadService(p Presigner, log logging.Logger) *UploadService {
	if log == nil {
		log = logging.Nop()
	}
	return &UploadService{presigner: p, log: log}
}

// CreateUpload validates the file description and signs a PUT for it.
func (s *UploadService) CreateUpload(ctx context.Context, userID, name, contentType string) (blob.Ticket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return blob.Ticket{}, common.Validation("File name is required.")
	}
	if !blob.IsPDF(contentType) && !blob.IsImage(contentType) {
		return blob.Ticket{}, common.Validation("Only PDF files and images can be uploaded.")
	}

	t, err := s.presigner.Presign(ctx, name, contentType)
	if err != nil {
		s.log.Error(ctx, "presign failed", "user", userID, "name", name, "error", err)
		return blob.Ticket{}, common.Wrap(common.ErrUpload, "Failed to upload file.", err)
	}
	s.log.Info(ctx, "upload ticket issued", "user", userID, "key", t.Key)
	return t, nil
}
