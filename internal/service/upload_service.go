package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
)

// referenceURLTTL bounds how long a signed reference-image URL stays valid
const referenceURLTTL = 15 * time.Minute

// UploadService handles protagonist reference-image uploads. A reference
// image is optional on story creation; when present its URL is passed to
// every illustration call so the hero looks the same in each section.
type UploadService struct {
	r2Client client.StorageClient
}

func NewUploadService(r2Client client.StorageClient) *UploadService {
	return &UploadService{
		r2Client: r2Client,
	}
}

// UploadReference uploads a reference image and returns its durable URL
func (s *UploadService) UploadReference(ctx context.Context, ownerID string, file io.Reader, contentType string) (*model.UploadReferenceResponse, error) {
	if s.r2Client == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	refID := uuid.New().String()
	fileURL, err := s.r2Client.Upload(ctx, client.ReferenceImageKey(ownerID, refID), file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload reference image: %w", err)
	}

	return &model.UploadReferenceResponse{
		ID:        refID,
		FileURL:   fileURL,
		CreatedAt: time.Now(),
	}, nil
}

// DeleteReference removes a previously uploaded reference image
func (s *UploadService) DeleteReference(ctx context.Context, ownerID, refID string) error {
	if s.r2Client == nil {
		return fmt.Errorf("storage not configured")
	}
	return s.r2Client.Delete(ctx, client.ReferenceImageKey(ownerID, refID))
}

// GetReferenceURL returns a short-lived signed URL for one of the owner's
// reference images. The owner-scoped key means a caller can only ever sign
// its own uploads.
func (s *UploadService) GetReferenceURL(ctx context.Context, ownerID, refID string) (*model.ReferenceURLResponse, error) {
	if s.r2Client == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	url, err := s.r2Client.GetSignedURL(ctx, client.ReferenceImageKey(ownerID, refID), referenceURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign reference URL: %w", err)
	}

	return &model.ReferenceURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(referenceURLTTL),
	}, nil
}
