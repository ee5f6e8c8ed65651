package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"guardians/internal/domain"
	"guardians/internal/platform/logger"
)

type UploadRequest struct {
	FileName    string
	ContentType string
	Title       string
	Description string
	Body        io.Reader
}

type UploadResult struct {
	Content  domain.PinnedObject    `json:"content"`
	Metadata domain.PinnedObject    `json:"metadata"`
	Document domain.ContentMetadata `json:"document"`
}

// ContentUploader pins a file, then pins the metadata document describing it.
type ContentUploader struct {
	Storage domain.ContentStorage
	Clock   func() time.Time
	Logger  *logger.Logger
}

func (u *ContentUploader) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if u == nil || u.Storage == nil {
		return UploadResult{}, fmt.Errorf("%w: content storage not configured", domain.ErrNotReady)
	}
	if req.Body == nil {
		return UploadResult{}, fmt.Errorf("%w: upload body is required", domain.ErrValidation)
	}
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return UploadResult{}, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = domain.DefaultContentType
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = name
	}

	content, err := u.Storage.PinFile(ctx, name, contentType, req.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("pin content: %w", err)
	}
	now := time.Now
	if u.Clock != nil {
		now = u.Clock
	}
	createdAt := now().UTC()
	doc := domain.ContentMetadata{
		Name:        title,
		Description: strings.TrimSpace(req.Description),
		Image:       content.URL,
		Attributes: []domain.MetadataAttribute{
			{TraitType: domain.TraitContentCID, Value: content.Fingerprint},
			{TraitType: domain.TraitContentType, Value: contentType},
			{TraitType: domain.TraitAttestationTime, Value: createdAt.Format(time.RFC3339)},
		},
		Properties: domain.MetadataProperties{
			Files:      []domain.MetadataFile{{URI: content.URL, Type: contentType}},
			ContentCID: content.Fingerprint,
			CreatedAt:  createdAt,
		},
	}
	meta, err := u.Storage.PinJSON(ctx, name+".metadata.json", doc)
	if err != nil {
		return UploadResult{}, fmt.Errorf("pin metadata: %w", err)
	}
	u.Logger.Info("content pinned", "content_fingerprint", content.Fingerprint, "metadata_fingerprint", meta.Fingerprint, "size", content.Size)
	return UploadResult{Content: content, Metadata: meta, Document: doc}, nil
}
