package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"guardians/internal/domain"
)

func TestUploadPinsContentThenMetadata(t *testing.T) {
	storage := &stubStorage{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &ContentUploader{Storage: storage, Clock: func() time.Time { return now }}

	res, err := u.Upload(context.Background(), UploadRequest{
		FileName:    "sunset.png",
		ContentType: "image/png",
		Description: "evening",
		Body:        strings.NewReader("png-bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(storage.names) != 2 || storage.names[0] != "sunset.png" || storage.names[1] != "sunset.png.metadata.json" {
		t.Fatalf("unexpected pin order %v", storage.names)
	}
	if res.Content.Size != int64(len("png-bytes")) {
		t.Fatalf("unexpected size %d", res.Content.Size)
	}
	doc := res.Document
	if doc.Name != "sunset.png" || doc.Image != res.Content.URL || doc.Properties.ContentCID != res.Content.Fingerprint {
		t.Fatalf("unexpected metadata document %+v", doc)
	}
	want := map[string]string{
		domain.TraitContentCID:      res.Content.Fingerprint,
		domain.TraitContentType:     "image/png",
		domain.TraitAttestationTime: now.Format(time.RFC3339),
	}
	for _, attr := range doc.Attributes {
		if want[attr.TraitType] != attr.Value {
			t.Fatalf("attribute %s = %q, want %q", attr.TraitType, attr.Value, want[attr.TraitType])
		}
	}
	if res.Metadata.Fingerprint == "" {
		t.Fatalf("expected metadata fingerprint")
	}
}

func TestUploadValidation(t *testing.T) {
	var nilUploader *ContentUploader
	if _, err := nilUploader.Upload(context.Background(), UploadRequest{}); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	u := &ContentUploader{Storage: &stubStorage{}}
	if _, err := u.Upload(context.Background(), UploadRequest{FileName: " ", Body: strings.NewReader("x")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := u.Upload(context.Background(), UploadRequest{FileName: "a.txt"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing body, got %v", err)
	}
}

func TestUploadStopsWhenContentPinFails(t *testing.T) {
	storage := &stubStorage{err: errors.New("pinning unavailable")}
	u := &ContentUploader{Storage: storage}
	if _, err := u.Upload(context.Background(), UploadRequest{FileName: "a.txt", Body: strings.NewReader("x")}); err == nil {
		t.Fatalf("expected error")
	}
	if len(storage.names) != 0 {
		t.Fatalf("metadata must not be pinned after failed content pin")
	}
}
