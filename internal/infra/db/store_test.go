package db

import (
	"context"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"guardians/internal/domain"
	"guardians/internal/platform/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(sqlitePrefix+filepath.Join(t.TempDir(), "guardians.db"), logger.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func key(tag string) domain.PublicKey {
	return domain.PublicKey(sha256.Sum256([]byte(tag)))
}

func TestAttestationIndexUpsertAndList(t *testing.T) {
	repo := newTestStore(t).Attestations()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := domain.AttestationRecord{Address: key("addr-1"), Owner: key("owner-1"), ContentFingerprint: "cid-A", MetadataFingerprint: "meta-1", ContentType: "image/png", Title: "One", CreatedAt: t0, UpdatedAt: t0}
	newer := domain.AttestationRecord{Address: key("addr-2"), Owner: key("owner-2"), ContentFingerprint: "cid-A", MetadataFingerprint: "meta-2", ContentType: "image/png", Title: "Two", CreatedAt: t0.Add(time.Hour), UpdatedAt: t0.Add(time.Hour)}
	other := domain.AttestationRecord{Address: key("addr-3"), Owner: key("owner-1"), ContentFingerprint: "cid-B", MetadataFingerprint: "meta-3", ContentType: "text/plain", Title: "Three", CreatedAt: t0, UpdatedAt: t0}
	for _, rec := range []domain.AttestationRecord{newer, older, other} {
		if err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := repo.ListByFingerprint(ctx, "cid-A")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Address != older.Address || got[1].Address != newer.Address {
		t.Fatalf("expected oldest first, got %+v", got)
	}
	if got[0].Owner != older.Owner || !got[0].CreatedAt.Equal(t0) {
		t.Fatalf("round trip mismatch %+v", got[0])
	}

	older.Title = "One, renamed"
	older.Revoked = true
	older.UpdatedAt = t0.Add(2 * time.Hour)
	if err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	got, err = repo.ListByFingerprint(ctx, "cid-A")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Title != "One, renamed" || !got[0].Revoked {
		t.Fatalf("expected upsert to replace mutable fields, got %+v", got[0])
	}
}

func TestLicenseRepositoryLatest(t *testing.T) {
	repo := newTestStore(t).Licenses()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creator := key("creator").String()

	if _, err := repo.Latest(ctx, "cid-A", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expires := t0.Add(48 * time.Hour)
	for i, lt := range []domain.LicenseType{domain.LicenseOpen, domain.LicenseCommercial} {
		lic := domain.License{
			ID: []string{"6f1c1a1e-0000-4000-8000-000000000001", "6f1c1a1e-0000-4000-8000-000000000002"}[i],
			Descriptor: domain.LicenseDescriptor{
				Version:        domain.LicenseDocumentVersion,
				LicenseType:    lt,
				ContentCID:     "cid-A",
				Creator:        creator,
				ExpirationDate: &expires,
				CreatedAt:      t0.Add(time.Duration(i) * time.Hour),
			},
			Digest:    "digest",
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Create(ctx, lic); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	lic, err := repo.Latest(ctx, "cid-A", creator)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if lic.Descriptor.LicenseType != domain.LicenseCommercial {
		t.Fatalf("expected newest license, got %s", lic.Descriptor.LicenseType)
	}
	if lic.Descriptor.ExpirationDate == nil || !lic.Descriptor.ExpirationDate.Equal(expires) {
		t.Fatalf("expiration not preserved: %v", lic.Descriptor.ExpirationDate)
	}
	if _, err := repo.Latest(ctx, "cid-A", key("someone-else").String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected creator filter, got %v", err)
	}
	if _, err := repo.Latest(ctx, "cid-A", ""); err != nil {
		t.Fatalf("empty creator should match any: %v", err)
	}
}

func TestSubmissionAttemptsByAddress(t *testing.T) {
	repo := newTestStore(t).Attempts()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.SubmissionAttempt{
		{Address: "addr-1", Action: domain.ActionCreate, Status: domain.SubmissionStatusFailed, ErrorKind: domain.KindTransient, Attempts: 3, CreatedAt: t0},
		{Address: "addr-1", Action: domain.ActionCreate, Status: domain.SubmissionStatusSucceeded, TransactionID: "tx-1", Attempts: 1, CreatedAt: t0.Add(time.Minute)},
		{Address: "addr-2", Action: domain.ActionRevoke, Status: domain.SubmissionStatusSucceeded, Attempts: 1, CreatedAt: t0},
	}
	for _, row := range rows {
		if err := repo.Append(ctx, row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := repo.ListByAddress(ctx, "addr-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ErrorKind != domain.KindTransient || got[1].TransactionID != "tx-1" {
		t.Fatalf("unexpected rows %+v", got)
	}
	if got[0].ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestStoreWithoutDSN(t *testing.T) {
	store, err := NewStore("", logger.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Attestations().Upsert(context.Background(), domain.AttestationRecord{}); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if _, err := store.Licenses().Latest(context.Background(), "cid-A", ""); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
