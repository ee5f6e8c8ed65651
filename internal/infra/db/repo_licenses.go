package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"guardians/internal/domain"
	"guardians/internal/usecase"
)

type LicenseRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

func (r *LicenseRepository) Create(ctx context.Context, lic domain.License) error {
	if r == nil || r.db == nil {
		return errDBUnavailable
	}
	if lic.ID == "" {
		return fmt.Errorf("%w: license id is required", domain.ErrValidation)
	}
	descriptor, err := json.Marshal(lic.Descriptor)
	if err != nil {
		return err
	}
	model := LicenseModel{
		ID:             lic.ID,
		ContentCID:     lic.Descriptor.ContentCID,
		Creator:        lic.Descriptor.Creator,
		LicenseType:    string(lic.Descriptor.LicenseType),
		DescriptorJSON: descriptor,
		Digest:         lic.Digest,
		Fingerprint:    lic.Fingerprint,
		URL:            lic.URL,
		ExpiresAt:      lic.Descriptor.ExpirationDate,
		CreatedAt:      lic.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// Latest returns the newest license for the fingerprint. An empty creator
// matches any creator.
func (r *LicenseRepository) Latest(ctx context.Context, contentFingerprint, creator string) (*domain.License, error) {
	if r == nil || r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Where("content_cid = ?", contentFingerprint)
	if creator != "" {
		q = q.Where("creator = ?", creator)
	}
	var row LicenseModel
	err := q.Order("created_at DESC, id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no license for %s", domain.ErrNotFound, contentFingerprint)
	}
	if err != nil {
		return nil, err
	}
	var desc domain.LicenseDescriptor
	if err := json.Unmarshal(row.DescriptorJSON, &desc); err != nil {
		return nil, fmt.Errorf("decode stored license %s: %w", row.ID, err)
	}
	return &domain.License{
		ID:          row.ID,
		Descriptor:  desc,
		Digest:      row.Digest,
		Fingerprint: row.Fingerprint,
		URL:         row.URL,
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}

var _ usecase.LicenseRepository = (*LicenseRepository)(nil)
