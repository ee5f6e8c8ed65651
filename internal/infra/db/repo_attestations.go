package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guardians/internal/domain"
	"guardians/internal/usecase"
)

type AttestationIndexRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAttestationIndexRepository(db *gorm.DB) *AttestationIndexRepository {
	return &AttestationIndexRepository{db: db, now: time.Now}
}

// Upsert stores the latest ledger view of a record, keyed by address.
func (r *AttestationIndexRepository) Upsert(ctx context.Context, rec domain.AttestationRecord) error {
	if r == nil || r.db == nil {
		return errDBUnavailable
	}
	model := AttestationIndexModel{
		Address:             rec.Address.String(),
		Owner:               rec.Owner.String(),
		ContentFingerprint:  rec.ContentFingerprint,
		MetadataFingerprint: rec.MetadataFingerprint,
		ContentType:         rec.ContentType,
		Title:               rec.Title,
		Description:         rec.Description,
		Revoked:             rec.Revoked,
		CreatedAt:           rec.CreatedAt.UTC(),
		UpdatedAt:           rec.UpdatedAt.UTC(),
		IndexedAt:           r.now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"metadata_fingerprint", "title", "description", "revoked", "updated_at", "indexed_at",
			}),
		}).
		Create(&model).Error
}

// ListByFingerprint returns every indexed record for the fingerprint, oldest
// first.
func (r *AttestationIndexRepository) ListByFingerprint(ctx context.Context, contentFingerprint string) ([]domain.AttestationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errDBUnavailable
	}
	var rows []AttestationIndexModel
	err := r.db.WithContext(ctx).
		Where("content_fingerprint = ?", contentFingerprint).
		Order("created_at ASC, address ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AttestationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m AttestationIndexModel) toDomain() (domain.AttestationRecord, error) {
	addr, err := parseKey(m.Address)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	owner, err := parseKey(m.Owner)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	return domain.AttestationRecord{
		Address:             addr,
		Owner:               owner,
		ContentFingerprint:  m.ContentFingerprint,
		MetadataFingerprint: m.MetadataFingerprint,
		ContentType:         m.ContentType,
		Title:               m.Title,
		Description:         m.Description,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
		Revoked:             m.Revoked,
	}, nil
}

var _ usecase.AttestationIndex = (*AttestationIndexRepository)(nil)
