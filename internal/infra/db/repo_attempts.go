package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"guardians/internal/domain"
	"guardians/internal/usecase"
)

type SubmissionAttemptRepository struct {
	db *gorm.DB
}

func NewSubmissionAttemptRepository(db *gorm.DB) *SubmissionAttemptRepository {
	return &SubmissionAttemptRepository{db: db}
}

func (r *SubmissionAttemptRepository) Append(ctx context.Context, attempt domain.SubmissionAttempt) error {
	if r == nil || r.db == nil {
		return errDBUnavailable
	}
	id := attempt.ID
	if id == "" {
		id = uuid.NewString()
	}
	model := SubmissionAttemptModel{
		ID:                 id,
		Owner:              attempt.Owner,
		Address:            attempt.Address,
		ContentFingerprint: attempt.ContentFingerprint,
		Action:             string(attempt.Action),
		Status:             attempt.Status,
		ErrorKind:          string(attempt.ErrorKind),
		ErrorMessage:       attempt.ErrorMessage,
		TransactionID:      attempt.TransactionID,
		Attempts:           attempt.Attempts,
		CreatedAt:          attempt.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *SubmissionAttemptRepository) ListByAddress(ctx context.Context, address string) ([]domain.SubmissionAttempt, error) {
	if r == nil || r.db == nil {
		return nil, errDBUnavailable
	}
	var rows []SubmissionAttemptModel
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SubmissionAttempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SubmissionAttempt{
			ID:                 row.ID,
			Owner:              row.Owner,
			Address:            row.Address,
			ContentFingerprint: row.ContentFingerprint,
			Action:             domain.SubmissionAction(row.Action),
			Status:             row.Status,
			ErrorKind:          domain.ErrorKind(row.ErrorKind),
			ErrorMessage:       row.ErrorMessage,
			TransactionID:      row.TransactionID,
			Attempts:           row.Attempts,
			CreatedAt:          row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

var _ usecase.SubmissionAttemptRepository = (*SubmissionAttemptRepository)(nil)
