package usecase

import (
	"context"
	"time"

	"guardians/internal/domain"
)

// AttestationRegistry is the registry surface the lifecycle controller and
// the verification reader depend on.
type AttestationRegistry interface {
	Owner() (domain.PublicKey, error)
	DeriveAddress(owner domain.PublicKey, contentFingerprint string) (domain.RecordAddress, error)
	Exists(ctx context.Context, addr domain.RecordAddress) (bool, error)
	Fetch(ctx context.Context, addr domain.RecordAddress) (domain.AttestationRecord, error)
	Create(ctx context.Context, in domain.CreateAttestation) (domain.TransactionID, error)
	Update(ctx context.Context, addr domain.RecordAddress, upd domain.AttestationUpdate) (domain.TransactionID, error)
	Revoke(ctx context.Context, addr domain.RecordAddress) (domain.TransactionID, error)
	ListByOwner(ctx context.Context, owner domain.PublicKey) ([]domain.AttestationRecord, error)
}

// RecordCache is keyed by record address, which stands for the
// (owner, contentFingerprint) pair it is derived from.
type RecordCache interface {
	Get(ctx context.Context, key string) (*domain.AttestationRecord, bool, error)
	Put(ctx context.Context, key string, rec domain.AttestationRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AttestationIndex mirrors ledger records so a fingerprint can be resolved
// without knowing its owner. The ledger stays authoritative.
type AttestationIndex interface {
	Upsert(ctx context.Context, rec domain.AttestationRecord) error
	ListByFingerprint(ctx context.Context, contentFingerprint string) ([]domain.AttestationRecord, error)
}

type SubmissionAttemptRepository interface {
	Append(ctx context.Context, attempt domain.SubmissionAttempt) error
	ListByAddress(ctx context.Context, address string) ([]domain.SubmissionAttempt, error)
}

type LicenseRepository interface {
	Create(ctx context.Context, lic domain.License) error
	Latest(ctx context.Context, contentFingerprint, creator string) (*domain.License, error)
}

type LicenseLookup interface {
	Latest(ctx context.Context, contentFingerprint, creator string) (*domain.License, error)
}

type UsagePolicy interface {
	Evaluate(ctx context.Context, input domain.UsagePolicyInput) (domain.UsageDecision, error)
}

type RegistryMetrics interface {
	ObserveWrite(action domain.SubmissionAction, kind domain.ErrorKind, attempts int)
	ObserveRetry(operation string)
}
