package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"guardians/internal/domain"
	"guardians/internal/platform/logger"
)

// VerificationReader turns a content fingerprint into a displayable
// verification result. "No record" and "could not check" stay distinct: the
// first is a not_verified result, the second an error.
type VerificationReader struct {
	Registry AttestationRegistry
	Index    AttestationIndex
	Issuer   *domain.PublicKey
	Licenses LicenseLookup
	Network  string
	Logger   *logger.Logger
}

// Verify checks the fingerprint against owner when given. Without an owner it
// consults the index, then the configured issuer, then the connected wallet.
func (r *VerificationReader) Verify(ctx context.Context, contentFingerprint string, owner *domain.PublicKey) (domain.VerificationResult, error) {
	fp := domain.NormalizeFingerprint(contentFingerprint)
	if err := domain.ValidateContentFingerprint(fp); err != nil {
		return domain.VerificationResult{}, err
	}
	if r == nil || r.Registry == nil {
		return domain.NotReadyResult(fp, domain.ReasonNoClient), nil
	}
	if owner != nil {
		return r.verifyOwner(ctx, fp, *owner)
	}
	if r.Index != nil {
		res, found, err := r.verifyViaIndex(ctx, fp)
		if err != nil {
			r.Logger.Warn("attestation index lookup failed", "content_fingerprint", fp, "error", err)
		} else if found {
			return res, nil
		}
	}
	if r.Issuer != nil {
		return r.VerifyByIssuer(ctx, fp)
	}
	connected, err := r.Registry.Owner()
	if err != nil {
		return domain.NotReadyResult(fp, domain.ReasonNoIssuer), nil
	}
	return r.verifyOwner(ctx, fp, connected)
}

// VerifyByIssuer enumerates the configured issuer's records and matches the
// stored fingerprint. The scan is linear in the issuer's record count.
func (r *VerificationReader) VerifyByIssuer(ctx context.Context, contentFingerprint string) (domain.VerificationResult, error) {
	fp := domain.NormalizeFingerprint(contentFingerprint)
	if err := domain.ValidateContentFingerprint(fp); err != nil {
		return domain.VerificationResult{}, err
	}
	if r == nil || r.Registry == nil {
		return domain.NotReadyResult(fp, domain.ReasonNoClient), nil
	}
	if r.Issuer == nil {
		return domain.NotReadyResult(fp, domain.ReasonNoIssuer), nil
	}
	recs, err := r.Registry.ListByOwner(ctx, *r.Issuer)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	for _, rec := range recs {
		if rec.ContentFingerprint == fp {
			return r.result(ctx, rec), nil
		}
	}
	return domain.NotVerifiedResult(fp, domain.ReasonNoRecord), nil
}

func (r *VerificationReader) verifyOwner(ctx context.Context, fp string, owner domain.PublicKey) (domain.VerificationResult, error) {
	addr, err := r.Registry.DeriveAddress(owner, fp)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	rec, err := r.Registry.Fetch(ctx, addr)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotVerifiedResult(fp, domain.ReasonNoRecord), nil
	}
	if err != nil {
		return domain.VerificationResult{}, err
	}
	return r.result(ctx, rec), nil
}

// verifyViaIndex confirms index hits against the ledger, oldest first.
func (r *VerificationReader) verifyViaIndex(ctx context.Context, fp string) (domain.VerificationResult, bool, error) {
	candidates, err := r.Index.ListByFingerprint(ctx, fp)
	if err != nil {
		return domain.VerificationResult{}, false, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	var revoked *domain.AttestationRecord
	for _, cand := range candidates {
		if r.Issuer != nil && cand.Owner != *r.Issuer {
			continue
		}
		rec, err := r.Registry.Fetch(ctx, domain.RecordAddress{Key: cand.Address})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.VerificationResult{}, false, err
		}
		if rec.ContentFingerprint != fp {
			return domain.VerificationResult{}, false, fmt.Errorf("index entry %s does not match ledger record", cand.Address)
		}
		if rec.Revoked {
			if revoked == nil {
				revoked = &rec
			}
			continue
		}
		return r.result(ctx, rec), true, nil
	}
	if revoked != nil {
		return r.result(ctx, *revoked), true, nil
	}
	return domain.VerificationResult{}, false, nil
}

func (r *VerificationReader) result(ctx context.Context, rec domain.AttestationRecord) domain.VerificationResult {
	if rec.Revoked {
		res := domain.NotVerifiedResult(rec.ContentFingerprint, domain.ReasonRevoked)
		res.Creator = rec.Owner.String()
		res.Address = rec.Address.String()
		return res
	}
	res := domain.VerifiedResult(rec, r.Network)
	if r.Licenses != nil {
		lic, err := r.Licenses.Latest(ctx, rec.ContentFingerprint, rec.Owner.String())
		switch {
		case err == nil && lic != nil:
			summary := lic.Summary()
			res.License = &summary
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			r.Logger.Warn("license lookup failed", "content_fingerprint", rec.ContentFingerprint, "error", err)
		}
	}
	return res
}
