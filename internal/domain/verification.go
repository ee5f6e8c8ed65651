package domain

import "time"

type VerificationStatus string

const (
	VerificationVerified    VerificationStatus = "verified"
	VerificationNotVerified VerificationStatus = "not_verified"
	VerificationNotReady    VerificationStatus = "not_ready"
)

const (
	ReasonNoRecord = "no attestation found for this content"
	ReasonRevoked  = "attestation has been revoked"
	ReasonNoClient = "verification backend unavailable"
	ReasonNoIssuer = "no owner or issuer to verify against"
)

type VerificationResult struct {
	Status              VerificationStatus `json:"status"`
	Verified            bool               `json:"verified"`
	Reason              string             `json:"reason,omitempty"`
	ContentFingerprint  string             `json:"content_fingerprint"`
	Creator             string             `json:"creator,omitempty"`
	Address             string             `json:"address,omitempty"`
	CreatedAt           *time.Time         `json:"created_at,omitempty"`
	Title               string             `json:"title,omitempty"`
	ContentType         string             `json:"content_type,omitempty"`
	MetadataFingerprint string             `json:"metadata_fingerprint,omitempty"`
	Network             string             `json:"network,omitempty"`
	License             *LicenseSummary    `json:"license,omitempty"`
}

func NotReadyResult(contentFingerprint, reason string) VerificationResult {
	return VerificationResult{
		Status:             VerificationNotReady,
		Reason:             reason,
		ContentFingerprint: contentFingerprint,
	}
}

func NotVerifiedResult(contentFingerprint, reason string) VerificationResult {
	return VerificationResult{
		Status:             VerificationNotVerified,
		Reason:             reason,
		ContentFingerprint: contentFingerprint,
	}
}

func VerifiedResult(rec AttestationRecord, network string) VerificationResult {
	created := rec.CreatedAt.UTC()
	return VerificationResult{
		Status:              VerificationVerified,
		Verified:            true,
		ContentFingerprint:  rec.ContentFingerprint,
		Creator:             rec.Owner.String(),
		Address:             rec.Address.String(),
		CreatedAt:           &created,
		Title:               rec.Title,
		ContentType:         rec.ContentType,
		MetadataFingerprint: rec.MetadataFingerprint,
		Network:             network,
	}
}
