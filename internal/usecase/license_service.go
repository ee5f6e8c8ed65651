package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"guardians/internal/domain"
	"guardians/internal/platform/logger"
)

type LicenseTerms struct {
	ContentCID         string     `json:"content_cid"`
	LicenseType        string     `json:"license_type"`
	RequireAttribution *bool      `json:"require_attribution,omitempty"`
	AllowCommercialUse bool       `json:"allow_commercial_use"`
	AllowAITraining    bool       `json:"allow_ai_training"`
	ExpirationDate     *time.Time `json:"expiration_date,omitempty"`
	CustomTerms        string     `json:"custom_terms,omitempty"`
}

// LicenseService manages license descriptors. Licenses are stored next to
// attestations, never inside them, and a failed license write leaves the
// attestation untouched.
type LicenseService struct {
	Repo         LicenseRepository
	Storage      domain.ContentStorage
	Policy       UsagePolicy
	Canonicalize func(v any) ([]byte, error)
	Network      string
	Clock        func() time.Time
	Logger       *logger.Logger
}

func (s *LicenseService) Create(ctx context.Context, creator domain.PublicKey, terms LicenseTerms) (domain.License, error) {
	if s == nil || s.Repo == nil {
		return domain.License{}, fmt.Errorf("%w: license store not configured", domain.ErrNotReady)
	}
	desc, err := s.buildDescriptor(creator, terms)
	if err != nil {
		return domain.License{}, err
	}
	canonical, err := s.canonical(desc)
	if err != nil {
		return domain.License{}, err
	}
	sum := sha256.Sum256(canonical)
	lic := domain.License{
		ID:         uuid.NewString(),
		Descriptor: desc,
		Digest:     hex.EncodeToString(sum[:]),
		CreatedAt:  desc.CreatedAt,
	}
	if s.Storage != nil {
		pinned, err := s.Storage.PinJSON(ctx, "license-"+desc.ContentCID+".json", json.RawMessage(canonical))
		if err != nil {
			return domain.License{}, fmt.Errorf("pin license: %w", err)
		}
		lic.Fingerprint = pinned.Fingerprint
		lic.URL = pinned.URL
	}
	if err := s.Repo.Create(ctx, lic); err != nil {
		return domain.License{}, err
	}
	s.Logger.Info("license created", "content_fingerprint", desc.ContentCID, "license_type", string(desc.LicenseType), "digest", lic.Digest)
	return lic, nil
}

// Latest returns the newest license for the fingerprint. An empty creator
// matches any creator.
func (s *LicenseService) Latest(ctx context.Context, contentFingerprint, creator string) (*domain.License, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("%w: license store not configured", domain.ErrNotReady)
	}
	fp := domain.NormalizeFingerprint(contentFingerprint)
	if err := domain.ValidateContentFingerprint(fp); err != nil {
		return nil, err
	}
	return s.Repo.Latest(ctx, fp, strings.TrimSpace(creator))
}

func (s *LicenseService) EvaluateUsage(ctx context.Context, contentFingerprint, creator string, use domain.UsageKind, at time.Time) (domain.UsageDecision, error) {
	if s == nil || s.Policy == nil {
		return domain.UsageDecision{}, fmt.Errorf("%w: usage policy not configured", domain.ErrNotReady)
	}
	lic, err := s.Latest(ctx, contentFingerprint, creator)
	if err != nil {
		return domain.UsageDecision{}, err
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.Policy.Evaluate(ctx, domain.UsagePolicyInput{
		License: lic.Descriptor,
		Use:     use,
		Expired: lic.Descriptor.Expired(at),
	})
}

func (s *LicenseService) buildDescriptor(creator domain.PublicKey, terms LicenseTerms) (domain.LicenseDescriptor, error) {
	if creator.IsZero() {
		return domain.LicenseDescriptor{}, fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	cf := domain.NormalizeFingerprint(terms.ContentCID)
	if err := domain.ValidateContentFingerprint(cf); err != nil {
		return domain.LicenseDescriptor{}, err
	}
	licenseType, err := domain.ParseLicenseType(terms.LicenseType)
	if err != nil {
		return domain.LicenseDescriptor{}, err
	}
	customTerms := strings.TrimSpace(terms.CustomTerms)
	if licenseType == domain.LicenseCustom && customTerms == "" {
		return domain.LicenseDescriptor{}, fmt.Errorf("%w: custom licenses need custom terms", domain.ErrValidation)
	}
	if licenseType == domain.LicenseResearch && terms.AllowCommercialUse {
		return domain.LicenseDescriptor{}, fmt.Errorf("%w: research licenses cannot allow commercial use", domain.ErrValidation)
	}
	createdAt := s.now().Truncate(time.Second)
	var expires *time.Time
	if terms.ExpirationDate != nil {
		exp := terms.ExpirationDate.UTC()
		if !exp.After(createdAt) {
			return domain.LicenseDescriptor{}, fmt.Errorf("%w: expiration date must be in the future", domain.ErrValidation)
		}
		expires = &exp
	}
	requireAttribution := true
	if terms.RequireAttribution != nil {
		requireAttribution = *terms.RequireAttribution
	}
	return domain.LicenseDescriptor{
		Version:            domain.LicenseDocumentVersion,
		LicenseType:        licenseType,
		ContentCID:         cf,
		Creator:            creator.String(),
		RequireAttribution: requireAttribution,
		AllowCommercialUse: terms.AllowCommercialUse,
		AllowAITraining:    terms.AllowAITraining,
		ExpirationDate:     expires,
		CustomTerms:        customTerms,
		CreatedAt:          createdAt,
		Network:            s.Network,
	}, nil
}

func (s *LicenseService) canonical(desc domain.LicenseDescriptor) ([]byte, error) {
	if s.Canonicalize != nil {
		return s.Canonicalize(desc)
	}
	return json.Marshal(desc)
}

func (s *LicenseService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

var _ LicenseLookup = (*LicenseService)(nil)
