package domain

import (
	"fmt"
	"strings"
	"time"
)

const LicenseDocumentVersion = "1.0"

type LicenseType string

const (
	LicenseOpen       LicenseType = "open"
	LicenseRestricted LicenseType = "restricted"
	LicenseCommercial LicenseType = "commercial"
	LicenseResearch   LicenseType = "research"
	LicenseCustom     LicenseType = "custom"
)

func ParseLicenseType(s string) (LicenseType, error) {
	switch t := LicenseType(strings.ToLower(strings.TrimSpace(s))); t {
	case LicenseOpen, LicenseRestricted, LicenseCommercial, LicenseResearch, LicenseCustom:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown license type %q", ErrValidation, s)
	}
}

// LicenseDescriptor is the pinned license document. Field names follow the
// published JSON shape.
type LicenseDescriptor struct {
	Version            string      `json:"version"`
	LicenseType        LicenseType `json:"licenseType"`
	ContentCID         string      `json:"contentCid"`
	Creator            string      `json:"creator"`
	RequireAttribution bool        `json:"requireAttribution"`
	AllowCommercialUse bool        `json:"allowCommercialUse"`
	AllowAITraining    bool        `json:"allowAiTraining"`
	ExpirationDate     *time.Time  `json:"expirationDate"`
	CustomTerms        string      `json:"customTerms"`
	CreatedAt          time.Time   `json:"createdAt"`
	Network            string      `json:"network"`
}

func (d LicenseDescriptor) Expired(at time.Time) bool {
	return d.ExpirationDate != nil && !at.Before(*d.ExpirationDate)
}

type License struct {
	ID          string            `json:"id"`
	Descriptor  LicenseDescriptor `json:"descriptor"`
	Digest      string            `json:"digest"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	URL         string            `json:"url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (l License) Summary() LicenseSummary {
	return LicenseSummary{
		Type:               l.Descriptor.LicenseType,
		RequireAttribution: l.Descriptor.RequireAttribution,
		AllowCommercialUse: l.Descriptor.AllowCommercialUse,
		AllowAITraining:    l.Descriptor.AllowAITraining,
		ExpiresAt:          l.Descriptor.ExpirationDate,
		Fingerprint:        l.Fingerprint,
		URL:                l.URL,
	}
}

type LicenseSummary struct {
	Type               LicenseType `json:"type"`
	RequireAttribution bool        `json:"require_attribution"`
	AllowCommercialUse bool        `json:"allow_commercial_use"`
	AllowAITraining    bool        `json:"allow_ai_training"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
	Fingerprint        string      `json:"fingerprint,omitempty"`
	URL                string      `json:"url,omitempty"`
}

type UsageKind string

const (
	UsageDisplay    UsageKind = "display"
	UsageCommercial UsageKind = "commercial"
	UsageAITraining UsageKind = "ai_training"
	UsageResearch   UsageKind = "research"
	UsageDerivative UsageKind = "derivative"
)

func ParseUsageKind(s string) (UsageKind, error) {
	switch u := UsageKind(strings.ToLower(strings.TrimSpace(s))); u {
	case UsageDisplay, UsageCommercial, UsageAITraining, UsageResearch, UsageDerivative:
		return u, nil
	default:
		return "", fmt.Errorf("%w: unknown usage %q", ErrValidation, s)
	}
}
