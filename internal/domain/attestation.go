package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const PublicKeySize = 32

// Field limits of the on-ledger record account, in bytes.
const (
	MaxContentFingerprintLen  = 100
	MaxMetadataFingerprintLen = 100
	MaxContentTypeLen         = 100
	MaxTitleLen               = 50
	MaxDescriptionLen         = 100
)

const (
	DefaultContentType = "unknown"
	DefaultTitle       = "Untitled"
)

// PublicKey is a 32-byte ledger account key, rendered as base58.
type PublicKey [PublicKeySize]byte

func ParsePublicKey(s string) (PublicKey, error) {
	var key PublicKey
	s = strings.TrimSpace(s)
	if s == "" {
		return key, fmt.Errorf("%w: empty public key", ErrValidation)
	}
	raw := base58.Decode(s)
	if len(raw) != PublicKeySize {
		return key, fmt.Errorf("%w: public key must decode to %d bytes", ErrValidation, PublicKeySize)
	}
	copy(key[:], raw)
	return key, nil
}

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var key PublicKey
	if len(b) != PublicKeySize {
		return key, errors.New("public key must be 32 bytes")
	}
	copy(key[:], b)
	return key, nil
}

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RecordAddress is the program-derived location of one attestation record.
type RecordAddress struct {
	Key  PublicKey
	Bump uint8
}

func (a RecordAddress) String() string {
	return a.Key.String()
}

type TransactionID string

type AttestationRecord struct {
	Address             PublicKey `json:"address"`
	Owner               PublicKey `json:"owner"`
	ContentFingerprint  string    `json:"content_fingerprint"`
	MetadataFingerprint string    `json:"metadata_fingerprint"`
	ContentType         string    `json:"content_type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Revoked             bool      `json:"revoked"`
}

// CreateAttestation carries every field of a new record. Values are expected
// to be normalized already.
type CreateAttestation struct {
	Owner               PublicKey
	ContentFingerprint  string
	MetadataFingerprint string
	ContentType         string
	Title               string
	Description         string
}

// AttestationUpdate names the mutable fields to change. A nil field is left
// untouched by the program.
type AttestationUpdate struct {
	MetadataFingerprint *string
	Title               *string
	Description         *string
}

func (u AttestationUpdate) Empty() bool {
	return u.MetadataFingerprint == nil && u.Title == nil && u.Description == nil
}

// NormalizeFingerprint trims surrounding whitespace. The trimmed value is the
// one used for derivation, lookups and writes.
func NormalizeFingerprint(s string) string {
	return strings.TrimSpace(s)
}

func ValidateContentFingerprint(s string) error {
	if s == "" {
		return fmt.Errorf("%w: content fingerprint is required", ErrValidation)
	}
	if len(s) > MaxContentFingerprintLen {
		return fmt.Errorf("%w: content fingerprint exceeds %d bytes", ErrValidation, MaxContentFingerprintLen)
	}
	return nil
}

// Validate checks required fields and length limits on a normalized create.
func (c CreateAttestation) Validate() error {
	if c.Owner.IsZero() {
		return fmt.Errorf("%w: owner is required", ErrValidation)
	}
	return c.ValidateFields()
}

// ValidateFields checks everything but the owner.
func (c CreateAttestation) ValidateFields() error {
	if err := ValidateContentFingerprint(c.ContentFingerprint); err != nil {
		return err
	}
	if c.MetadataFingerprint == "" {
		return fmt.Errorf("%w: metadata fingerprint is required", ErrValidation)
	}
	return checkLengths(map[string]fieldLimit{
		"metadata fingerprint": {c.MetadataFingerprint, MaxMetadataFingerprintLen},
		"content type":         {c.ContentType, MaxContentTypeLen},
		"title":                {c.Title, MaxTitleLen},
		"description":          {c.Description, MaxDescriptionLen},
	})
}

func (u AttestationUpdate) Validate() error {
	limits := map[string]fieldLimit{}
	if u.MetadataFingerprint != nil {
		if *u.MetadataFingerprint == "" {
			return fmt.Errorf("%w: metadata fingerprint cannot be cleared", ErrValidation)
		}
		limits["metadata fingerprint"] = fieldLimit{*u.MetadataFingerprint, MaxMetadataFingerprintLen}
	}
	if u.Title != nil {
		limits["title"] = fieldLimit{*u.Title, MaxTitleLen}
	}
	if u.Description != nil {
		limits["description"] = fieldLimit{*u.Description, MaxDescriptionLen}
	}
	return checkLengths(limits)
}

type fieldLimit struct {
	value string
	max   int
}

func checkLengths(fields map[string]fieldLimit) error {
	for _, name := range []string{"metadata fingerprint", "content type", "title", "description"} {
		f, ok := fields[name]
		if !ok {
			continue
		}
		if len(f.value) > f.max {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, name, f.max)
		}
	}
	return nil
}
