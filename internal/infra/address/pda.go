// Package address derives program addresses for attestation records.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"guardians/internal/domain"
)

// RecordSeed tags every attestation record address.
const RecordSeed = "attestation"

const (
	maxSeeds  = 16
	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrOnCurve      = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump = errors.New("no viable bump seed for program address")
	ErrTooManySeeds = errors.New("too many seeds")
)

// CreateProgramAddress hashes seeds, programID and the derivation marker. The
// result is only a valid program address when it is not a curve point, so no
// private key can exist for it.
func CreateProgramAddress(seeds [][]byte, programID domain.PublicKey) (domain.PublicKey, error) {
	var out domain.PublicKey
	if len(seeds) > maxSeeds {
		return out, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	sum := h.Sum(nil)
	if IsOnCurve(sum) {
		return out, ErrOnCurve
	}
	copy(out[:], sum)
	return out, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address.
func FindProgramAddress(seeds [][]byte, programID domain.PublicKey) (domain.PublicKey, uint8, error) {
	if len(seeds)+1 > maxSeeds {
		return domain.PublicKey{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return domain.PublicKey{}, 0, err
		}
		return addr, uint8(bump), nil
	}
	return domain.PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b is the canonical encoding of an ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// RecordSeeds returns the seeds of the record owned by owner for the given
// fingerprint. The fingerprint is always used in full: two fingerprints that
// share a prefix must never collide. A CID is longer than the 32 bytes the
// ledger runtime accepts for a single seed, so the on-chain program cannot pass
// these seeds as they are. The derived address only matches a program that
// splits the fingerprint into 32-byte seed chunks, which hashes the same bytes.
func RecordSeeds(owner domain.PublicKey, contentFingerprint string) [][]byte {
	return [][]byte{[]byte(RecordSeed), owner[:], []byte(contentFingerprint)}
}

// DeriveRecordAddress is pure and deterministic. The fingerprint is trimmed
// before derivation.
func DeriveRecordAddress(programID, owner domain.PublicKey, contentFingerprint string) (domain.RecordAddress, error) {
	fp := domain.NormalizeFingerprint(contentFingerprint)
	if err := domain.ValidateContentFingerprint(fp); err != nil {
		return domain.RecordAddress{}, err
	}
	if owner.IsZero() {
		return domain.RecordAddress{}, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	key, bump, err := FindProgramAddress(RecordSeeds(owner, fp), programID)
	if err != nil {
		return domain.RecordAddress{}, err
	}
	return domain.RecordAddress{Key: key, Bump: bump}, nil
}
