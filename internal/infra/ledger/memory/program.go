// Package memory is an in-process attestation program with the same
// observable rules as the ledger program: one record per derived address,
// owner-only updates and revocation, and partial updates that preserve
// omitted fields.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"

	"guardians/internal/domain"
	"guardians/internal/infra/address"
)

type Program struct {
	mu        sync.RWMutex
	programID domain.PublicKey
	clock     func() time.Time
	records   map[domain.PublicKey]domain.AttestationRecord
	seq       uint64
}

func New(programID domain.PublicKey) *Program {
	return NewWithClock(programID, nil)
}

func NewWithClock(programID domain.PublicKey, clock func() time.Time) *Program {
	if clock == nil {
		clock = time.Now
	}
	return &Program{
		programID: programID,
		clock:     clock,
		records:   make(map[domain.PublicKey]domain.AttestationRecord),
	}
}

func (p *Program) ProgramID() domain.PublicKey {
	return p.programID
}

func (p *Program) GenesisHash(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return domain.LocalnetGenesisHash, nil
}

func (p *Program) GetRecord(ctx context.Context, addr domain.PublicKey) (domain.AttestationRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AttestationRecord{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[addr]
	if !ok {
		return domain.AttestationRecord{}, fmt.Errorf("%w: account %s", domain.ErrNotFound, addr)
	}
	return rec, nil
}

func (p *Program) Register(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress, in domain.CreateAttestation) (domain.TransactionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := p.checkSigner(signer, in.Owner); err != nil {
		return "", err
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	expected, err := address.DeriveRecordAddress(p.programID, in.Owner, in.ContentFingerprint)
	if err != nil {
		return "", err
	}
	if expected.Key != addr.Key {
		return "", fmt.Errorf("%w: seeds constraint violated for %s", domain.ErrRejected, addr)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.records[addr.Key]; exists {
		return "", fmt.Errorf("%w: account %s already in use", domain.ErrAlreadyExists, addr)
	}
	txID, err := p.sign(ctx, signer, "register_content", addr.Key)
	if err != nil {
		return "", err
	}
	now := p.clock().UTC().Truncate(time.Second)
	p.records[addr.Key] = domain.AttestationRecord{
		Address:             addr.Key,
		Owner:               in.Owner,
		ContentFingerprint:  in.ContentFingerprint,
		MetadataFingerprint: in.MetadataFingerprint,
		ContentType:         in.ContentType,
		Title:               in.Title,
		Description:         in.Description,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return txID, nil
}

func (p *Program) Update(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress, upd domain.AttestationUpdate) (domain.TransactionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := upd.Validate(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[addr.Key]
	if !ok {
		return "", fmt.Errorf("%w: account %s not initialized", domain.ErrNotFound, addr)
	}
	if err := p.checkSigner(signer, rec.Owner); err != nil {
		return "", err
	}
	if rec.Revoked {
		return "", fmt.Errorf("%w: attestation %s is revoked", domain.ErrRejected, addr)
	}
	txID, err := p.sign(ctx, signer, "update_attestation", addr.Key)
	if err != nil {
		return "", err
	}
	if upd.MetadataFingerprint != nil {
		rec.MetadataFingerprint = *upd.MetadataFingerprint
	}
	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	rec.UpdatedAt = p.clock().UTC().Truncate(time.Second)
	p.records[addr.Key] = rec
	return txID, nil
}

func (p *Program) Revoke(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress) (domain.TransactionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[addr.Key]
	if !ok {
		return "", fmt.Errorf("%w: account %s not initialized", domain.ErrNotFound, addr)
	}
	if err := p.checkSigner(signer, rec.Owner); err != nil {
		return "", err
	}
	txID, err := p.sign(ctx, signer, "revoke_attestation", addr.Key)
	if err != nil {
		return "", err
	}
	rec.Revoked = true
	rec.UpdatedAt = p.clock().UTC().Truncate(time.Second)
	p.records[addr.Key] = rec
	return txID, nil
}

func (p *Program) ListByOwner(ctx context.Context, owner domain.PublicKey) ([]domain.AttestationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.AttestationRecord, 0)
	for _, rec := range p.records {
		if rec.Owner == owner {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ContentFingerprint < out[j].ContentFingerprint
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (p *Program) checkSigner(signer domain.Wallet, owner domain.PublicKey) error {
	if signer == nil {
		return fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	if signer.PublicKey() != owner {
		return fmt.Errorf("%w: signer %s is not the record owner", domain.ErrRejected, signer.PublicKey())
	}
	return nil
}

// sign has the wallet sign a message unique to this write and uses the
// signature as the transaction id. Callers hold p.mu.
func (p *Program) sign(ctx context.Context, signer domain.Wallet, instruction string, addr domain.PublicKey) (domain.TransactionID, error) {
	p.seq++
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], p.seq)
	h := sha256.New()
	h.Write([]byte(instruction))
	h.Write(addr[:])
	h.Write(p.programID[:])
	h.Write(seq[:])
	sig, err := signer.SignTransaction(ctx, h.Sum(nil))
	if err != nil {
		return "", err
	}
	return domain.TransactionID(base58.Encode(sig)), nil
}

var _ domain.AttestationProgram = (*Program)(nil)
