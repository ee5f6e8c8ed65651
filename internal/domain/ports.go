package domain

import (
	"context"
	"io"
	"time"
)

// Wallet is the signing identity of the connected owner.
type Wallet interface {
	PublicKey() PublicKey
	// SignTransaction returns the detached signature over a serialized
	// transaction message.
	SignTransaction(ctx context.Context, message []byte) ([]byte, error)
	// SignAllTransactions signs several messages in order. No service path
	// batches writes; it completes the wallet adapter contract so any adapter
	// wallet can be used here.
	SignAllTransactions(ctx context.Context, messages [][]byte) ([][]byte, error)
}

// AttestationProgram is the remote ledger program holding attestation records.
// Adapters report failures with the sentinels in errors.go where they can
// classify them; anything else is classified by the caller.
type AttestationProgram interface {
	ProgramID() PublicKey
	GenesisHash(ctx context.Context) (string, error)
	GetRecord(ctx context.Context, address PublicKey) (AttestationRecord, error)
	Register(ctx context.Context, signer Wallet, address RecordAddress, in CreateAttestation) (TransactionID, error)
	Update(ctx context.Context, signer Wallet, address RecordAddress, upd AttestationUpdate) (TransactionID, error)
	Revoke(ctx context.Context, signer Wallet, address RecordAddress) (TransactionID, error)
	ListByOwner(ctx context.Context, owner PublicKey) ([]AttestationRecord, error)
}

type PinnedObject struct {
	Fingerprint string `json:"fingerprint"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
}

// ContentStorage pins bytes and JSON documents to content-addressed storage.
type ContentStorage interface {
	PinFile(ctx context.Context, name, contentType string, r io.Reader) (PinnedObject, error)
	PinJSON(ctx context.Context, name string, doc any) (PinnedObject, error)
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
