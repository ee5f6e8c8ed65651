// Package soft provides an in-process ed25519 wallet.
package soft

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"guardians/internal/domain"
)

type Wallet struct {
	key    ed25519.PrivateKey
	public domain.PublicKey
}

func New(key ed25519.PrivateKey) (*Wallet, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key length")
	}
	pub, err := domain.PublicKeyFromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Wallet{key: append(ed25519.PrivateKey(nil), key...), public: pub}, nil
}

// Generate creates a fresh random wallet.
func Generate() (*Wallet, error) {
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// FromConfig loads the first configured key: base64 private key, hex seed,
// then a keypair file. It returns nil without error when nothing is set.
func FromConfig(keyBase64, seedHex, keypairPath string) (*Wallet, error) {
	switch {
	case strings.TrimSpace(keyBase64) != "":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyBase64))
		if err != nil {
			return nil, fmt.Errorf("decode wallet key: %w", err)
		}
		return fromRaw(raw)
	case strings.TrimSpace(seedHex) != "":
		raw, err := hex.DecodeString(strings.TrimSpace(seedHex))
		if err != nil {
			return nil, fmt.Errorf("decode wallet seed: %w", err)
		}
		return fromRaw(raw)
	case strings.TrimSpace(keypairPath) != "":
		return LoadKeypairFile(keypairPath)
	default:
		return nil, nil
	}
}

// LoadKeypairFile reads a JSON array of 64 key bytes.
func LoadKeypairFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair file: %w", err)
	}
	raw = make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, errors.New("keypair file holds a non-byte value")
		}
		raw[i] = byte(v)
	}
	return fromRaw(raw)
}

// WriteKeypairFile stores the wallet as a JSON byte array with owner-only
// permissions.
func (w *Wallet) WriteKeypairFile(path string) error {
	if w == nil {
		return errors.New("wallet is nil")
	}
	ints := make([]int, len(w.key))
	for i, b := range w.key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func fromRaw(raw []byte) (*Wallet, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return New(ed25519.NewKeyFromSeed(raw))
	case ed25519.PrivateKeySize:
		return New(ed25519.PrivateKey(raw))
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}

func (w *Wallet) PublicKey() domain.PublicKey {
	if w == nil {
		return domain.PublicKey{}
	}
	return w.public
}

func (w *Wallet) SignTransaction(ctx context.Context, message []byte) ([]byte, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(message) == 0 {
		return nil, errors.New("empty transaction message")
	}
	return ed25519.Sign(w.key, message), nil
}

func (w *Wallet) SignAllTransactions(ctx context.Context, messages [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(messages))
	for _, msg := range messages {
		sig, err := w.SignTransaction(ctx, msg)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

// Verify checks a signature produced by any wallet.
func Verify(pub domain.PublicKey, message, sig []byte) error {
	if len(sig) != ed25519.SignatureSize {
		return errors.New("invalid ed25519 signature length")
	}
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}
