package soft

import (
	"context"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"guardians/internal/domain"
)

func TestSignAndVerify(t *testing.T) {
	w, err := FromConfig("", strings.Repeat("01", 32), "")
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	msg := []byte("message")
	sig, err := w.SignTransaction(context.Background(), msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(w.PublicKey(), msg, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := Verify(w.PublicKey(), []byte("other"), sig); err == nil {
		t.Fatalf("expected verification failure for a different message")
	}
}

func TestSignAllTransactions(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sigs, err := w.SignAllTransactions(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("sign all: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}
}

func TestNilWalletIsNotReady(t *testing.T) {
	var w *Wallet
	if _, err := w.SignTransaction(context.Background(), []byte("m")); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestKeypairFileRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	if err := w.WriteKeypairFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := FromConfig("", "", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PublicKey() != w.PublicKey() {
		t.Fatalf("expected same public key after reload")
	}
}

func TestFromConfigEmpty(t *testing.T) {
	w, err := FromConfig("", "", "")
	if err != nil || w != nil {
		t.Fatalf("expected nil wallet without error, got %v %v", w, err)
	}
	if _, err := FromConfig("", hex.EncodeToString([]byte{1, 2, 3}), ""); err == nil {
		t.Fatalf("expected error for short seed")
	}
}
