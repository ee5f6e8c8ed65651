package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrappedSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("%w: title too long", ErrValidation), KindValidation},
		{fmt.Errorf("create: %w", ErrAlreadyExists), KindAlreadyExists},
		{fmt.Errorf("%w: 503", ErrTransientNetwork), KindTransient},
		{ErrNetworkMismatch, KindNetworkMismatch},
		{errors.New("boom"), KindInternal},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestOnlyTransientIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("%w: timeout", ErrTransientNetwork)) {
		t.Fatalf("expected transient to be retryable")
	}
	for _, err := range []error{ErrAlreadyExists, ErrNotFound, ErrValidation, ErrUnconfirmed, ErrRejected} {
		if IsRetryable(err) {
			t.Fatalf("expected %v not retryable", err)
		}
	}
}

func TestPublicKeyRoundTripsBase58(t *testing.T) {
	var key PublicKey
	for i := range key {
		key[i] = byte(i + 1)
	}
	parsed, err := ParsePublicKey(key.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != key {
		t.Fatalf("expected round trip")
	}
	if _, err := ParsePublicKey("not-base58-0OIl"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var zero PublicKey
	if zero.String() != "11111111111111111111111111111111" {
		t.Fatalf("unexpected zero key encoding %s", zero.String())
	}
}

func TestCreateValidateLimits(t *testing.T) {
	owner := PublicKey{1}
	in := CreateAttestation{
		Owner:               owner,
		ContentFingerprint:  "cid",
		MetadataFingerprint: "meta",
		Title:               string(make([]byte, MaxTitleLen+1)),
	}
	if err := in.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected title limit violation, got %v", err)
	}
	in.Title = "ok"
	if err := in.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
