package usecase

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"guardians/internal/domain"
	"guardians/internal/infra/ledger/memory"
	"guardians/internal/infra/wallet/soft"
	"guardians/internal/platform/logger"
)

func testKey(tag string) domain.PublicKey {
	return domain.PublicKey(sha256.Sum256([]byte(tag)))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// flakyProgram wraps the in-memory program, counts calls and fails the next
// calls of an operation with queued errors.
type flakyProgram struct {
	*memory.Program

	mu      sync.Mutex
	calls   map[string]int
	fail    map[string][]error
	genesis string
}

func newFlakyProgram(now func() time.Time) *flakyProgram {
	return &flakyProgram{
		Program: memory.NewWithClock(testKey("program"), now),
		calls:   make(map[string]int),
		fail:    make(map[string][]error),
	}
}

func (p *flakyProgram) queue(op string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[op] = append(p.fail[op], errs...)
}

func (p *flakyProgram) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *flakyProgram) enter(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if q := p.fail[op]; len(q) > 0 {
		p.fail[op] = q[1:]
		return q[0]
	}
	return nil
}

func (p *flakyProgram) GenesisHash(ctx context.Context) (string, error) {
	if err := p.enter("genesis"); err != nil {
		return "", err
	}
	if p.genesis != "" {
		return p.genesis, nil
	}
	return p.Program.GenesisHash(ctx)
}

func (p *flakyProgram) GetRecord(ctx context.Context, addr domain.PublicKey) (domain.AttestationRecord, error) {
	if err := p.enter("get"); err != nil {
		return domain.AttestationRecord{}, err
	}
	return p.Program.GetRecord(ctx, addr)
}

func (p *flakyProgram) Register(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress, in domain.CreateAttestation) (domain.TransactionID, error) {
	if err := p.enter("register"); err != nil {
		return "", err
	}
	return p.Program.Register(ctx, signer, addr, in)
}

func (p *flakyProgram) Update(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress, upd domain.AttestationUpdate) (domain.TransactionID, error) {
	if err := p.enter("update"); err != nil {
		return "", err
	}
	return p.Program.Update(ctx, signer, addr, upd)
}

func (p *flakyProgram) ListByOwner(ctx context.Context, owner domain.PublicKey) ([]domain.AttestationRecord, error) {
	if err := p.enter("list"); err != nil {
		return nil, err
	}
	return p.Program.ListByOwner(ctx, owner)
}

type stubCache struct {
	mu      sync.Mutex
	entries map[string]domain.AttestationRecord
	deletes int
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]domain.AttestationRecord)}
}

func (c *stubCache) Get(_ context.Context, key string) (*domain.AttestationRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (c *stubCache) Put(_ context.Context, key string, rec domain.AttestationRecord, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rec
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, key)
	return nil
}

type stubAttempts struct {
	rows []domain.SubmissionAttempt
}

func (s *stubAttempts) Append(_ context.Context, attempt domain.SubmissionAttempt) error {
	s.rows = append(s.rows, attempt)
	return nil
}

func (s *stubAttempts) ListByAddress(_ context.Context, address string) ([]domain.SubmissionAttempt, error) {
	var out []domain.SubmissionAttempt
	for _, row := range s.rows {
		if row.Address == address {
			out = append(out, row)
		}
	}
	return out, nil
}

type stubIndex struct {
	byFingerprint map[string][]domain.AttestationRecord
	err           error
}

func newStubIndex() *stubIndex {
	return &stubIndex{byFingerprint: make(map[string][]domain.AttestationRecord)}
}

func (s *stubIndex) Upsert(_ context.Context, rec domain.AttestationRecord) error {
	list := s.byFingerprint[rec.ContentFingerprint]
	for i := range list {
		if list[i].Address == rec.Address {
			list[i] = rec
			return nil
		}
	}
	s.byFingerprint[rec.ContentFingerprint] = append(list, rec)
	return nil
}

func (s *stubIndex) ListByFingerprint(_ context.Context, fp string) ([]domain.AttestationRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.AttestationRecord(nil), s.byFingerprint[fp]...), nil
}

// countingRegistry counts every call that reaches the registry.
type countingRegistry struct {
	inner AttestationRegistry
	mu    sync.Mutex
	calls int
}

func (c *countingRegistry) hit() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingRegistry) Owner() (domain.PublicKey, error) {
	c.hit()
	return c.inner.Owner()
}

func (c *countingRegistry) DeriveAddress(owner domain.PublicKey, fp string) (domain.RecordAddress, error) {
	c.hit()
	return c.inner.DeriveAddress(owner, fp)
}

func (c *countingRegistry) Exists(ctx context.Context, addr domain.RecordAddress) (bool, error) {
	c.hit()
	return c.inner.Exists(ctx, addr)
}

func (c *countingRegistry) Fetch(ctx context.Context, addr domain.RecordAddress) (domain.AttestationRecord, error) {
	c.hit()
	return c.inner.Fetch(ctx, addr)
}

func (c *countingRegistry) Create(ctx context.Context, in domain.CreateAttestation) (domain.TransactionID, error) {
	c.hit()
	return c.inner.Create(ctx, in)
}

func (c *countingRegistry) Update(ctx context.Context, addr domain.RecordAddress, upd domain.AttestationUpdate) (domain.TransactionID, error) {
	c.hit()
	return c.inner.Update(ctx, addr, upd)
}

func (c *countingRegistry) Revoke(ctx context.Context, addr domain.RecordAddress) (domain.TransactionID, error) {
	c.hit()
	return c.inner.Revoke(ctx, addr)
}

func (c *countingRegistry) ListByOwner(ctx context.Context, owner domain.PublicKey) ([]domain.AttestationRecord, error) {
	c.hit()
	return c.inner.ListByOwner(ctx, owner)
}

type fixture struct {
	now      time.Time
	program  *flakyProgram
	wallet   *soft.Wallet
	registry *RegistryClient
	ctrl     *LifecycleController
	reader   *VerificationReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w, err := soft.Generate()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), wallet: w}
	f.program = newFlakyProgram(func() time.Time { return f.now })
	f.registry = NewRegistryClient(f.program, w, domain.NetworkConfig{Network: domain.NetworkLocalnet})
	f.registry.Retry = RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	f.registry.Logger = logger.Nop()
	f.ctrl = NewLifecycleController(f.registry, false, logger.Nop())
	f.reader = &VerificationReader{Registry: f.registry, Network: string(domain.NetworkLocalnet), Logger: logger.Nop()}
	return f
}

func (f *fixture) address(t *testing.T, fp string) domain.RecordAddress {
	t.Helper()
	addr, err := f.registry.DeriveAddress(f.wallet.PublicKey(), fp)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return addr
}

func transient() error {
	return errors.Join(domain.ErrTransientNetwork, errors.New("503 service unavailable"))
}
