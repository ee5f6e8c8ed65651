package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"guardians/internal/domain"
	"guardians/internal/infra/address"
	"guardians/internal/platform/logger"
)

const DefaultRecordCacheTTL = 30 * time.Second

// RegistryClient reads and writes attestation records through an
// AttestationProgram, classifying every remote failure and retrying the
// transient ones.
type RegistryClient struct {
	Program  domain.AttestationProgram
	Wallet   domain.Wallet
	Network  domain.NetworkConfig
	Retry    RetryPolicy
	Cache    RecordCache
	CacheTTL time.Duration
	Index    AttestationIndex
	Attempts SubmissionAttemptRepository
	Metrics  RegistryMetrics
	Logger   *logger.Logger
	Clock    func() time.Time

	fetches singleflight.Group

	// genMu guards gens, the count of confirmed writes per cache key. A fetch
	// that raced a write must not cache what it read.
	genMu sync.Mutex
	gens  map[string]uint64

	networkMu      sync.Mutex
	networkChecked bool
}

func NewRegistryClient(program domain.AttestationProgram, wallet domain.Wallet, network domain.NetworkConfig) *RegistryClient {
	return &RegistryClient{
		Program:  program,
		Wallet:   wallet,
		Network:  network,
		Retry:    DefaultRetryPolicy(),
		CacheTTL: DefaultRecordCacheTTL,
		Clock:    time.Now,
	}
}

func (c *RegistryClient) Owner() (domain.PublicKey, error) {
	if c == nil || c.Wallet == nil {
		return domain.PublicKey{}, fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	owner := c.Wallet.PublicKey()
	if owner.IsZero() {
		return domain.PublicKey{}, fmt.Errorf("%w: wallet has no public key", domain.ErrNotReady)
	}
	return owner, nil
}

func (c *RegistryClient) DeriveAddress(owner domain.PublicKey, contentFingerprint string) (domain.RecordAddress, error) {
	if c == nil || c.Program == nil {
		return domain.RecordAddress{}, fmt.Errorf("%w: ledger program not configured", domain.ErrNotReady)
	}
	return address.DeriveRecordAddress(c.Program.ProgramID(), owner, contentFingerprint)
}

func (c *RegistryClient) Exists(ctx context.Context, addr domain.RecordAddress) (bool, error) {
	_, err := c.Fetch(ctx, addr)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fetch reads through the cache. Concurrent misses for the same address share
// one ledger read, which keeps going when the caller that started it gives up.
func (c *RegistryClient) Fetch(ctx context.Context, addr domain.RecordAddress) (domain.AttestationRecord, error) {
	if err := c.ready(false); err != nil {
		return domain.AttestationRecord{}, err
	}
	key := addr.Key.String()
	if c.Cache != nil {
		rec, ok, err := c.Cache.Get(ctx, key)
		if err != nil {
			c.Logger.Warn("record cache read failed", "address", key, "error", err)
		} else if ok && rec != nil {
			return *rec, nil
		}
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(key, func() (any, error) {
		gen := c.generation(key)
		rec, err := c.fetchFresh(flightCtx, addr)
		if err != nil {
			return nil, err
		}
		c.storeFetched(flightCtx, key, gen, rec)
		return rec, nil
	})
	select {
	case <-ctx.Done():
		return domain.AttestationRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.AttestationRecord{}, res.Err
		}
		return res.Val.(domain.AttestationRecord), nil
	}
}

func (c *RegistryClient) generation(key string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gens[key]
}

// storeFetched caches rec unless a write to key was confirmed after the read
// began. The lock is held across Put so invalidate's Delete always follows it.
func (c *RegistryClient) storeFetched(ctx context.Context, key string, gen uint64, rec domain.AttestationRecord) {
	if c.Cache == nil {
		return
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.gens[key] != gen {
		c.Logger.Debug("skipping cache fill after concurrent write", "address", key)
		return
	}
	if err := c.Cache.Put(ctx, key, rec, c.CacheTTL); err != nil {
		c.Logger.Warn("record cache write failed", "address", key, "error", err)
	}
}

func (c *RegistryClient) invalidate(ctx context.Context, key string) error {
	c.genMu.Lock()
	if c.gens == nil {
		c.gens = make(map[string]uint64)
	}
	c.gens[key]++
	c.genMu.Unlock()
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Delete(ctx, key)
}

func (c *RegistryClient) fetchFresh(ctx context.Context, addr domain.RecordAddress) (domain.AttestationRecord, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return domain.AttestationRecord{}, err
	}
	rec, _, err := retry(ctx, c.Retry, c.hooks(), "getAccountInfo", func(ctx context.Context) (domain.AttestationRecord, error) {
		return c.Program.GetRecord(ctx, addr.Key)
	})
	return rec, err
}

func (c *RegistryClient) Create(ctx context.Context, in domain.CreateAttestation) (domain.TransactionID, error) {
	if err := c.ready(true); err != nil {
		return "", err
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	if in.Owner != c.Wallet.PublicKey() {
		return "", fmt.Errorf("%w: owner must be the connected wallet", domain.ErrValidation)
	}
	addr, err := c.DeriveAddress(in.Owner, in.ContentFingerprint)
	if err != nil {
		return "", err
	}
	return c.write(ctx, domain.ActionCreate, addr, "register_content", func(ctx context.Context) (domain.TransactionID, error) {
		return c.Program.Register(ctx, c.Wallet, addr, in)
	})
}

func (c *RegistryClient) Update(ctx context.Context, addr domain.RecordAddress, upd domain.AttestationUpdate) (domain.TransactionID, error) {
	if err := c.ready(true); err != nil {
		return "", err
	}
	if err := upd.Validate(); err != nil {
		return "", err
	}
	return c.write(ctx, domain.ActionUpdate, addr, "update_attestation", func(ctx context.Context) (domain.TransactionID, error) {
		return c.Program.Update(ctx, c.Wallet, addr, upd)
	})
}

func (c *RegistryClient) Revoke(ctx context.Context, addr domain.RecordAddress) (domain.TransactionID, error) {
	if err := c.ready(true); err != nil {
		return "", err
	}
	return c.write(ctx, domain.ActionRevoke, addr, "revoke_attestation", func(ctx context.Context) (domain.TransactionID, error) {
		return c.Program.Revoke(ctx, c.Wallet, addr)
	})
}

func (c *RegistryClient) ListByOwner(ctx context.Context, owner domain.PublicKey) ([]domain.AttestationRecord, error) {
	if err := c.ready(false); err != nil {
		return nil, err
	}
	if err := c.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	recs, _, err := retry(ctx, c.Retry, c.hooks(), "getProgramAccounts", func(ctx context.Context) ([]domain.AttestationRecord, error) {
		return c.Program.ListByOwner(ctx, owner)
	})
	return recs, err
}

func (c *RegistryClient) write(ctx context.Context, action domain.SubmissionAction, addr domain.RecordAddress, operation string, op func(context.Context) (domain.TransactionID, error)) (domain.TransactionID, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return "", err
	}
	tx, attempts, err := retry(ctx, c.Retry, c.hooks(), operation, op)
	c.afterWrite(ctx, action, addr, tx, attempts, err)
	if err != nil {
		return "", err
	}
	return tx, nil
}

// afterWrite records the outcome. On success the cached record is dropped and
// the index refreshed from the ledger; failures there are logged only.
func (c *RegistryClient) afterWrite(ctx context.Context, action domain.SubmissionAction, addr domain.RecordAddress, tx domain.TransactionID, attempts int, err error) {
	key := addr.Key.String()
	kind := domain.KindOf(err)
	if c.Metrics != nil {
		c.Metrics.ObserveWrite(action, kind, attempts)
	}
	log := c.Logger.With("action", string(action), "address", key, "attempts", attempts)
	if err != nil {
		log.Warn("attestation write failed", "error_kind", string(kind), "error", err)
	} else {
		log.Info("attestation write confirmed", "transaction_id", string(tx))
	}

	var rec domain.AttestationRecord
	var fetchErr error
	if err == nil {
		if derr := c.invalidate(ctx, key); derr != nil {
			log.Warn("record cache invalidation failed", "error", derr)
		}
		rec, fetchErr = c.Program.GetRecord(ctx, addr.Key)
		if fetchErr != nil {
			log.Warn("post-write read failed", "error", fetchErr)
		} else if c.Index != nil {
			if ierr := c.Index.Upsert(ctx, rec); ierr != nil {
				log.Warn("attestation index update failed", "error", ierr)
			}
		}
	}

	if c.Attempts == nil {
		return
	}
	attempt := domain.SubmissionAttempt{
		ID:                 uuid.NewString(),
		Address:            key,
		ContentFingerprint: rec.ContentFingerprint,
		Action:             action,
		Status:             domain.SubmissionStatusSucceeded,
		TransactionID:      string(tx),
		Attempts:           attempts,
		CreatedAt:          c.now(),
	}
	if c.Wallet != nil {
		attempt.Owner = c.Wallet.PublicKey().String()
	}
	if err != nil {
		attempt.Status = domain.SubmissionStatusFailed
		attempt.ErrorKind = kind
		attempt.ErrorMessage = err.Error()
	}
	if aerr := c.Attempts.Append(ctx, attempt); aerr != nil {
		log.Warn("submission attempt not recorded", "error", aerr)
	}
}

// ensureNetwork compares the ledger genesis hash with the configured network
// once. A mismatch fails closed and is checked again on the next call.
func (c *RegistryClient) ensureNetwork(ctx context.Context) error {
	if c.Network.SkipGenesisCheck {
		return nil
	}
	c.networkMu.Lock()
	defer c.networkMu.Unlock()
	if c.networkChecked {
		return nil
	}
	hash, _, err := retry(ctx, c.Retry, c.hooks(), "getGenesisHash", c.Program.GenesisHash)
	if err != nil {
		return err
	}
	got := domain.NetworkForGenesis(hash)
	if got != c.Network.Network {
		c.Logger.Error("ledger network mismatch", "expected", string(c.Network.Network), "got", string(got), "genesis", hash)
		return fmt.Errorf("%w: ledger reports %s, configured for %s", domain.ErrNetworkMismatch, got, c.Network.Network)
	}
	c.networkChecked = true
	return nil
}

func (c *RegistryClient) ready(needWallet bool) error {
	if c == nil || c.Program == nil {
		return fmt.Errorf("%w: ledger program not configured", domain.ErrNotReady)
	}
	if needWallet {
		if _, err := c.Owner(); err != nil {
			return err
		}
	}
	return nil
}

func (c *RegistryClient) hooks() retryHooks {
	return retryHooks{log: c.Logger, metrics: c.Metrics}
}

func (c *RegistryClient) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock().UTC()
}

var _ AttestationRegistry = (*RegistryClient)(nil)
