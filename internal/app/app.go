// Package app assembles the guardians service from its configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"guardians/internal/config"
	"guardians/internal/domain"
	"guardians/internal/infra/cachemem"
	"guardians/internal/infra/cacheredis"
	cryptoinfra "guardians/internal/infra/crypto"
	"guardians/internal/infra/db"
	httpinfra "guardians/internal/infra/http"
	"guardians/internal/infra/ledger/memory"
	"guardians/internal/infra/ledger/rpc"
	"guardians/internal/infra/metrics"
	"guardians/internal/infra/policyopa"
	"guardians/internal/infra/storage/pinata"
	"guardians/internal/infra/wallet/soft"
	"guardians/internal/platform/logger"
	"guardians/internal/usecase"
)

type App struct {
	Log      *logger.Logger
	Config   config.Config
	Registry *usecase.RegistryClient

	store  *db.Store
	server *httpinfra.Server
}

func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	registry, err := NewRegistry(cfg, log)
	if err != nil {
		return nil, err
	}
	reg := metrics.New()
	registry.Metrics = reg

	store, err := db.NewStore(cfg.PostgresDSN, log)
	if err != nil {
		return nil, err
	}
	hasDB := store.DB != nil

	verifier := &usecase.VerificationReader{
		Registry: registry,
		Network:  string(cfg.Network()),
		Logger:   log,
	}
	if cfg.IssuerAddress != "" {
		issuer, err := domain.ParsePublicKey(cfg.IssuerAddress)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("issuer address: %w", err)
		}
		verifier.Issuer = &issuer
	}

	engine, err := newPolicyEngine(ctx, cfg.PolicyBundlePath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	licenses := &usecase.LicenseService{
		Policy:       engine,
		Canonicalize: cryptoinfra.CanonicalizeAny,
		Network:      string(cfg.Network()),
		Logger:       log,
	}
	uploader := &usecase.ContentUploader{Logger: log}
	if cfg.PinataJWT != "" {
		storage, err := pinata.NewClient(pinata.Options{
			APIURL:     cfg.PinataAPIURL,
			GatewayURL: cfg.PinataGatewayURL,
			JWT:        cfg.PinataJWT,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		uploader.Storage = storage
		licenses.Storage = storage
	} else {
		log.Warn("PINATA_JWT not set; uploads disabled")
	}

	deps := httpinfra.ServerDeps{
		Lifecycle: usecase.NewLifecycleController(registry, cfg.StrictCID, log),
		Registry:  registry,
		Verifier:  verifier,
		Uploader:  uploader,
		Licenses:  licenses,
		Metrics:   reg,
		Logger:    log,
		HasDB:     hasDB,
	}
	if hasDB {
		registry.Index = store.Attestations()
		registry.Attempts = store.Attempts()
		verifier.Index = store.Attestations()
		licenses.Repo = store.Licenses()
		verifier.Licenses = licenses
		deps.Attempts = store.Attempts()
	}

	return &App{
		Log:      log,
		Config:   cfg,
		Registry: registry,
		store:    store,
		server:   httpinfra.NewServer(cfg, deps),
	}, nil
}

// NewRegistry builds the ledger-backed registry client described by cfg. The
// wallet is optional; without one the client serves reads only.
func NewRegistry(cfg config.Config, log *logger.Logger) (*usecase.RegistryClient, error) {
	if log == nil {
		log = logger.Nop()
	}
	programID, err := domain.ParsePublicKey(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	program, err := newProgram(cfg, programID)
	if err != nil {
		return nil, err
	}

	registry := usecase.NewRegistryClient(program, nil, domain.NetworkConfig{
		Network:          cfg.Network(),
		ProgramID:        programID,
		SkipGenesisCheck: cfg.SkipGenesisCheck,
	})
	w, err := soft.FromConfig(cfg.WalletKeyBase64, cfg.WalletSeedHex, cfg.WalletKeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	if w != nil {
		registry.Wallet = w
		log.Info("service wallet loaded", "owner", w.PublicKey().String())
	} else {
		log.Warn("no wallet configured; submissions disabled")
	}
	registry.Retry = usecase.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, Delay: cfg.RetryDelay}
	registry.CacheTTL = cfg.CacheTTL()
	registry.Logger = log
	if registry.CacheTTL > 0 {
		registry.Cache, err = newCache(cfg, log)
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *App) Server() *httpinfra.Server {
	return a.server
}

// Run serves HTTP until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	return a.server.Run(ctx)
}

func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("close store", "error", err)
		}
		a.store = nil
	}
}

func newProgram(cfg config.Config, programID domain.PublicKey) (domain.AttestationProgram, error) {
	switch cfg.LedgerMode {
	case config.LedgerModeRPC:
		client, err := rpc.NewClient(cfg.LedgerRPCURL, programID,
			rpc.WithCommitment(cfg.LedgerCommitment),
			rpc.WithConfirmTimeout(cfg.ConfirmTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("ledger rpc: %w", err)
		}
		return client, nil
	default:
		return memory.New(programID), nil
	}
}

func newCache(cfg config.Config, log *logger.Logger) (usecase.RecordCache, error) {
	if cfg.RedisAddr == "" {
		return cachemem.New(), nil
	}
	cache, err := cacheredis.New(cacheredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("record cache backed by redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL().Round(time.Second))
	return cache, nil
}

func newPolicyEngine(ctx context.Context, bundlePath string) (*policyopa.Engine, error) {
	if bundlePath == "" {
		return policyopa.NewEngine(ctx)
	}
	engine, err := policyopa.NewEngineFromBundlePath(ctx, bundlePath)
	if err != nil {
		return nil, fmt.Errorf("load policy bundle: %w", err)
	}
	return engine, nil
}
