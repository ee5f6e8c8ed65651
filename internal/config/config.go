package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"guardians/internal/domain"
)

const (
	LedgerModeRPC    = "rpc"
	LedgerModeMemory = "memory"

	// DefaultProgramID is the deployed attestation program.
	DefaultProgramID = "8LZeYCxDPhGyMd8Fc4aumD1WuHmh2GUcvpQKJEZa9ycC"

	// FileEnv names the optional YAML file read before the environment.
	FileEnv = "GUARDIANS_CONFIG"
)

type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`
	LogMode     string `yaml:"log_mode"`
	LogLevel    string `yaml:"log_level"`
	// AdminAPIKey guards the routes that sign with the service wallet.
	AdminAPIKey string `yaml:"admin_api_key"`

	LedgerMode       string `yaml:"ledger_mode"`
	LedgerRPCURL     string `yaml:"ledger_rpc_url"`
	LedgerNetwork    string `yaml:"ledger_network"`
	LedgerCommitment string `yaml:"ledger_commitment"`
	ProgramID        string `yaml:"program_id"`
	IssuerAddress    string `yaml:"issuer_address"`
	SkipGenesisCheck bool   `yaml:"skip_genesis_check"`

	WalletKeyBase64   string `yaml:"wallet_key_base64"`
	WalletSeedHex     string `yaml:"wallet_seed_hex"`
	WalletKeypairPath string `yaml:"wallet_keypair_path"`

	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	ConfirmTimeout   time.Duration `yaml:"confirm_timeout"`
	CheckDebounce    time.Duration `yaml:"check_debounce"`
	StrictCID        bool          `yaml:"strict_cid"`

	PinataJWT        string `yaml:"pinata_jwt"`
	PinataAPIURL     string `yaml:"pinata_api_url"`
	PinataGatewayURL string `yaml:"pinata_gateway_url"`

	CacheEnabled    bool `yaml:"cache_enabled"`
	CacheTTLSeconds int  `yaml:"cache_ttl_seconds"`

	RateLimitRequests      int  `yaml:"rate_limit_requests"`
	RateLimitWindowSeconds int  `yaml:"rate_limit_window_seconds"`
	RateLimitFailClosed    bool `yaml:"rate_limit_fail_closed"`
	RateLimitMaxKeys       int  `yaml:"rate_limit_max_keys"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	PolicyBundlePath string `yaml:"policy_bundle_path"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:               ":8080",
		LogMode:                "development",
		LogLevel:               "info",
		LedgerMode:             LedgerModeMemory,
		LedgerNetwork:          string(domain.NetworkLocalnet),
		LedgerCommitment:       "confirmed",
		ProgramID:              DefaultProgramID,
		RetryMaxAttempts:       3,
		RetryDelay:             500 * time.Millisecond,
		ConfirmTimeout:         30 * time.Second,
		CheckDebounce:          500 * time.Millisecond,
		StrictCID:              false,
		CacheEnabled:           true,
		CacheTTLSeconds:        30,
		RateLimitWindowSeconds: 60,
		RateLimitMaxKeys:       10000,
	}
}

// FromEnv reads the environment over the built-in defaults.
func FromEnv() Config {
	return overlayEnv(Defaults())
}

// Load reads the YAML file named by GUARDIANS_CONFIG when set, applies the
// environment on top and validates the result.
func Load() (Config, error) {
	cfg, err := Resolve()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve applies the optional config file and then the environment over the
// defaults, leaving validation to the caller.
func Resolve() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		fromFile, err := LoadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = fromFile
	}
	return overlayEnv(cfg), nil
}

// LoadFile decodes path over base. Keys missing from the file keep their
// base values.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func overlayEnv(c Config) Config {
	c.HTTPAddr = envDefault("HTTP_ADDR", c.HTTPAddr)
	c.PostgresDSN = envDefault("POSTGRES_DSN", c.PostgresDSN)
	c.LogMode = envDefault("LOG_MODE", c.LogMode)
	c.LogLevel = envDefault("LOG_LEVEL", c.LogLevel)
	c.AdminAPIKey = envDefault("ADMIN_API_KEY", c.AdminAPIKey)

	c.LedgerMode = strings.ToLower(envDefault("LEDGER_MODE", c.LedgerMode))
	c.LedgerRPCURL = envDefault("LEDGER_RPC_URL", c.LedgerRPCURL)
	c.LedgerNetwork = envDefault("LEDGER_NETWORK", c.LedgerNetwork)
	c.LedgerCommitment = envDefault("LEDGER_COMMITMENT", c.LedgerCommitment)
	c.ProgramID = envDefault("PROGRAM_ID", c.ProgramID)
	c.IssuerAddress = envDefault("ISSUER_ADDRESS", c.IssuerAddress)
	c.SkipGenesisCheck = envBoolDefault("SKIP_GENESIS_CHECK", c.SkipGenesisCheck)

	c.WalletKeyBase64 = envDefault("WALLET_KEY_BASE64", c.WalletKeyBase64)
	c.WalletSeedHex = envDefault("WALLET_SEED_HEX", c.WalletSeedHex)
	c.WalletKeypairPath = envDefault("WALLET_KEYPAIR_PATH", c.WalletKeypairPath)

	c.RetryMaxAttempts = envIntDefault("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryDelay = envDurationDefault("RETRY_DELAY_MS", c.RetryDelay)
	c.ConfirmTimeout = envDurationDefault("CONFIRM_TIMEOUT_MS", c.ConfirmTimeout)
	c.CheckDebounce = envDurationDefault("CHECK_DEBOUNCE_MS", c.CheckDebounce)
	c.StrictCID = envBoolDefault("STRICT_CID", c.StrictCID)

	c.PinataJWT = envDefault("PINATA_JWT", c.PinataJWT)
	c.PinataAPIURL = envDefault("PINATA_API_URL", c.PinataAPIURL)
	c.PinataGatewayURL = envDefault("PINATA_GATEWAY_URL", c.PinataGatewayURL)

	c.CacheEnabled = envBoolDefault("CACHE_ENABLED", c.CacheEnabled)
	c.CacheTTLSeconds = envIntDefault("CACHE_TTL_SECONDS", c.CacheTTLSeconds)

	c.RateLimitRequests = envIntDefault("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindowSeconds = envIntDefault("RATE_LIMIT_WINDOW_SECONDS", c.RateLimitWindowSeconds)
	c.RateLimitFailClosed = envBoolDefault("RATE_LIMIT_FAIL_CLOSED", c.RateLimitFailClosed)
	c.RateLimitMaxKeys = envIntDefault("RATE_LIMIT_MAX_KEYS", c.RateLimitMaxKeys)

	c.RedisAddr = envDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envDefault("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envIntDefault("REDIS_DB", c.RedisDB)

	c.PolicyBundlePath = envDefault("POLICY_BUNDLE_PATH", c.PolicyBundlePath)
	return c
}

func (c Config) Validate() error {
	var errs []error
	switch c.LedgerMode {
	case LedgerModeMemory:
	case LedgerModeRPC:
		if strings.TrimSpace(c.LedgerRPCURL) == "" {
			errs = append(errs, errors.New("LEDGER_RPC_URL is required when LEDGER_MODE=rpc"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_MODE %q", c.LedgerMode))
	}
	if domain.ParseNetwork(c.LedgerNetwork) == domain.NetworkUnknown {
		errs = append(errs, fmt.Errorf("unknown LEDGER_NETWORK %q", c.LedgerNetwork))
	}
	if _, err := domain.ParsePublicKey(c.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("PROGRAM_ID: %w", err))
	}
	if c.IssuerAddress != "" {
		if _, err := domain.ParsePublicKey(c.IssuerAddress); err != nil {
			errs = append(errs, fmt.Errorf("ISSUER_ADDRESS: %w", err))
		}
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RetryDelay < 0 || c.ConfirmTimeout <= 0 || c.CheckDebounce < 0 {
		errs = append(errs, errors.New("retry delay, confirm timeout and debounce must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) Network() domain.Network {
	return domain.ParseNetwork(c.LedgerNetwork)
}

func (c Config) CacheTTL() time.Duration {
	if !c.CacheEnabled || c.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

// envDurationDefault reads a millisecond count.
func envDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
