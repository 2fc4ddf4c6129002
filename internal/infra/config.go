package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hl_gateway/internal/domain"
)

const (
	// DefaultUserAgent identifies the gateway to the exchange API
	DefaultUserAgent = "hl-gateway/1.0"

	DefaultBuilderAddress = "0xdadcB94d61D4A14e8aD1b94Acf888120b7E807aE"
	DefaultBuilderFee     = 10 // tenths of a basis point
	DefaultMaxFeeRate     = "0.01%"
)

// Environment variables read on top of the YAML file.
const (
	EnvPrivateKey      = "HYPERLIQUID_PRIVATE_KEY"
	EnvAgentPrivateKey = "HYPERLIQUID_AGENT_PRIVATE_KEY"
	EnvWalletAddress   = "HYPERLIQUID_WALLET_ADDRESS"
	EnvVaultAddress    = "HYPERLIQUID_VAULT_ADDRESS"
	EnvNetwork         = "HYPERLIQUID_NETWORK"
	EnvRealtime        = "REALTIME_ENABLED"
)

// Config holds every setting of the gateway. Secrets never come from the
// YAML file; they are filled from the environment by LoadConfig.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Network string `yaml:"network"`

	API struct {
		RestURL string        `yaml:"rest_url"` // empty means the network default
		WSURL   string        `yaml:"ws_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Cache struct {
		MetaTTL       time.Duration `yaml:"meta_ttl"`
		AccountTTL    time.Duration `yaml:"account_ttl"`
		OpenOrdersTTL time.Duration `yaml:"open_orders_ttl"`
		PollInterval  time.Duration `yaml:"poll_interval"`
	} `yaml:"cache"`

	Realtime struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"realtime"`

	Builder struct {
		Address    string `yaml:"address"`
		Fee        uint64 `yaml:"fee"`
		MaxFeeRate string `yaml:"max_fee_rate"`
	} `yaml:"builder"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"` // empty means DefaultDBPath()
	} `yaml:"storage"`

	Metrics struct {
		Addr string `yaml:"addr"` // e.g. "127.0.0.1:9102"; empty disables
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"` // empty disables the rotating file
	} `yaml:"logging"`

	Secrets Secrets `yaml:"-"`
}

// Secrets are read only from the environment.
type Secrets struct {
	PrivateKey      string
	AgentPrivateKey string
	WalletAddress   string
	VaultAddress    string
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "hl-gateway"
	cfg.App.Version = "1.0.0"
	cfg.Network = string(domain.Mainnet)
	cfg.API.Timeout = 10 * time.Second
	cfg.Cache.MetaTTL = 5 * time.Second
	cfg.Cache.AccountTTL = 3 * time.Second
	cfg.Cache.OpenOrdersTTL = 2 * time.Second
	cfg.Cache.PollInterval = 5 * time.Second
	cfg.Realtime.Enabled = true
	cfg.Builder.Address = DefaultBuilderAddress
	cfg.Builder.Fee = DefaultBuilderFee
	cfg.Builder.MaxFeeRate = DefaultMaxFeeRate
	cfg.Storage.Enabled = true
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads the YAML file at path on top of DefaultConfig, then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE records from path into the process
// environment without overriding variables that are already set.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrConfigNotFound
		}
		return err
	}
	return nil
}

// Chain returns the configured network.
func (c *Config) Chain() domain.Chain {
	return domain.ParseChain(c.Network)
}

// RestURL returns the REST base URL, falling back to the network default.
func (c *Config) RestURL() string {
	if c.API.RestURL != "" {
		return strings.TrimRight(c.API.RestURL, "/")
	}
	return c.Chain().RestURL()
}

// WSURL returns the websocket URL, falling back to the network default.
func (c *Config) WSURL() string {
	if c.API.WSURL != "" {
		return c.API.WSURL
	}
	return c.Chain().WSURL()
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch strings.ToLower(c.Network) {
	case "mainnet", "testnet", "test":
	default:
		return &domain.ConfigError{Field: "network", Err: fmt.Errorf("unknown network %q", c.Network)}
	}

	if u, err := url.Parse(c.RestURL()); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &domain.ConfigError{Field: "api.rest_url", Err: fmt.Errorf("invalid URL %q", c.RestURL())}
	}
	if ws := c.WSURL(); !strings.HasPrefix(ws, "ws://") && !strings.HasPrefix(ws, "wss://") {
		return &domain.ConfigError{Field: "api.ws_url", Err: fmt.Errorf("invalid URL %q", ws)}
	}
	if c.API.Timeout <= 0 {
		return &domain.ConfigError{Field: "api.timeout", Err: errors.New("must be positive")}
	}

	ttls := []struct {
		field string
		value time.Duration
	}{
		{"cache.meta_ttl", c.Cache.MetaTTL},
		{"cache.account_ttl", c.Cache.AccountTTL},
		{"cache.open_orders_ttl", c.Cache.OpenOrdersTTL},
		{"cache.poll_interval", c.Cache.PollInterval},
	}
	for _, ttl := range ttls {
		if ttl.value <= 0 {
			return &domain.ConfigError{Field: ttl.field, Err: errors.New("must be positive")}
		}
	}

	if c.Builder.Address != "" && !common.IsHexAddress(c.Builder.Address) {
		return &domain.ConfigError{Field: "builder.address", Err: fmt.Errorf("invalid address %q", c.Builder.Address)}
	}
	for field, addr := range map[string]string{
		EnvWalletAddress: c.Secrets.WalletAddress,
		EnvVaultAddress:  c.Secrets.VaultAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("invalid address %q", addr)}
		}
	}

	return nil
}

// overrideWithEnv fills secrets and overrides network and realtime settings.
func overrideWithEnv(cfg *Config) {
	cfg.Secrets.PrivateKey = strings.TrimSpace(os.Getenv(EnvPrivateKey))
	cfg.Secrets.AgentPrivateKey = strings.TrimSpace(os.Getenv(EnvAgentPrivateKey))
	cfg.Secrets.WalletAddress = strings.TrimSpace(os.Getenv(EnvWalletAddress))
	cfg.Secrets.VaultAddress = strings.TrimSpace(os.Getenv(EnvVaultAddress))

	if network := os.Getenv(EnvNetwork); network != "" {
		cfg.Network = strings.ToLower(strings.TrimSpace(network))
	}
	if rt, ok := os.LookupEnv(EnvRealtime); ok {
		cfg.Realtime.Enabled = realtimeEnabled(rt)
	}
}

// realtimeEnabled treats only explicit negatives as "off".
func realtimeEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
