package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"

	"hl_gateway/internal/agent"
	"hl_gateway/internal/domain"
	"hl_gateway/internal/engine"
	"hl_gateway/internal/infra"
	"hl_gateway/internal/infra/hyperliquid"
	"hl_gateway/internal/infra/storage"
	"hl_gateway/internal/service"
	"hl_gateway/internal/signing"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Metrics *infra.Metrics
	Storage *storage.Storage // nil when the registry is disabled
	Client  *hyperliquid.Client
	Stream  *hyperliquid.Stream // nil when realtime is off
	Cache   *service.MarketDataCache
	Gateway *service.Gateway
	Agents  *agent.Manager

	configPath string
	envPath    string
	ids        identities
}

// identities is what the secrets resolve to. durable signs approvals, trader
// signs trading actions, account is whose state is read.
type identities struct {
	durable *signing.Identity
	trader  *signing.Identity
	account mo.Option[common.Address]
	vault   mo.Option[common.Address]
}

// NewBootstrap creates a new Bootstrap instance. envPath may be empty to
// use ~/.config/hyperliquid-mcp/.env.
func NewBootstrap(configPath, envPath string) *Bootstrap {
	return &Bootstrap{configPath: configPath, envPath: envPath}
}

// Initialize loads configuration and secrets and wires every component.
// Nothing talks to the network yet.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping hl-gateway...")

	// 1. Secrets file, then config (env wins over the file)
	if b.envPath == "" {
		p, err := infra.EnvFilePath()
		if err != nil {
			return err
		}
		b.envPath = p
	}
	if err := infra.LoadEnvFile(b.envPath); err != nil && !errors.Is(err, domain.ErrConfigNotFound) {
		return fmt.Errorf("load %s: %w", b.envPath, err)
	}

	cfg, err := infra.LoadConfig(b.configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	b.Metrics = infra.NewMetrics()

	// 3. Identities
	ids, err := resolveIdentities(cfg.Secrets)
	if err != nil {
		return err
	}
	b.ids = ids
	logIdentities(ids, cfg.Chain())

	// 4. Agent registry (DB)
	if cfg.Storage.Enabled {
		path := cfg.Storage.Path
		if path == "" {
			if path, err = infra.DefaultDBPath(); err != nil {
				return err
			}
		}
		store, err := storage.NewStorage(path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Info("✅ Agent registry initialized", slog.String("path", path))
	}

	// 5. Exchange client, cache, gateway
	b.Client = hyperliquid.NewClient(cfg)
	b.Cache = service.NewMarketDataCache(b.Client, ids.account, service.TTLsFromConfig(cfg), b.Metrics)

	nonces := engine.NewClockNonceSequencer()
	b.Gateway = service.NewGateway(
		b.Client, b.Client, b.Cache, nonces, &service.BuilderState{},
		ids.durable, ids.trader, ids.account,
		service.GatewayConfig{
			Chain:   cfg.Chain(),
			Vault:   ids.vault,
			Builder: builderFee(cfg),
		},
		b.Metrics,
	)

	var recorder agent.Recorder
	if b.Storage != nil {
		recorder = b.Storage
	}
	b.Agents = agent.NewManager(b.Gateway, nonces, recorder, b.envPath, cfg.Chain())
	b.Gateway.SetAgentCreator(b.Agents)

	if b.Gateway.ReadOnly() {
		slog.Warn("No agent key configured, trading is disabled",
			slog.String("hint", "set "+infra.EnvAgentPrivateKey+" or "+infra.EnvPrivateKey))
	}
	return nil
}

// NeedsSetup reports whether the first-run flow applies: a durable key is
// present but neither an agent key nor a vault.
func (b *Bootstrap) NeedsSetup() bool {
	return b.ids.durable.CanSign() && b.ids.trader == nil && b.ids.vault.IsAbsent()
}

// Setup creates an agent, persists it, approves the builder fee and makes
// the agent the trading identity. A key that could not be saved is still
// used for this run.
func (b *Bootstrap) Setup(ctx context.Context) error {
	slog.Info("🔧 Running first-time setup",
		slog.Any("durable", b.ids.durable),
		slog.String("network", string(b.Config.Chain())),
	)

	agentID, path, err := b.Gateway.CreateAgent(ctx)
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &perr) && agentID != nil:
		slog.Error("Agent key was not saved and will be lost on exit", slog.Any("error", err))
	case err != nil:
		return fmt.Errorf("create agent: %w", err)
	default:
		slog.Info("✅ Agent created", slog.String("agent", agentID.Address().Hex()), slog.String("path", path))
	}
	b.ids.trader = agentID

	if _, err := b.Gateway.ApproveBuilderFee(ctx); err != nil {
		slog.Warn("Builder fee approval failed", slog.Any("error", err))
	} else {
		slog.Info("✅ Builder fee approved", slog.String("max_fee_rate", b.Config.Builder.MaxFeeRate))
	}
	return nil
}

// Start checks the builder approval and launches the live feed, the event
// processor and the metadata poller.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.ids.account.IsPresent() {
		approved, err := b.Gateway.CheckBuilderFee(ctx)
		switch {
		case err != nil:
			slog.Warn("Builder fee check failed", slog.Any("error", err))
		case approved:
			slog.Info("Builder fee approved for this account")
		default:
			slog.Warn("Builder fee not approved for this account; orders are sent without a builder",
				slog.String("hint", "set "+infra.EnvPrivateKey+" and restart to approve"))
		}
	}

	if b.Storage != nil {
		if rec, err := b.Storage.LatestAgent(ctx, string(b.Config.Chain())); err != nil {
			slog.Warn("Agent registry read failed", slog.Any("error", err))
		} else if rec != nil {
			slog.Info("Latest registered agent", slog.String("agent", rec.Address), slog.String("label", rec.Label))
		}
	}

	if !b.Config.Realtime.Enabled {
		slog.Info("Realtime disabled, reads go straight to the API")
		return nil
	}

	user := ""
	if addr, ok := b.ids.account.Get(); ok {
		user = strings.ToLower(addr.Hex())
	}
	b.Stream = hyperliquid.NewStream(b.Config.WSURL(), user, 0, b.Metrics)
	if err := b.Stream.Connect(ctx); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	b.Cache.StartEventProcessor(ctx, b.Stream.Events())
	b.Cache.StartMetaPoller(ctx)
	slog.Info("✅ Live feed started", slog.String("url", b.Config.WSURL()))
	return nil
}

// Shutdown stops background work and closes the registry.
func (b *Bootstrap) Shutdown() {
	if b.Stream != nil {
		b.Stream.Disconnect()
	}
	if b.Cache != nil {
		b.Cache.Stop()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Closing agent registry failed", slog.Any("error", err))
		}
	}
}

func resolveIdentities(s infra.Secrets) (identities, error) {
	var ids identities

	if s.PrivateKey != "" {
		id, err := signing.IdentityFromHex(s.PrivateKey)
		if err != nil {
			return ids, &domain.ConfigError{Field: infra.EnvPrivateKey, Err: err}
		}
		ids.durable = id
	}
	if s.AgentPrivateKey != "" {
		id, err := signing.IdentityFromHex(s.AgentPrivateKey)
		if err != nil {
			return ids, &domain.ConfigError{Field: infra.EnvAgentPrivateKey, Err: err}
		}
		ids.trader = id
	}
	if s.VaultAddress != "" {
		if !common.IsHexAddress(s.VaultAddress) {
			return ids, &domain.ConfigError{Field: infra.EnvVaultAddress, Err: fmt.Errorf("invalid address %q", s.VaultAddress)}
		}
		ids.vault = mo.Some(common.HexToAddress(s.VaultAddress))
	}

	// Account reads: vault, then the durable key's address, then the
	// configured wallet address, then the agent itself.
	switch {
	case ids.vault.IsPresent():
		ids.account = ids.vault
	case ids.durable != nil:
		ids.account = mo.Some(ids.durable.Address())
	case s.WalletAddress != "":
		if !common.IsHexAddress(s.WalletAddress) {
			return ids, &domain.ConfigError{Field: infra.EnvWalletAddress, Err: fmt.Errorf("invalid address %q", s.WalletAddress)}
		}
		ids.account = mo.Some(common.HexToAddress(s.WalletAddress))
	case ids.trader != nil:
		ids.account = mo.Some(ids.trader.Address())
	}
	return ids, nil
}

func logIdentities(ids identities, chain domain.Chain) {
	attrs := []any{slog.String("network", string(chain))}
	if ids.durable != nil {
		attrs = append(attrs, slog.Any("durable", ids.durable))
	}
	if ids.trader != nil {
		attrs = append(attrs, slog.Any("agent", ids.trader))
	}
	if a, ok := ids.account.Get(); ok {
		attrs = append(attrs, slog.String("account", a.Hex()))
	}
	if v, ok := ids.vault.Get(); ok {
		attrs = append(attrs, slog.String("vault", v.Hex()))
	}
	slog.Info("Identities resolved", attrs...)

	if a, ok := ids.account.Get(); ok && ids.trader != nil && a == ids.trader.Address() {
		slog.Warn("No main wallet address configured; account queries use the agent address",
			slog.String("hint", "set "+infra.EnvWalletAddress))
	}
}

func builderFee(cfg *infra.Config) service.BuilderFee {
	addr := cfg.Builder.Address
	if addr == "" {
		addr = infra.DefaultBuilderAddress
	}
	rate := cfg.Builder.MaxFeeRate
	if rate == "" {
		rate = infra.DefaultMaxFeeRate
	}
	return service.BuilderFee{
		Address:    common.HexToAddress(addr),
		Fee:        cfg.Builder.Fee,
		MaxFeeRate: rate,
	}
}
