package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"hl_gateway/internal/domain"
	"hl_gateway/internal/event"
	"hl_gateway/internal/infra"
)

const (
	KindMeta       = "meta"
	KindSpotMeta   = "spotMeta"
	KindMids       = "allMids"
	KindAccount    = "clearinghouseState"
	KindOpenOrders = "openOrders"
)

// Fetcher is the read side of the exchange client.
type Fetcher interface {
	MetaAndAssetCtxs(ctx context.Context) (*domain.PerpMarkets, error)
	SpotMetaAndAssetCtxs(ctx context.Context) (*domain.SpotMarkets, error)
	AllMids(ctx context.Context) (map[string]decimal.Decimal, error)
	ClearinghouseState(ctx context.Context, user common.Address) (*domain.AccountSnapshot, error)
	OpenOrders(ctx context.Context, user common.Address) ([]domain.OpenOrder, error)
}

// CacheTTLs configures the TTL-gated entries.
type CacheTTLs struct {
	Meta         time.Duration
	Account      time.Duration
	OpenOrders   time.Duration
	PollInterval time.Duration
}

// TTLsFromConfig reads the cache section of the config.
func TTLsFromConfig(cfg *infra.Config) CacheTTLs {
	return CacheTTLs{
		Meta:         cfg.Cache.MetaTTL,
		Account:      cfg.Cache.AccountTTL,
		OpenOrders:   cfg.Cache.OpenOrdersTTL,
		PollInterval: cfg.Cache.PollInterval,
	}
}

// MarketDataCache serves reference data, mids and the user's account state.
// Metadata is TTL-gated and polled in the background, mids are pushed by the
// stream, and the user's snapshots are TTL-gated and dropped on every order
// or fill event.
type MarketDataCache struct {
	fetcher Fetcher
	user    mo.Option[common.Address]

	meta       *Entry[*domain.PerpMarkets]
	spotMeta   *Entry[*domain.SpotMarkets]
	mids       *Entry[map[string]decimal.Decimal]
	account    *Entry[*domain.AccountSnapshot]
	openOrders *Entry[[]domain.OpenOrder]

	pollInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex

	logger *slog.Logger
}

// NewMarketDataCache creates an empty cache. user is the account whose
// snapshots are cached; metrics may be nil.
func NewMarketDataCache(fetcher Fetcher, user mo.Option[common.Address], ttls CacheTTLs, metrics *infra.Metrics) *MarketDataCache {
	poll := ttls.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &MarketDataCache{
		fetcher:      fetcher,
		user:         user,
		meta:         NewEntry[*domain.PerpMarkets](KindMeta, PolicyTTL, ttls.Meta, metrics),
		spotMeta:     NewEntry[*domain.SpotMarkets](KindSpotMeta, PolicyTTL, ttls.Meta, metrics),
		mids:         NewEntry[map[string]decimal.Decimal](KindMids, PolicyPush, 0, metrics),
		account:      NewEntry[*domain.AccountSnapshot](KindAccount, PolicyInvalidatable, ttls.Account, metrics),
		openOrders:   NewEntry[[]domain.OpenOrder](KindOpenOrders, PolicyInvalidatable, ttls.OpenOrders, metrics),
		pollInterval: poll,
		logger:       slog.Default().With("module", "cache"),
	}
}

// User returns the account the cache serves, if any.
func (c *MarketDataCache) User() mo.Option[common.Address] { return c.user }

func (c *MarketDataCache) Meta(ctx context.Context) (*domain.PerpMarkets, error) {
	return c.meta.Get(ctx, c.fetcher.MetaAndAssetCtxs)
}

func (c *MarketDataCache) SpotMeta(ctx context.Context) (*domain.SpotMarkets, error) {
	return c.spotMeta.Get(ctx, c.fetcher.SpotMetaAndAssetCtxs)
}

// Account returns the user's clearinghouse state.
func (c *MarketDataCache) Account(ctx context.Context) (*domain.AccountSnapshot, error) {
	user, ok := c.user.Get()
	if !ok {
		return nil, domain.ErrNoAddress
	}
	return c.account.Get(ctx, func(ctx context.Context) (*domain.AccountSnapshot, error) {
		return c.fetcher.ClearinghouseState(ctx, user)
	})
}

// OpenOrders returns the user's resting orders.
func (c *MarketDataCache) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	user, ok := c.user.Get()
	if !ok {
		return nil, domain.ErrNoAddress
	}
	return c.openOrders.Get(ctx, func(ctx context.Context) ([]domain.OpenOrder, error) {
		return c.fetcher.OpenOrders(ctx, user)
	})
}

// Mids returns a copy of the last pushed mid map. It is empty while no
// live feed is connected.
func (c *MarketDataCache) Mids() map[string]decimal.Decimal {
	m, _, _ := c.mids.Peek()
	return maps.Clone(m)
}

// AllMids returns the pushed mid map, or fetches one when the map is empty.
// A fetched map is not stored: only the stream writes mids.
func (c *MarketDataCache) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	m, err := c.mids.Get(ctx, c.fetcher.AllMids)
	if err != nil {
		return nil, err
	}
	return maps.Clone(m), nil
}

// MidOrFetch returns the mid price of coin.
func (c *MarketDataCache) MidOrFetch(ctx context.Context, coin string) (decimal.Decimal, error) {
	if m, _, ok := c.mids.Peek(); ok {
		if px, found := m[coin]; found {
			return px, nil
		}
	}
	m, err := c.fetcher.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	px, found := m[coin]
	if !found {
		return decimal.Zero, fmt.Errorf("%s: %w", coin, domain.ErrNoMidPrice)
	}
	return px, nil
}

// SetMids replaces the mid map. An empty map clears it so reads fetch.
func (c *MarketDataCache) SetMids(m map[string]decimal.Decimal) {
	if len(m) == 0 {
		c.mids.Invalidate()
		return
	}
	c.mids.Set(m)
}

// InvalidateUserScoped drops the account and open-orders snapshots.
func (c *MarketDataCache) InvalidateUserScoped() {
	c.account.Invalidate()
	c.openOrders.Invalidate()
}

// HandleEvent applies one stream event. User events invalidate before
// HandleEvent returns.
func (c *MarketDataCache) HandleEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.AllMids:
		c.SetMids(e.Mids)
	case event.Connected:
		c.logger.Info("Live feed connected")
	case event.Disconnected:
		c.mids.Invalidate()
		if e.Err != nil {
			c.logger.Warn("Live feed disconnected", slog.Any("error", e.Err))
		}
	default:
		if event.UserScoped(ev) {
			c.InvalidateUserScoped()
		}
	}
}

// StartEventProcessor consumes events until ctx ends or the channel closes.
func (c *MarketDataCache) StartEventProcessor(ctx context.Context, events <-chan event.Event) {
	ctx = c.runContext(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					c.logger.Info("Event channel closed")
					return
				}
				c.HandleEvent(ev)
			}
		}
	}()
}

// StartMetaPoller refreshes both metadata entries now and then on every
// poll interval, independent of readers.
func (c *MarketDataCache) StartMetaPoller(ctx context.Context) {
	ctx = c.runContext(ctx)

	c.refreshMeta(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Meta poller panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Meta poller stopped")
				return
			case <-ticker.C:
				c.refreshMeta(ctx)
			}
		}
	}()
}

func (c *MarketDataCache) refreshMeta(ctx context.Context) {
	if err := c.meta.Refresh(ctx, c.fetcher.MetaAndAssetCtxs); err != nil {
		c.logger.Warn("Meta refresh failed", slog.Any("error", err))
	}
	if err := c.spotMeta.Refresh(ctx, c.fetcher.SpotMetaAndAssetCtxs); err != nil {
		c.logger.Warn("Spot meta refresh failed", slog.Any("error", err))
	}
}

// runContext derives the context shared by the background tasks so Stop
// can end all of them.
func (c *MarketDataCache) runContext(parent context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		prev := c.cancel
		ctx, cancel := context.WithCancel(parent)
		c.cancel = func() { prev(); cancel() }
		return ctx
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return ctx
}

// Stop ends the background tasks and waits for them.
func (c *MarketDataCache) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}
