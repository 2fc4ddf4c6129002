package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"hl_gateway/internal/domain"
	"hl_gateway/internal/infra"
	"hl_gateway/internal/signing"
)

const (
	schemeL1   = "l1"
	schemeUser = "user"

	priceSigFigs = 5
)

// marketSlippage is applied to the mid price of market and close orders.
var marketSlippage = decimal.New(5, -2)

// BuilderFeeQuerier reads the builder fee a user has approved.
type BuilderFeeQuerier interface {
	MaxBuilderFee(ctx context.Context, user, builder common.Address) (uint64, error)
}

// NonceSource issues strictly increasing nonces.
type NonceSource interface {
	Next() uint64
}

// AgentCreator registers and persists a new agent key.
type AgentCreator interface {
	CreateAndPersist(ctx context.Context, durable *signing.Identity) (*signing.Identity, string, error)
}

// GatewayConfig is the static part of the gateway.
type GatewayConfig struct {
	Chain   domain.Chain
	Vault   mo.Option[common.Address]
	Builder BuilderFee
}

// OrderRequest is one order as the caller describes it. Market orders take
// their limit price from the mid with slippage and always use Ioc.
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	Size       decimal.Decimal
	Price      decimal.Decimal // ignored for market orders
	Market     bool
	Tif        domain.Tif // empty means Gtc
	ReduceOnly bool
	Trigger    *TriggerRequest // makes the order a take profit or stop loss
}

// TriggerRequest turns an order into a trigger order. Price on the order
// is then the limit applied once Trigger.Price is reached; IsMarket fills
// at market instead.
type TriggerRequest struct {
	Price    decimal.Decimal
	IsMarket bool
	Tpsl     domain.Tpsl
}

// ModifyRequest replaces resting order Oid with Order.
type ModifyRequest struct {
	Oid   uint64
	Order OrderRequest
}

// CancelRequest names one resting order.
type CancelRequest struct {
	Coin string
	Oid  uint64
}

// CloseAllResult summarizes EmergencyCloseAll.
type CloseAllResult struct {
	Cancelled      int
	Closed         int
	CancelResponse *domain.ExchangeResponse
	CloseResponse  *domain.ExchangeResponse
}

// Gateway signs and submits actions, and answers reads from the cache.
// Trading actions are signed by the agent identity; approvals by the
// durable identity.
type Gateway struct {
	submitter domain.ActionSubmitter
	fees      BuilderFeeQuerier
	cache     *MarketDataCache
	nonces    NonceSource
	builder   *BuilderState
	agents    AgentCreator

	durable *signing.Identity
	trader  atomic.Pointer[signing.Identity]
	account mo.Option[common.Address]

	cfg     GatewayConfig
	metrics *infra.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewGateway wires the gateway. durable and trader may be nil or
// address-only; signing operations then fail with a CapabilityError.
// account is the address whose state is read and checked for approval.
func NewGateway(
	submitter domain.ActionSubmitter,
	fees BuilderFeeQuerier,
	cache *MarketDataCache,
	nonces NonceSource,
	builder *BuilderState,
	durable, trader *signing.Identity,
	account mo.Option[common.Address],
	cfg GatewayConfig,
	metrics *infra.Metrics,
) *Gateway {
	if builder == nil {
		builder = &BuilderState{}
	}
	g := &Gateway{
		submitter: submitter,
		fees:      fees,
		cache:     cache,
		nonces:    nonces,
		builder:   builder,
		durable:   durable,
		account:   account,
		cfg:       cfg,
		metrics:   metrics,
		logger:    slog.Default().With("module", "gateway"),
		now:       time.Now,
	}
	if trader != nil {
		g.trader.Store(trader)
	}
	return g
}

// SetAgentCreator attaches the agent manager. The manager registers through
// the gateway, so it is wired after construction.
func (g *Gateway) SetAgentCreator(a AgentCreator) { g.agents = a }

// Trader returns the identity that signs trading actions, or nil.
func (g *Gateway) Trader() *signing.Identity { return g.trader.Load() }

// SetTrader switches the trading identity.
func (g *Gateway) SetTrader(id *signing.Identity) { g.trader.Store(id) }

// Durable returns the identity that signs approvals, or nil.
func (g *Gateway) Durable() *signing.Identity { return g.durable }

// Account returns the address whose state the gateway reads.
func (g *Gateway) Account() mo.Option[common.Address] { return g.account }

// ReadOnly reports whether no trading identity can sign.
func (g *Gateway) ReadOnly() bool { return !g.trader.Load().CanSign() }

func (g *Gateway) BuilderApproved() bool { return g.builder.Approved() }

// TakeNudge reports true once while the builder fee is not approved.
func (g *Gateway) TakeNudge() bool { return g.builder.TakeNudge() }

// Cache exposes the market data cache for reads.
func (g *Gateway) Cache() *MarketDataCache { return g.cache }

// --- trading ---

// PlaceOrders resolves, prices and submits a batch of orders.
func (g *Gateway) PlaceOrders(ctx context.Context, reqs []OrderRequest, grouping domain.Grouping) (*domain.ExchangeResponse, error) {
	if len(reqs) == 0 {
		return nil, errors.New("no orders")
	}
	orders := make([]domain.OrderWire, 0, len(reqs))
	for _, r := range reqs {
		w, err := g.orderWire(ctx, r)
		if err != nil {
			return nil, g.wrap(domain.ActionTypeOrder, g.trader.Load(), err)
		}
		orders = append(orders, w)
	}

	action := domain.NewOrderAction(orders, grouping, g.builderInfo())
	defer g.cache.InvalidateUserScoped()
	return g.submitL1(ctx, action)
}

// PlaceOrder submits a single order.
func (g *Gateway) PlaceOrder(ctx context.Context, req OrderRequest) (*domain.ExchangeResponse, error) {
	return g.PlaceOrders(ctx, []OrderRequest{req}, domain.GroupingNa)
}

func (g *Gateway) orderWire(ctx context.Context, r OrderRequest) (domain.OrderWire, error) {
	if !r.Size.IsPositive() {
		return domain.OrderWire{}, fmt.Errorf("%s: size must be positive", r.Coin)
	}
	asset, err := g.ResolveAsset(ctx, r.Coin)
	if err != nil {
		return domain.OrderWire{}, err
	}

	orderType, err := orderTypeWire(r)
	if err != nil {
		return domain.OrderWire{}, err
	}

	px, tif := r.Price, r.Tif
	if r.Market {
		mid, err := g.cache.MidOrFetch(ctx, r.Coin)
		if err != nil {
			return domain.OrderWire{}, err
		}
		px, tif = SlippagePrice(mid, r.IsBuy), domain.TifIoc
	} else if !px.IsPositive() {
		return domain.OrderWire{}, fmt.Errorf("%s: limit orders need a positive price", r.Coin)
	}
	if tif == "" {
		tif = domain.TifGtc
	}
	if orderType.Trigger == nil {
		orderType.Limit = &domain.LimitOrderType{Tif: tif}
	}

	return domain.OrderWire{
		Asset:      asset,
		IsBuy:      r.IsBuy,
		LimitPx:    px.String(),
		Size:       r.Size.String(),
		ReduceOnly: r.ReduceOnly,
		OrderType:  orderType,
		Cloid:      newCloid(),
	}, nil
}

// orderTypeWire validates the trigger part of r. The limit part is filled
// in by the caller once the Tif is known.
func orderTypeWire(r OrderRequest) (domain.OrderTypeWire, error) {
	t := r.Trigger
	if t == nil {
		return domain.OrderTypeWire{}, nil
	}
	if r.Market {
		return domain.OrderTypeWire{}, fmt.Errorf("%s: trigger orders take a limit price, use Trigger.IsMarket instead", r.Coin)
	}
	if !t.Price.IsPositive() {
		return domain.OrderTypeWire{}, fmt.Errorf("%s: trigger price must be positive", r.Coin)
	}
	if t.Tpsl != domain.TpslTakeProfit && t.Tpsl != domain.TpslStopLoss {
		return domain.OrderTypeWire{}, fmt.Errorf("%s: tpsl must be %q or %q, got %q", r.Coin, domain.TpslTakeProfit, domain.TpslStopLoss, t.Tpsl)
	}
	return domain.OrderTypeWire{Trigger: &domain.TriggerOrderType{
		IsMarket:  t.IsMarket,
		TriggerPx: t.Price.String(),
		Tpsl:      t.Tpsl,
	}}, nil
}

// ModifyOrders replaces resting orders in one batchModify action.
func (g *Gateway) ModifyOrders(ctx context.Context, reqs []ModifyRequest) (*domain.ExchangeResponse, error) {
	if len(reqs) == 0 {
		return nil, errors.New("no modifies")
	}
	modifies := make([]domain.ModifyWire, 0, len(reqs))
	for _, r := range reqs {
		w, err := g.orderWire(ctx, r.Order)
		if err != nil {
			return nil, g.wrap(domain.ActionTypeBatchModify, g.trader.Load(), err)
		}
		modifies = append(modifies, domain.ModifyWire{Oid: r.Oid, Order: w})
	}

	defer g.cache.InvalidateUserScoped()
	return g.submitL1(ctx, domain.NewModifyAction(modifies))
}

// ModifyOrder replaces a single resting order.
func (g *Gateway) ModifyOrder(ctx context.Context, req ModifyRequest) (*domain.ExchangeResponse, error) {
	return g.ModifyOrders(ctx, []ModifyRequest{req})
}

// ScheduleCancel asks the exchange to cancel every open order at at.
// None clears a previous schedule.
func (g *Gateway) ScheduleCancel(ctx context.Context, at mo.Option[time.Time]) (*domain.ExchangeResponse, error) {
	var ms *uint64
	if t, ok := at.Get(); ok {
		if !t.After(g.now()) {
			return nil, g.wrap(domain.ActionTypeScheduleCancel, g.trader.Load(), errors.New("cancel time must be in the future"))
		}
		v := uint64(t.UnixMilli())
		ms = &v
	}
	return g.submitL1(ctx, domain.NewScheduleCancelAction(ms))
}

// CancelOrders cancels resting orders by id.
func (g *Gateway) CancelOrders(ctx context.Context, reqs []CancelRequest) (*domain.ExchangeResponse, error) {
	if len(reqs) == 0 {
		return nil, errors.New("no cancels")
	}
	cancels := make([]domain.CancelWire, 0, len(reqs))
	for _, r := range reqs {
		asset, err := g.ResolveAsset(ctx, r.Coin)
		if err != nil {
			return nil, g.wrap(domain.ActionTypeCancel, g.trader.Load(), err)
		}
		cancels = append(cancels, domain.CancelWire{Asset: asset, Oid: r.Oid})
	}

	defer g.cache.InvalidateUserScoped()
	return g.submitL1(ctx, domain.NewCancelAction(cancels))
}

// CancelAll cancels every open order, or only those of coin when it is set.
// It returns a nil response when there is nothing to cancel.
func (g *Gateway) CancelAll(ctx context.Context, coin string) (*domain.ExchangeResponse, int, error) {
	orders, err := g.cache.OpenOrders(ctx)
	if err != nil {
		return nil, 0, g.wrap(domain.ActionTypeCancel, g.trader.Load(), err)
	}
	cancels := g.cancelsFor(ctx, orders, coin)
	if len(cancels) == 0 {
		return nil, 0, nil
	}
	defer g.cache.InvalidateUserScoped()
	resp, err := g.submitL1(ctx, domain.NewCancelAction(cancels))
	return resp, len(cancels), err
}

func (g *Gateway) cancelsFor(ctx context.Context, orders []domain.OpenOrder, coin string) []domain.CancelWire {
	var cancels []domain.CancelWire
	for _, o := range orders {
		if coin != "" && !strings.EqualFold(o.Coin, coin) {
			continue
		}
		asset, err := g.ResolveAsset(ctx, o.Coin)
		if err != nil {
			g.logger.Warn("Skipping order of unknown asset", slog.String("coin", o.Coin), slog.Uint64("oid", o.Oid))
			continue
		}
		cancels = append(cancels, domain.CancelWire{Asset: asset, Oid: o.Oid})
	}
	return cancels
}

// UpdateLeverage sets the leverage and margin mode of a perp.
func (g *Gateway) UpdateLeverage(ctx context.Context, coin string, leverage uint32, isCross bool) (*domain.ExchangeResponse, error) {
	asset, err := g.ResolveAsset(ctx, coin)
	if err != nil {
		return nil, g.wrap(domain.ActionTypeUpdateLeverage, g.trader.Load(), err)
	}
	if leverage == 0 {
		return nil, g.wrap(domain.ActionTypeUpdateLeverage, g.trader.Load(), errors.New("leverage must be at least 1"))
	}
	defer g.cache.InvalidateUserScoped()
	return g.submitL1(ctx, domain.NewUpdateLeverageAction(asset, isCross, leverage))
}

// ClosePosition closes the position in coin with a reduce-only Ioc order.
func (g *Gateway) ClosePosition(ctx context.Context, coin string) (*domain.ExchangeResponse, error) {
	snap, err := g.cache.Account(ctx)
	if err != nil {
		return nil, g.wrap(domain.ActionTypeOrder, g.trader.Load(), err)
	}
	for _, p := range snap.OpenPositions() {
		if strings.EqualFold(p.Coin, coin) {
			w, err := g.closeWire(ctx, p)
			if err != nil {
				return nil, g.wrap(domain.ActionTypeOrder, g.trader.Load(), err)
			}
			defer g.cache.InvalidateUserScoped()
			return g.submitL1(ctx, domain.NewOrderAction([]domain.OrderWire{w}, domain.GroupingNa, g.builderInfo()))
		}
	}
	return nil, g.wrap(domain.ActionTypeOrder, g.trader.Load(), fmt.Errorf("no open position for %s", coin))
}

func (g *Gateway) closeWire(ctx context.Context, p domain.Position) (domain.OrderWire, error) {
	asset, err := g.ResolveAsset(ctx, p.Coin)
	if err != nil {
		return domain.OrderWire{}, err
	}
	mid, err := g.cache.MidOrFetch(ctx, p.Coin)
	if err != nil {
		return domain.OrderWire{}, err
	}
	isBuy := p.Szi.IsNegative()
	return domain.OrderWire{
		Asset:      asset,
		IsBuy:      isBuy,
		LimitPx:    SlippagePrice(mid, isBuy).String(),
		Size:       p.Szi.Abs().String(),
		ReduceOnly: true,
		OrderType:  domain.OrderTypeWire{Limit: &domain.LimitOrderType{Tif: domain.TifIoc}},
		Cloid:      newCloid(),
	}, nil
}

// EmergencyCloseAll cancels every open order, then closes every position
// with reduce-only Ioc orders. User-scoped cache entries are invalidated
// before it returns, whatever the outcome.
func (g *Gateway) EmergencyCloseAll(ctx context.Context) (*CloseAllResult, error) {
	defer g.cache.InvalidateUserScoped()

	trader := g.trader.Load()
	if !trader.CanSign() {
		return nil, g.wrap("emergencyClose", trader, &domain.CapabilityError{Op: "emergencyClose", Identity: identityLabel(trader)})
	}

	res := &CloseAllResult{}

	orders, err := g.cache.OpenOrders(ctx)
	if err != nil {
		return nil, g.wrap(domain.ActionTypeCancel, trader, err)
	}
	if cancels := g.cancelsFor(ctx, orders, ""); len(cancels) > 0 {
		resp, err := g.submitL1(ctx, domain.NewCancelAction(cancels))
		if err != nil {
			return res, err
		}
		res.Cancelled = len(cancels)
		res.CancelResponse = resp
	}

	// Cancels free margin; read positions fresh.
	g.cache.InvalidateUserScoped()
	snap, err := g.cache.Account(ctx)
	if err != nil {
		return res, g.wrap(domain.ActionTypeOrder, trader, err)
	}
	var closes []domain.OrderWire
	for _, p := range snap.OpenPositions() {
		w, err := g.closeWire(ctx, p)
		if err != nil {
			g.logger.Warn("Cannot close position", slog.String("coin", p.Coin), slog.Any("error", err))
			continue
		}
		closes = append(closes, w)
	}
	if len(closes) == 0 {
		return res, nil
	}

	resp, err := g.submitL1(ctx, domain.NewOrderAction(closes, domain.GroupingNa, g.builderInfo()))
	if err != nil {
		return res, err
	}
	res.Closed = len(closes)
	res.CloseResponse = resp
	return res, nil
}

// --- approvals ---

// ApproveBuilderFee lets the configured builder charge up to its max rate.
func (g *Gateway) ApproveBuilderFee(ctx context.Context) (*domain.ExchangeResponse, error) {
	action := domain.NewApproveBuilderFeeAction(
		g.cfg.Chain,
		strings.ToLower(g.cfg.Builder.Address.Hex()),
		g.cfg.Builder.MaxFeeRate,
		g.nonces.Next(),
	)
	resp, err := g.submitUser(ctx, g.durable, action)
	if err != nil {
		return resp, err
	}
	g.builder.SetApproved(true)
	g.logger.Info("Builder fee approved",
		slog.String("builder", g.cfg.Builder.Address.Hex()),
		slog.String("max_fee_rate", g.cfg.Builder.MaxFeeRate),
	)
	return resp, nil
}

// CheckBuilderFee queries the approval of the account and caches it in the
// shared flag. Without an account it reports false.
func (g *Gateway) CheckBuilderFee(ctx context.Context) (bool, error) {
	user, ok := g.account.Get()
	if !ok {
		g.builder.SetApproved(false)
		return false, nil
	}
	fee, err := g.fees.MaxBuilderFee(ctx, user, g.cfg.Builder.Address)
	if err != nil {
		g.builder.SetApproved(false)
		return false, err
	}
	approved := fee > 0
	g.builder.SetApproved(approved)
	return approved, nil
}

// TransferUSDC moves amount USDC from spot to perps (toPerp) or back.
// Agents cannot move funds, so it is signed by the durable identity.
func (g *Gateway) TransferUSDC(ctx context.Context, amount decimal.Decimal, toPerp bool) (*domain.ExchangeResponse, error) {
	if !amount.IsPositive() {
		return nil, g.wrap(domain.ActionTypeUsdClassTransfer, g.durable, errors.New("amount must be positive"))
	}
	action := domain.NewUsdClassTransferAction(g.cfg.Chain, amount.String(), toPerp, g.nonces.Next())
	defer g.cache.InvalidateUserScoped()
	resp, err := g.submitUser(ctx, g.durable, action)
	if err != nil {
		return resp, err
	}
	g.logger.Info("USDC transferred", slog.String("amount", action.Amount), slog.Bool("to_perp", toPerp))
	return resp, nil
}

// ApproveAgent submits approveAgent signed by durable.
func (g *Gateway) ApproveAgent(ctx context.Context, durable *signing.Identity, agentAddr common.Address, label string, nonce uint64) error {
	action := domain.NewApproveAgentAction(g.cfg.Chain, strings.ToLower(agentAddr.Hex()), label, nonce)
	_, err := g.submitUser(ctx, durable, action)
	return err
}

// CreateAgent registers a new agent for the durable identity, persists its
// key and makes it the trading identity. When only persistence fails the
// agent is still switched in, since it is live on the exchange.
func (g *Gateway) CreateAgent(ctx context.Context) (*signing.Identity, string, error) {
	if g.agents == nil {
		return nil, "", errors.New("agent creation is not configured")
	}
	agentID, path, err := g.agents.CreateAndPersist(ctx, g.durable)
	if agentID != nil {
		g.trader.Store(agentID)
		g.logger.Info("Trading identity switched", slog.Any("agent", agentID))
	}
	return agentID, path, err
}

// --- reads ---

func (g *Gateway) Markets(ctx context.Context) (*domain.PerpMarkets, error) {
	return g.cache.Meta(ctx)
}

func (g *Gateway) SpotMarkets(ctx context.Context) (*domain.SpotMarkets, error) {
	return g.cache.SpotMeta(ctx)
}

func (g *Gateway) AccountState(ctx context.Context) (*domain.AccountSnapshot, error) {
	return g.cache.Account(ctx)
}

func (g *Gateway) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	return g.cache.OpenOrders(ctx)
}

func (g *Gateway) Mids(ctx context.Context) (map[string]decimal.Decimal, error) {
	return g.cache.AllMids(ctx)
}

// InvalidateUserScoped drops the cached account and open orders.
func (g *Gateway) InvalidateUserScoped() { g.cache.InvalidateUserScoped() }

// ResolveAsset maps a perp name to its universe index, or a spot pair name
// to 10000 + its pair index.
func (g *Gateway) ResolveAsset(ctx context.Context, coin string) (int, error) {
	perps, err := g.cache.Meta(ctx)
	if err != nil {
		return 0, err
	}
	if idx, ok := perps.AssetIndex(coin); ok {
		return idx, nil
	}
	spots, err := g.cache.SpotMeta(ctx)
	if err != nil {
		return 0, err
	}
	if idx, ok := spots.AssetIndex(coin); ok {
		return idx, nil
	}
	return 0, fmt.Errorf("%s: %w", coin, domain.ErrUnknownAsset)
}

// --- signing pipeline ---

func (g *Gateway) submitL1(ctx context.Context, action domain.Action) (*domain.ExchangeResponse, error) {
	kind := action.ActionType()
	id := g.trader.Load()
	if err := ctx.Err(); err != nil {
		return nil, g.wrap(kind, id, err)
	}

	nonce := g.nonces.Next()
	sig, err := signing.SignL1Action(id, action, nonce, g.cfg.Chain, g.cfg.Vault)
	if err != nil {
		return nil, g.wrap(kind, id, err)
	}
	g.metrics.RecordSigned(kind, schemeL1)

	return g.submit(ctx, id, domain.ExchangeRequest{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		VaultAddress: vaultField(g.cfg.Vault),
	})
}

func (g *Gateway) submitUser(ctx context.Context, id *signing.Identity, action domain.UserSignedAction) (*domain.ExchangeResponse, error) {
	kind := action.ActionType()
	if err := ctx.Err(); err != nil {
		return nil, g.wrap(kind, id, err)
	}

	sig, err := signing.SignUserAction(id, action)
	if err != nil {
		return nil, g.wrap(kind, id, err)
	}
	g.metrics.RecordSigned(kind, schemeUser)

	return g.submit(ctx, id, domain.ExchangeRequest{
		Action:    action,
		Nonce:     userNonce(action),
		Signature: sig,
	})
}

func (g *Gateway) submit(ctx context.Context, id *signing.Identity, req domain.ExchangeRequest) (*domain.ExchangeResponse, error) {
	kind := req.Action.ActionType()
	resp, err := g.submitter.SubmitAction(ctx, req)
	if err != nil {
		g.metrics.RecordSubmitFailure(kind)
		g.logger.Warn("Action failed",
			slog.String("action", kind),
			slog.Uint64("nonce", req.Nonce),
			slog.Any("identity", id),
			slog.Bool("retriable", domain.IsRetriable(err)),
			slog.Any("error", err),
		)
		return resp, g.wrap(kind, id, err)
	}
	g.logger.Debug("Action accepted", slog.String("action", kind), slog.Uint64("nonce", req.Nonce))
	return resp, nil
}

func (g *Gateway) wrap(kind string, id *signing.Identity, err error) error {
	var ae *domain.ActionError
	if errors.As(err, &ae) {
		return err
	}
	return &domain.ActionError{Action: kind, Identity: identityLabel(id), Err: err}
}

func identityLabel(id *signing.Identity) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (g *Gateway) builderInfo() *domain.BuilderInfo {
	if !g.builder.Approved() {
		return nil
	}
	return g.cfg.Builder.Info()
}

// userNonce reads the nonce embedded in a user-signed action. The envelope
// nonce must equal it.
func userNonce(action domain.UserSignedAction) uint64 {
	switch a := action.(type) {
	case domain.ApproveBuilderFeeAction:
		return a.Nonce
	case domain.ApproveAgentAction:
		return a.Nonce
	case domain.UsdClassTransferAction:
		return a.Nonce
	default:
		return 0
	}
}

func vaultField(vault mo.Option[common.Address]) *string {
	addr, ok := vault.Get()
	if !ok {
		return nil
	}
	s := strings.ToLower(addr.Hex())
	return &s
}

func newCloid() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}

// SlippagePrice moves mid 5% against the taker and rounds the result to
// five significant figures.
func SlippagePrice(mid decimal.Decimal, isBuy bool) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(marketSlippage)
	if isBuy {
		factor = decimal.NewFromInt(1).Add(marketSlippage)
	}
	return RoundSigFigs(mid.Mul(factor), priceSigFigs)
}

// RoundSigFigs rounds to n significant figures, never into the integer
// part, with ties to even.
func RoundSigFigs(px decimal.Decimal, n int32) decimal.Decimal {
	if px.IsZero() {
		return px
	}
	abs := px.Abs()
	digits := int32(len(abs.Coefficient().String())) + abs.Exponent()
	dp := n - digits
	if dp < 0 {
		dp = 0
	}
	return px.RoundBank(dp)
}
