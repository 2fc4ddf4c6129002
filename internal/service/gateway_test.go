package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"hl_gateway/internal/domain"
	"hl_gateway/internal/engine"
	"hl_gateway/internal/infra"
	"hl_gateway/internal/signing"
)

const (
	traderKey  = "0x0123456789012345678901234567890123456789012345678901234567890123"
	durableKey = "0x0000000000000000000000000000000000000000000000000000000000000001"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []domain.ExchangeRequest
	err  error
}

func (s *recordingSubmitter) SubmitAction(_ context.Context, req domain.ExchangeRequest) (*domain.ExchangeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ExchangeResponse{Status: "ok", Response: json.RawMessage(`{"type":"default"}`)}, nil
}

func (s *recordingSubmitter) requests() []domain.ExchangeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ExchangeRequest(nil), s.reqs...)
}

type fixedFees struct {
	fee  uint64
	err  error
	user common.Address
}

func (f *fixedFees) MaxBuilderFee(_ context.Context, user, _ common.Address) (uint64, error) {
	f.user = user
	return f.fee, f.err
}

type testGateway struct {
	*Gateway
	fetcher *mockFetcher
	sub     *recordingSubmitter
	trader  *signing.Identity
	durable *signing.Identity
}

func mustIdentity(t *testing.T, hex string) *signing.Identity {
	t.Helper()
	id, err := signing.IdentityFromHex(hex)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newTestGateway(t *testing.T, vault mo.Option[common.Address]) *testGateway {
	t.Helper()
	trader := mustIdentity(t, traderKey)
	durable := mustIdentity(t, durableKey)
	f := newMockFetcher()
	sub := &recordingSubmitter{}
	cache := NewMarketDataCache(f, mo.Some(durable.Address()), testTTLs(), nil)
	cfg := GatewayConfig{
		Chain: domain.Mainnet,
		Vault: vault,
		Builder: BuilderFee{
			Address:    common.HexToAddress(infra.DefaultBuilderAddress),
			Fee:        infra.DefaultBuilderFee,
			MaxFeeRate: infra.DefaultMaxFeeRate,
		},
	}
	g := NewGateway(sub, &fixedFees{}, cache, engine.NewNonceSequencer(1000), &BuilderState{},
		durable, trader, mo.Some(durable.Address()), cfg, nil)
	return &testGateway{Gateway: g, fetcher: f, sub: sub, trader: trader, durable: durable}
}

// verifyL1 checks that req is signed by want over its own action and nonce.
func verifyL1(t *testing.T, req domain.ExchangeRequest, vault mo.Option[common.Address], want common.Address) {
	t.Helper()
	hash, err := signing.L1SigningHash(req.Action, req.Nonce, domain.Mainnet, vault)
	if err != nil {
		t.Fatal(err)
	}
	got, err := signing.RecoverAddress(hash, req.Signature)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("signed by %s, want %s", got.Hex(), want.Hex())
	}
}

var cloidPattern = regexp.MustCompile(`^0x[0-9a-f]{32}$`)

func TestGateway_PlaceLimitOrder(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	g.AccountState(ctx)

	resp, err := g.PlaceOrder(ctx, OrderRequest{
		Coin:  "ETH",
		IsBuy: true,
		Size:  decimal.RequireFromString("0.0147"),
		Price: decimal.RequireFromString("1670.10"),
		Tif:   domain.TifAlo,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if !resp.OK() {
		t.Fatal("response not ok")
	}

	reqs := g.sub.requests()
	if len(reqs) != 1 {
		t.Fatalf("submitted %d requests", len(reqs))
	}
	req := reqs[0]
	action, ok := req.Action.(domain.OrderAction)
	if !ok {
		t.Fatalf("action is %T", req.Action)
	}
	o := action.Orders[0]
	if o.Asset != 1 || !o.IsBuy || o.LimitPx != "1670.1" || o.Size != "0.0147" || o.ReduceOnly {
		t.Errorf("order wire = %+v", o)
	}
	if o.OrderType.Limit == nil || o.OrderType.Limit.Tif != domain.TifAlo {
		t.Errorf("order type = %+v", o.OrderType)
	}
	if !cloidPattern.MatchString(o.Cloid) {
		t.Errorf("cloid = %q", o.Cloid)
	}
	if action.Builder != nil {
		t.Error("builder attached before approval")
	}
	if req.Nonce != 1000 || req.VaultAddress != nil {
		t.Errorf("nonce=%d vault=%v", req.Nonce, req.VaultAddress)
	}
	verifyL1(t, req, mo.None[common.Address](), g.trader.Address())

	// The order invalidated the cached account.
	g.AccountState(ctx)
	if n := g.fetcher.count(KindAccount); n != 2 {
		t.Errorf("account fetches = %d, want 2", n)
	}
}

func TestGateway_MarketOrderPricing(t *testing.T) {
	tests := []struct {
		name  string
		isBuy bool
		want  string
	}{
		{"buy pays 5% over mid", true, "1753.6"},
		{"sell takes 5% under mid", false, "1586.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, mo.None[common.Address]())
			_, err := g.PlaceOrder(context.Background(), OrderRequest{
				Coin: "ETH", IsBuy: tt.isBuy, Size: decimal.NewFromInt(1), Market: true, Tif: domain.TifGtc,
			})
			if err != nil {
				t.Fatal(err)
			}
			o := g.sub.requests()[0].Action.(domain.OrderAction).Orders[0]
			if o.LimitPx != tt.want {
				t.Errorf("limit px = %s, want %s", o.LimitPx, tt.want)
			}
			if o.OrderType.Limit.Tif != domain.TifIoc {
				t.Errorf("tif = %s, want Ioc", o.OrderType.Limit.Tif)
			}
		})
	}
}

func TestGateway_ResolveAsset(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	tests := []struct {
		coin string
		want int
	}{
		{"BTC", 0},
		{"ETH", 1},
		{"PURR/USDC", 10000},
		{"@107", 10107},
	}
	for _, tt := range tests {
		got, err := g.ResolveAsset(ctx, tt.coin)
		if err != nil || got != tt.want {
			t.Errorf("ResolveAsset(%q) = %d, %v; want %d", tt.coin, got, err, tt.want)
		}
	}

	if _, err := g.ResolveAsset(ctx, "NOPE"); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("unknown coin err = %v", err)
	}
}

func TestGateway_InvalidOrdersAreNotSubmitted(t *testing.T) {
	tests := []struct {
		name string
		req  OrderRequest
	}{
		{"unknown coin", OrderRequest{Coin: "NOPE", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)}},
		{"zero size", OrderRequest{Coin: "ETH", Price: decimal.NewFromInt(1)}},
		{"limit without price", OrderRequest{Coin: "ETH", Size: decimal.NewFromInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, mo.None[common.Address]())
			_, err := g.PlaceOrder(context.Background(), tt.req)
			var ae *domain.ActionError
			if !errors.As(err, &ae) || ae.Action != domain.ActionTypeOrder {
				t.Errorf("err = %v, want an order ActionError", err)
			}
			if len(g.sub.requests()) != 0 {
				t.Error("invalid order was submitted")
			}
		})
	}
}

func TestGateway_ReadOnlyIdentity(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.SetTrader(signing.WatchOnly(g.trader.Address()))
	ctx := context.Background()

	if !g.ReadOnly() {
		t.Fatal("watch-only trader should be read-only")
	}

	calls := map[string]func() error{
		"order": func() error {
			_, err := g.PlaceOrder(ctx, OrderRequest{Coin: "ETH", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)})
			return err
		},
		"cancel": func() error {
			_, err := g.CancelOrders(ctx, []CancelRequest{{Coin: "ETH", Oid: 1}})
			return err
		},
		"leverage": func() error {
			_, err := g.UpdateLeverage(ctx, "BTC", 10, true)
			return err
		},
		"emergency close": func() error {
			_, err := g.EmergencyCloseAll(ctx)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var ce *domain.CapabilityError
			if !errors.As(err, &ce) || !errors.Is(err, domain.ErrNoSigner) {
				t.Errorf("err = %v, want CapabilityError", err)
			}
		})
	}
	if len(g.sub.requests()) != 0 {
		t.Error("read-only gateway submitted actions")
	}

	// Reads still work.
	if _, err := g.Markets(ctx); err != nil {
		t.Errorf("Markets failed: %v", err)
	}
}

func TestGateway_NoTraderAtAll(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.SetTrader(nil)

	_, err := g.UpdateLeverage(context.Background(), "BTC", 5, false)
	var ce *domain.CapabilityError
	if !errors.As(err, &ce) || ce.Identity != "" {
		t.Errorf("err = %v", err)
	}
}

func TestGateway_UpdateLeverage(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	if _, err := g.UpdateLeverage(context.Background(), "BTC", 10, true); err != nil {
		t.Fatal(err)
	}
	req := g.sub.requests()[0]
	want := domain.NewUpdateLeverageAction(0, true, 10)
	if req.Action != domain.Action(want) {
		t.Errorf("action = %+v, want %+v", req.Action, want)
	}
	verifyL1(t, req, mo.None[common.Address](), g.trader.Address())

	if _, err := g.UpdateLeverage(context.Background(), "BTC", 0, true); err == nil {
		t.Error("zero leverage accepted")
	}
}

func TestGateway_UpdateLeverageInvalidatesAccount(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	g.AccountState(ctx)
	if _, err := g.UpdateLeverage(ctx, "BTC", 10, true); err != nil {
		t.Fatal(err)
	}
	g.AccountState(ctx)

	if got := g.fetcher.count(KindAccount); got != 2 {
		t.Errorf("account fetches = %d, want 2", got)
	}
}

func TestGateway_VaultIsSignedAndSent(t *testing.T) {
	vault := common.HexToAddress("0x1719884eb866cb12b2287399b15f7db5e7d775ea")
	g := newTestGateway(t, mo.Some(vault))

	if _, err := g.CancelOrders(context.Background(), []CancelRequest{{Coin: "BTC", Oid: 77}}); err != nil {
		t.Fatal(err)
	}
	req := g.sub.requests()[0]
	if req.VaultAddress == nil || *req.VaultAddress != "0x1719884eb866cb12b2287399b15f7db5e7d775ea" {
		t.Errorf("vaultAddress = %v", req.VaultAddress)
	}
	verifyL1(t, req, mo.Some(vault), g.trader.Address())
}

func TestGateway_NoncesIncrease(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := g.UpdateLeverage(ctx, "ETH", 3, true); err != nil {
			t.Fatal(err)
		}
	}
	reqs := g.sub.requests()
	for i := 1; i < len(reqs); i++ {
		if reqs[i].Nonce <= reqs[i-1].Nonce {
			t.Errorf("nonce %d after %d", reqs[i].Nonce, reqs[i-1].Nonce)
		}
	}
}

func TestGateway_RejectionCarriesContext(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.sub.err = domain.NewRejectedError("exchange:order", "Insufficient margin")

	_, err := g.PlaceOrder(context.Background(), OrderRequest{
		Coin: "BTC", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(60000),
	})
	var ae *domain.ActionError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v", err)
	}
	if ae.Action != domain.ActionTypeOrder || ae.Identity != g.trader.Address().Hex() {
		t.Errorf("context = %q / %q", ae.Action, ae.Identity)
	}
	if !errors.Is(err, domain.ErrRejected) {
		t.Error("rejection lost")
	}
}

func TestGateway_ApproveBuilderFee(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	if _, err := g.ApproveBuilderFee(ctx); err != nil {
		t.Fatal(err)
	}
	if !g.BuilderApproved() {
		t.Fatal("approval flag not set")
	}

	req := g.sub.requests()[0]
	action, ok := req.Action.(domain.ApproveBuilderFeeAction)
	if !ok {
		t.Fatalf("action is %T", req.Action)
	}
	if action.Builder != "0xdadcb94d61d4a14e8ad1b94acf888120b7e807ae" || action.MaxFeeRate != "0.01%" {
		t.Errorf("action = %+v", action)
	}
	if action.HyperliquidChain != "Mainnet" || action.SignatureChainID != "0x66eee" {
		t.Errorf("chain fields = %q %q", action.HyperliquidChain, action.SignatureChainID)
	}
	if req.Nonce != action.Nonce {
		t.Errorf("envelope nonce %d != action nonce %d", req.Nonce, action.Nonce)
	}

	hash, err := signing.UserSigningHash(action)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := signing.RecoverAddress(hash, req.Signature)
	if err != nil {
		t.Fatal(err)
	}
	if signer != g.durable.Address() {
		t.Errorf("approval signed by %s, want durable %s", signer.Hex(), g.durable.Address().Hex())
	}

	// Orders now carry the builder.
	if _, err := g.PlaceOrder(ctx, OrderRequest{Coin: "BTC", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)}); err != nil {
		t.Fatal(err)
	}
	order := g.sub.requests()[1].Action.(domain.OrderAction)
	if order.Builder == nil || order.Builder.Builder != action.Builder || order.Builder.Fee != 10 {
		t.Errorf("builder = %+v", order.Builder)
	}
}

func TestGateway_ApproveBuilderFeeWithoutDurable(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.Gateway.durable = nil

	if _, err := g.ApproveBuilderFee(context.Background()); !errors.Is(err, domain.ErrNoSigner) {
		t.Errorf("err = %v", err)
	}
	if g.BuilderApproved() {
		t.Error("flag set after failure")
	}
}

func TestGateway_CheckBuilderFee(t *testing.T) {
	tests := []struct {
		name    string
		fee     uint64
		err     error
		want    bool
		wantErr bool
	}{
		{"approved", 10, nil, true, false},
		{"not approved", 0, nil, false, false},
		{"query fails", 0, errors.New("down"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, mo.None[common.Address]())
			fees := &fixedFees{fee: tt.fee, err: tt.err}
			g.fees = fees
			g.builder.SetApproved(!tt.want)

			got, err := g.CheckBuilderFee(context.Background())
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("got %v, %v", got, err)
			}
			if g.BuilderApproved() != tt.want {
				t.Error("flag not updated")
			}
			if fees.user != g.durable.Address() {
				t.Errorf("queried user %s", fees.user.Hex())
			}
		})
	}
}

func TestGateway_NudgeOnce(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())

	if !g.TakeNudge() {
		t.Fatal("first nudge suppressed")
	}
	for i := 0; i < 3; i++ {
		if g.TakeNudge() {
			t.Fatal("nudge shown twice")
		}
	}

	approved := &BuilderState{}
	approved.SetApproved(true)
	if approved.TakeNudge() {
		t.Error("nudge shown while approved")
	}
}

func TestGateway_ApproveAgent(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	agentAddr := common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")

	err := g.ApproveAgent(context.Background(), g.durable, agentAddr, "hlmcp-101926", 1760832000000)
	if err != nil {
		t.Fatal(err)
	}
	req := g.sub.requests()[0]
	action := req.Action.(domain.ApproveAgentAction)
	if action.AgentAddress != "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf" || action.AgentName != "hlmcp-101926" {
		t.Errorf("action = %+v", action)
	}
	if req.Nonce != 1760832000000 || req.VaultAddress != nil {
		t.Errorf("nonce=%d vault=%v", req.Nonce, req.VaultAddress)
	}
}

type stubCreator struct {
	agent *signing.Identity
	err   error
}

func (s *stubCreator) CreateAndPersist(context.Context, *signing.Identity) (*signing.Identity, string, error) {
	return s.agent, "/tmp/.env", s.err
}

func TestGateway_CreateAgentSwitchesTrader(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"persisted", nil},
		{"persistence failed", &domain.PersistenceError{Path: "/tmp/.env", Err: errors.New("read-only fs")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, mo.None[common.Address]())
			fresh, err := signing.GenerateIdentity()
			if err != nil {
				t.Fatal(err)
			}
			g.SetAgentCreator(&stubCreator{agent: fresh, err: tt.err})

			got, path, err := g.CreateAgent(context.Background())
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if got != fresh || path == "" {
				t.Errorf("got %v at %q", got, path)
			}
			if g.Trader() != fresh {
				t.Error("trader not switched to the new agent")
			}
		})
	}
}

func TestGateway_CreateAgentFailureKeepsTrader(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.SetAgentCreator(&stubCreator{err: errors.New("rejected")})

	if _, _, err := g.CreateAgent(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if g.Trader() != g.trader {
		t.Error("trader changed after a failed registration")
	}
}

func TestGateway_EmergencyCloseAll(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.fetcher.orders = []domain.OpenOrder{
		{Coin: "ETH", Oid: 5},
		{Coin: "BTC", Oid: 6},
		{Coin: "GONE", Oid: 7},
	}
	g.fetcher.account = &domain.AccountSnapshot{AssetPositions: []domain.AssetPosition{
		{Position: domain.Position{Coin: "ETH", Szi: decimal.RequireFromString("-0.5")}},
		{Position: domain.Position{Coin: "BTC", Szi: decimal.RequireFromString("0.1")}},
		{Position: domain.Position{Coin: "SOL", Szi: decimal.Zero}},
	}}
	g.Cache().SetMids(map[string]decimal.Decimal{
		"ETH": decimal.RequireFromString("1670.1"),
		"BTC": decimal.RequireFromString("60000"),
	})

	res, err := g.EmergencyCloseAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Cancelled != 2 || res.Closed != 2 {
		t.Errorf("result = %+v", res)
	}

	reqs := g.sub.requests()
	if len(reqs) != 2 {
		t.Fatalf("submitted %d requests, want cancel then close", len(reqs))
	}
	cancel := reqs[0].Action.(domain.CancelAction)
	if len(cancel.Cancels) != 2 || cancel.Cancels[0] != (domain.CancelWire{Asset: 1, Oid: 5}) {
		t.Errorf("cancels = %+v", cancel.Cancels)
	}

	closes := reqs[1].Action.(domain.OrderAction).Orders
	eth, btc := closes[0], closes[1]
	if !eth.IsBuy || eth.Size != "0.5" || eth.LimitPx != "1753.6" || !eth.ReduceOnly {
		t.Errorf("ETH close = %+v", eth)
	}
	if btc.IsBuy || btc.Size != "0.1" || btc.LimitPx != "57000" || !btc.ReduceOnly {
		t.Errorf("BTC close = %+v", btc)
	}
	for _, o := range closes {
		if o.OrderType.Limit.Tif != domain.TifIoc {
			t.Errorf("close tif = %s", o.OrderType.Limit.Tif)
		}
	}
	for _, r := range reqs {
		verifyL1(t, r, mo.None[common.Address](), g.trader.Address())
	}

	if _, _, ok := g.Cache().account.Peek(); ok {
		t.Error("account still cached after emergency close")
	}
	if _, _, ok := g.Cache().openOrders.Peek(); ok {
		t.Error("open orders still cached after emergency close")
	}
}

func TestGateway_EmergencyCloseAllNothingToDo(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())

	res, err := g.EmergencyCloseAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Cancelled != 0 || res.Closed != 0 || len(g.sub.requests()) != 0 {
		t.Errorf("result = %+v, %d requests", res, len(g.sub.requests()))
	}
}

func TestGateway_CancelAllFiltersByCoin(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.fetcher.orders = []domain.OpenOrder{{Coin: "ETH", Oid: 1}, {Coin: "BTC", Oid: 2}, {Coin: "ETH", Oid: 3}}

	_, n, err := g.CancelAll(context.Background(), "eth")
	if err != nil || n != 2 {
		t.Fatalf("cancelled %d, %v", n, err)
	}
	cancels := g.sub.requests()[0].Action.(domain.CancelAction).Cancels
	if cancels[0].Oid != 1 || cancels[1].Oid != 3 {
		t.Errorf("cancels = %+v", cancels)
	}

	resp, n, err := g.CancelAll(context.Background(), "DOGE")
	if resp != nil || n != 0 || err != nil {
		t.Errorf("nothing to cancel: %v %d %v", resp, n, err)
	}
}

func TestGateway_ClosePosition(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	g.fetcher.account = &domain.AccountSnapshot{AssetPositions: []domain.AssetPosition{
		{Position: domain.Position{Coin: "BTC", Szi: decimal.RequireFromString("0.25")}},
	}}

	if _, err := g.ClosePosition(context.Background(), "btc"); err != nil {
		t.Fatal(err)
	}
	o := g.sub.requests()[0].Action.(domain.OrderAction).Orders[0]
	if o.IsBuy || o.Size != "0.25" || !o.ReduceOnly || o.LimitPx != "57000" {
		t.Errorf("close = %+v", o)
	}

	if _, err := g.ClosePosition(context.Background(), "ETH"); err == nil {
		t.Error("closing a flat coin succeeded")
	}
}

func TestRoundSigFigs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1670.1", "1670.1"},
		{"1753.605", "1753.6"},
		{"-1586.595", "-1586.6"},
		{"123456.7", "123457"},
		{"0.000123456", "0.00012346"},
		{"1.000005", "1"},
		{"0.5", "0.5"},
		{"0", "0"},
	}
	for _, tt := range tests {
		got := RoundSigFigs(decimal.RequireFromString(tt.in), 5)
		if got.String() != tt.want {
			t.Errorf("RoundSigFigs(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestGateway_TriggerOrders(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	_, err := g.PlaceOrder(ctx, OrderRequest{
		Coin:       "BTC",
		Size:       decimal.RequireFromString("0.01"),
		Price:      decimal.NewFromInt(57000),
		ReduceOnly: true,
		Trigger:    &TriggerRequest{Price: decimal.NewFromInt(58000), IsMarket: true, Tpsl: domain.TpslStopLoss},
	})
	if err != nil {
		t.Fatal(err)
	}
	order := g.sub.requests()[0].Action.(domain.OrderAction).Orders[0]
	if order.OrderType.Limit != nil {
		t.Error("trigger order also carries a limit type")
	}
	want := domain.TriggerOrderType{IsMarket: true, TriggerPx: "58000", Tpsl: domain.TpslStopLoss}
	if order.OrderType.Trigger == nil || *order.OrderType.Trigger != want {
		t.Errorf("trigger = %+v, want %+v", order.OrderType.Trigger, want)
	}
	if order.LimitPx != "57000" || !order.ReduceOnly {
		t.Errorf("order = %+v", order)
	}

	invalid := []struct {
		name string
		req  OrderRequest
	}{
		{"no trigger price", OrderRequest{Coin: "BTC", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
			Trigger: &TriggerRequest{Tpsl: domain.TpslTakeProfit}}},
		{"bad tpsl", OrderRequest{Coin: "BTC", Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
			Trigger: &TriggerRequest{Price: decimal.NewFromInt(1), Tpsl: "stop"}}},
		{"market trigger", OrderRequest{Coin: "BTC", Size: decimal.NewFromInt(1), Market: true,
			Trigger: &TriggerRequest{Price: decimal.NewFromInt(1), Tpsl: domain.TpslTakeProfit}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.PlaceOrder(ctx, tt.req); err == nil {
				t.Error("accepted")
			}
		})
	}
	if n := len(g.sub.requests()); n != 1 {
		t.Errorf("submitted %d requests, want 1", n)
	}
}

func TestGateway_ModifyOrder(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	g.AccountState(ctx)
	_, err := g.ModifyOrder(ctx, ModifyRequest{
		Oid:   91,
		Order: OrderRequest{Coin: "ETH", IsBuy: true, Size: decimal.RequireFromString("0.5"), Price: decimal.RequireFromString("1650")},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := g.sub.requests()[0]
	action, ok := req.Action.(domain.ModifyAction)
	if !ok {
		t.Fatalf("action is %T", req.Action)
	}
	if action.Type != "batchModify" || len(action.Modifies) != 1 {
		t.Fatalf("action = %+v", action)
	}
	m := action.Modifies[0]
	if m.Oid != 91 || m.Order.Asset != 1 || m.Order.LimitPx != "1650" || m.Order.Size != "0.5" {
		t.Errorf("modify = %+v", m)
	}
	if m.Order.OrderType.Limit == nil || m.Order.OrderType.Limit.Tif != domain.TifGtc {
		t.Errorf("order type = %+v", m.Order.OrderType)
	}
	verifyL1(t, req, mo.None[common.Address](), g.trader.Address())

	g.AccountState(ctx)
	if got := g.fetcher.count(KindAccount); got != 2 {
		t.Errorf("account fetches = %d, want 2", got)
	}

	if _, err := g.ModifyOrders(ctx, nil); err == nil {
		t.Error("empty modify accepted")
	}
}

func TestGateway_ScheduleCancel(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	at := now.Add(90 * time.Second)
	if _, err := g.ScheduleCancel(ctx, mo.Some(at)); err != nil {
		t.Fatal(err)
	}
	if _, err := g.ScheduleCancel(ctx, mo.None[time.Time]()); err != nil {
		t.Fatal(err)
	}
	if _, err := g.ScheduleCancel(ctx, mo.Some(now)); err == nil {
		t.Error("cancel time in the present accepted")
	}

	reqs := g.sub.requests()
	if len(reqs) != 2 {
		t.Fatalf("submitted %d requests", len(reqs))
	}
	set := reqs[0].Action.(domain.ScheduleCancelAction)
	if set.Time == nil || *set.Time != uint64(at.UnixMilli()) {
		t.Errorf("time = %v, want %d", set.Time, at.UnixMilli())
	}
	if cleared := reqs[1].Action.(domain.ScheduleCancelAction); cleared.Time != nil {
		t.Errorf("clearing sent time %d", *cleared.Time)
	}
	verifyL1(t, reqs[0], mo.None[common.Address](), g.trader.Address())
}

func TestGateway_TransferUSDC(t *testing.T) {
	g := newTestGateway(t, mo.None[common.Address]())
	ctx := context.Background()

	g.AccountState(ctx)
	if _, err := g.TransferUSDC(ctx, decimal.RequireFromString("12.50"), true); err != nil {
		t.Fatal(err)
	}

	req := g.sub.requests()[0]
	action, ok := req.Action.(domain.UsdClassTransferAction)
	if !ok {
		t.Fatalf("action is %T", req.Action)
	}
	if action.Amount != "12.5" || !action.ToPerp || action.HyperliquidChain != "Mainnet" {
		t.Errorf("action = %+v", action)
	}
	if req.Nonce != action.Nonce || req.VaultAddress != nil {
		t.Errorf("envelope nonce %d, action nonce %d, vault %v", req.Nonce, action.Nonce, req.VaultAddress)
	}

	hash, err := signing.UserSigningHash(action)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := signing.RecoverAddress(hash, req.Signature)
	if err != nil {
		t.Fatal(err)
	}
	if signer != g.durable.Address() {
		t.Errorf("transfer signed by %s, want durable %s", signer.Hex(), g.durable.Address().Hex())
	}

	g.AccountState(ctx)
	if got := g.fetcher.count(KindAccount); got != 2 {
		t.Errorf("account fetches = %d, want 2", got)
	}

	if _, err := g.TransferUSDC(ctx, decimal.Zero, false); err == nil {
		t.Error("zero amount accepted")
	}
	g.Gateway.durable = nil
	if _, err := g.TransferUSDC(ctx, decimal.NewFromInt(1), false); !errors.Is(err, domain.ErrNoSigner) {
		t.Errorf("err without durable = %v", err)
	}
}
