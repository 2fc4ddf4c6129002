package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"hl_gateway/internal/domain"
	"hl_gateway/internal/infra"
)

const (
	exchangePath = "/exchange"
	infoPath     = "/info"
	maxBodyBytes = 8 << 20
)

// Client is the Hyperliquid REST client (Boundary Layer).
// It signs nothing; callers hand it complete envelopes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the configured network.
func NewClient(cfg *infra.Config) *Client {
	return NewClientWithURL(cfg.RestURL(), cfg.API.Timeout)
}

// NewClientWithURL creates a client against an explicit base URL.
func NewClientWithURL(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "hyperliquid_client"),
	}
}

// SubmitAction posts a signed envelope to /exchange. A "status":"err"
// reply becomes a non-retriable TransportError wrapping ErrRejected.
func (c *Client) SubmitAction(ctx context.Context, req domain.ExchangeRequest) (*domain.ExchangeResponse, error) {
	op := "exchange:" + req.Action.ActionType()

	body, err := c.post(ctx, op, exchangePath, req)
	if err != nil {
		return nil, err
	}

	var resp domain.ExchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if !resp.OK() {
		msg := rejectionMessage(resp.Response)
		c.logger.Warn("Action rejected",
			slog.String("action", req.Action.ActionType()),
			slog.Uint64("nonce", req.Nonce),
			slog.String("message", msg),
		)
		return &resp, domain.NewRejectedError(op, msg)
	}

	c.logger.Debug("Action accepted",
		slog.String("action", req.Action.ActionType()),
		slog.Uint64("nonce", req.Nonce),
	)
	return &resp, nil
}

// rejectionMessage extracts the text of an error response, which is
// normally a bare JSON string.
func rejectionMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Info posts an info query and decodes the reply into out.
func (c *Client) Info(ctx context.Context, query map[string]any, out any) error {
	op := "info"
	if t, ok := query["type"].(string); ok {
		op += ":" + t
	}
	body, err := c.post(ctx, op, infoPath, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// MetaAndAssetCtxs returns the perp universe with live contexts.
func (c *Client) MetaAndAssetCtxs(ctx context.Context) (*domain.PerpMarkets, error) {
	var out domain.PerpMarkets
	if err := c.Info(ctx, map[string]any{"type": "metaAndAssetCtxs"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SpotMetaAndAssetCtxs returns the spot universe with live contexts.
func (c *Client) SpotMetaAndAssetCtxs(ctx context.Context) (*domain.SpotMarkets, error) {
	var out domain.SpotMarkets
	if err := c.Info(ctx, map[string]any{"type": "spotMetaAndAssetCtxs"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllMids returns the mid price of every coin.
func (c *Client) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	var raw map[string]string
	if err := c.Info(ctx, map[string]any{"type": "allMids"}, &raw); err != nil {
		return nil, err
	}
	return ParseMids(raw), nil
}

// ClearinghouseState returns positions and margin of user.
func (c *Client) ClearinghouseState(ctx context.Context, user common.Address) (*domain.AccountSnapshot, error) {
	var out domain.AccountSnapshot
	if err := c.Info(ctx, map[string]any{"type": "clearinghouseState", "user": user.Hex()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenOrders returns the resting orders of user.
func (c *Client) OpenOrders(ctx context.Context, user common.Address) ([]domain.OpenOrder, error) {
	var out []domain.OpenOrder
	if err := c.Info(ctx, map[string]any{"type": "openOrders", "user": user.Hex()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MaxBuilderFee returns the fee (tenths of a basis point) user has approved
// for builder. Zero means no approval.
func (c *Client) MaxBuilderFee(ctx context.Context, user, builder common.Address) (uint64, error) {
	var out json.Number
	query := map[string]any{
		"type":    "maxBuilderFee",
		"user":    user.Hex(),
		"builder": strings.ToLower(builder.Hex()),
	}
	if err := c.Info(ctx, query, &out); err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(out.String())
	if err != nil {
		return 0, &domain.TransportError{Op: "info:maxBuilderFee", Err: fmt.Errorf("decode fee %q: %w", out, err)}
	}
	if d.IsNegative() {
		return 0, nil
	}
	return uint64(d.IntPart()), nil
}

// post handles serialization and maps failures onto TransportError.
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.SerializationError{Action: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &domain.TransportError{Op: op, Err: err}
		}
		return nil, domain.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewTransportError(op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Retriable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	return body, nil
}

// ParseMids converts the wire map of decimal strings, skipping bad entries.
func ParseMids(raw map[string]string) map[string]decimal.Decimal {
	mids := make(map[string]decimal.Decimal, len(raw))
	for coin, px := range raw {
		d, err := decimal.NewFromString(px)
		if err != nil {
			continue
		}
		mids[coin] = d
	}
	return mids
}
