package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// SpotAssetOffset is added to a spot pair index to form its order asset id.
const SpotAssetOffset = 10000

type PerpAsset struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	IsDelisted  bool   `json:"isDelisted,omitempty"`
}

type PerpAssetCtx struct {
	Funding      decimal.Decimal `json:"funding"`
	OpenInterest decimal.Decimal `json:"openInterest"`
	MarkPx       decimal.Decimal `json:"markPx"`
	MidPx        decimal.Decimal `json:"midPx"`
	OraclePx     decimal.Decimal `json:"oraclePx"`
	DayNtlVlm    decimal.Decimal `json:"dayNtlVlm"`
	PrevDayPx    decimal.Decimal `json:"prevDayPx"`
}

// PerpMarkets is the metaAndAssetCtxs reply: the perp universe and one
// context per universe entry, index-aligned.
type PerpMarkets struct {
	Universe []PerpAsset
	Contexts []PerpAssetCtx
}

func (m *PerpMarkets) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("metaAndAssetCtxs: expected 2 elements, got %d", len(pair))
	}
	var meta struct {
		Universe []PerpAsset `json:"universe"`
	}
	if err := json.Unmarshal(pair[0], &meta); err != nil {
		return err
	}
	var ctxs []PerpAssetCtx
	if err := json.Unmarshal(pair[1], &ctxs); err != nil {
		return err
	}
	m.Universe = meta.Universe
	m.Contexts = ctxs
	return nil
}

// AssetIndex returns the order asset id of a perp coin.
func (m *PerpMarkets) AssetIndex(coin string) (int, bool) {
	if m == nil {
		return 0, false
	}
	for i, a := range m.Universe {
		if a.Name == coin {
			return i, true
		}
	}
	return 0, false
}

type SpotAsset struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Tokens []int  `json:"tokens"`
}

type SpotAssetCtx struct {
	Coin      string          `json:"coin"`
	MarkPx    decimal.Decimal `json:"markPx"`
	MidPx     decimal.Decimal `json:"midPx"`
	DayNtlVlm decimal.Decimal `json:"dayNtlVlm"`
	PrevDayPx decimal.Decimal `json:"prevDayPx"`
}

// SpotMarkets is the spotMetaAndAssetCtxs reply.
type SpotMarkets struct {
	Universe []SpotAsset
	Contexts []SpotAssetCtx
}

func (m *SpotMarkets) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("spotMetaAndAssetCtxs: expected 2 elements, got %d", len(pair))
	}
	var meta struct {
		Universe []SpotAsset `json:"universe"`
	}
	if err := json.Unmarshal(pair[0], &meta); err != nil {
		return err
	}
	var ctxs []SpotAssetCtx
	if err := json.Unmarshal(pair[1], &ctxs); err != nil {
		return err
	}
	m.Universe = meta.Universe
	m.Contexts = ctxs
	return nil
}

// AssetIndex returns the order asset id (10000 + pair index) of a spot pair.
func (m *SpotMarkets) AssetIndex(name string) (int, bool) {
	if m == nil {
		return 0, false
	}
	for _, a := range m.Universe {
		if a.Name == name {
			return SpotAssetOffset + a.Index, true
		}
	}
	return 0, false
}

type Leverage struct {
	Type  string `json:"type"` // "cross" or "isolated"
	Value int    `json:"value"`
}

type Position struct {
	Coin           string          `json:"coin"`
	Szi            decimal.Decimal `json:"szi"`
	EntryPx        decimal.Decimal `json:"entryPx"`
	PositionValue  decimal.Decimal `json:"positionValue"`
	UnrealizedPnl  decimal.Decimal `json:"unrealizedPnl"`
	LiquidationPx  decimal.Decimal `json:"liquidationPx"`
	MarginUsed     decimal.Decimal `json:"marginUsed"`
	ReturnOnEquity decimal.Decimal `json:"returnOnEquity"`
	Leverage       Leverage        `json:"leverage"`
}

type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

type MarginSummary struct {
	AccountValue    decimal.Decimal `json:"accountValue"`
	TotalNtlPos     decimal.Decimal `json:"totalNtlPos"`
	TotalRawUsd     decimal.Decimal `json:"totalRawUsd"`
	TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
}

// AccountSnapshot is the clearinghouseState of a user.
type AccountSnapshot struct {
	AssetPositions     []AssetPosition `json:"assetPositions"`
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       decimal.Decimal `json:"withdrawable"`
	Time               int64           `json:"time"`
}

// OpenPositions returns positions with a non-zero signed size.
func (s *AccountSnapshot) OpenPositions() []Position {
	if s == nil {
		return nil
	}
	var out []Position
	for _, ap := range s.AssetPositions {
		if !ap.Position.Szi.IsZero() {
			out = append(out, ap.Position)
		}
	}
	return out
}

type OpenOrder struct {
	Coin      string          `json:"coin"`
	Side      string          `json:"side"` // "B" bid, "A" ask
	LimitPx   decimal.Decimal `json:"limitPx"`
	Sz        decimal.Decimal `json:"sz"`
	Oid       uint64          `json:"oid"`
	Timestamp int64           `json:"timestamp"`
	OrigSz    decimal.Decimal `json:"origSz"`
}
