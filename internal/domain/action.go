package domain

import "strconv"

// Action is an instruction submitted to the exchange's /exchange endpoint.
// Struct field order is the wire order: the remote verifier re-encodes the
// action with the same field names in the same order before hashing.
type Action interface {
	ActionType() string
}

// UserSignedAction is an identity-level action signed as an explicit
// EIP-712 document instead of through the phantom agent.
type UserSignedAction interface {
	Action
	TypedName() string
	TypedFields() []TypedField
	TypedMessage() map[string]any
}

// TypedField is one member of an EIP-712 struct schema.
type TypedField struct {
	Name string
	Type string
}

const (
	ActionTypeOrder             = "order"
	ActionTypeCancel            = "cancel"
	ActionTypeUpdateLeverage    = "updateLeverage"
	ActionTypeApproveBuilderFee = "approveBuilderFee"
	ActionTypeApproveAgent      = "approveAgent"
	ActionTypeBatchModify       = "batchModify"
	ActionTypeScheduleCancel    = "scheduleCancel"
	ActionTypeUsdClassTransfer  = "usdClassTransfer"

	// SignatureChainID is the hex chain id the user-signed domain is bound to.
	SignatureChainID = "0x66eee"
)

type Tif string

const (
	TifGtc Tif = "Gtc"
	TifIoc Tif = "Ioc"
	TifAlo Tif = "Alo"
)

type Grouping string

const (
	GroupingNa           Grouping = "na"
	GroupingNormalTpsl   Grouping = "normalTpsl"
	GroupingPositionTpsl Grouping = "positionTpsl"
)

type LimitOrderType struct {
	Tif Tif `msgpack:"tif" json:"tif"`
}

// Tpsl marks a trigger order as take profit or stop loss.
type Tpsl string

const (
	TpslTakeProfit Tpsl = "tp"
	TpslStopLoss   Tpsl = "sl"
)

type TriggerOrderType struct {
	IsMarket  bool   `msgpack:"isMarket" json:"isMarket"`
	TriggerPx string `msgpack:"triggerPx" json:"triggerPx"`
	Tpsl      Tpsl   `msgpack:"tpsl" json:"tpsl"`
}

type OrderTypeWire struct {
	Limit   *LimitOrderType   `msgpack:"limit,omitempty" json:"limit,omitempty"`
	Trigger *TriggerOrderType `msgpack:"trigger,omitempty" json:"trigger,omitempty"`
}

// OrderWire is the compact single-letter order encoding.
// Prices and sizes are normalized decimal strings (no trailing zeros).
type OrderWire struct {
	Asset      int           `msgpack:"a" json:"a"`
	IsBuy      bool          `msgpack:"b" json:"b"`
	LimitPx    string        `msgpack:"p" json:"p"`
	Size       string        `msgpack:"s" json:"s"`
	ReduceOnly bool          `msgpack:"r" json:"r"`
	OrderType  OrderTypeWire `msgpack:"t" json:"t"`
	Cloid      string        `msgpack:"c,omitempty" json:"c,omitempty"`
}

// BuilderInfo routes a builder fee on an order. Fee is in tenths of a basis point.
type BuilderInfo struct {
	Builder string `msgpack:"b" json:"b"` // lowercase hex address
	Fee     uint64 `msgpack:"f" json:"f"`
}

type OrderAction struct {
	Type     string       `msgpack:"type" json:"type"`
	Orders   []OrderWire  `msgpack:"orders" json:"orders"`
	Grouping Grouping     `msgpack:"grouping" json:"grouping"`
	Builder  *BuilderInfo `msgpack:"builder,omitempty" json:"builder,omitempty"`
}

// NewOrderAction builds an order action. A nil builder is omitted from the wire.
func NewOrderAction(orders []OrderWire, grouping Grouping, builder *BuilderInfo) OrderAction {
	if grouping == "" {
		grouping = GroupingNa
	}
	return OrderAction{Type: ActionTypeOrder, Orders: orders, Grouping: grouping, Builder: builder}
}

func (a OrderAction) ActionType() string { return a.Type }

type CancelWire struct {
	Asset int    `msgpack:"a" json:"a"`
	Oid   uint64 `msgpack:"o" json:"o"`
}

type CancelAction struct {
	Type    string       `msgpack:"type" json:"type"`
	Cancels []CancelWire `msgpack:"cancels" json:"cancels"`
}

func NewCancelAction(cancels []CancelWire) CancelAction {
	return CancelAction{Type: ActionTypeCancel, Cancels: cancels}
}

func (a CancelAction) ActionType() string { return a.Type }

// ModifyWire replaces resting order Oid with Order.
type ModifyWire struct {
	Oid   uint64    `msgpack:"oid" json:"oid"`
	Order OrderWire `msgpack:"order" json:"order"`
}

type ModifyAction struct {
	Type     string       `msgpack:"type" json:"type"`
	Modifies []ModifyWire `msgpack:"modifies" json:"modifies"`
}

func NewModifyAction(modifies []ModifyWire) ModifyAction {
	return ModifyAction{Type: ActionTypeBatchModify, Modifies: modifies}
}

func (a ModifyAction) ActionType() string { return a.Type }

// ScheduleCancelAction cancels every open order at Time (Unix ms).
// A nil Time clears the schedule.
type ScheduleCancelAction struct {
	Type string  `msgpack:"type" json:"type"`
	Time *uint64 `msgpack:"time,omitempty" json:"time,omitempty"`
}

func NewScheduleCancelAction(at *uint64) ScheduleCancelAction {
	return ScheduleCancelAction{Type: ActionTypeScheduleCancel, Time: at}
}

func (a ScheduleCancelAction) ActionType() string { return a.Type }

type UpdateLeverageAction struct {
	Type     string `msgpack:"type" json:"type"`
	Asset    int    `msgpack:"asset" json:"asset"`
	IsCross  bool   `msgpack:"isCross" json:"isCross"`
	Leverage uint32 `msgpack:"leverage" json:"leverage"`
}

func NewUpdateLeverageAction(asset int, isCross bool, leverage uint32) UpdateLeverageAction {
	return UpdateLeverageAction{Type: ActionTypeUpdateLeverage, Asset: asset, IsCross: isCross, Leverage: leverage}
}

func (a UpdateLeverageAction) ActionType() string { return a.Type }

// ApproveBuilderFeeAction lets a builder charge up to MaxFeeRate (e.g. "0.01%") on orders.
type ApproveBuilderFeeAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainID string `json:"signatureChainId"`
	MaxFeeRate       string `json:"maxFeeRate"`
	Builder          string `json:"builder"`
	Nonce            uint64 `json:"nonce"`
}

func NewApproveBuilderFeeAction(chain Chain, builder, maxFeeRate string, nonce uint64) ApproveBuilderFeeAction {
	return ApproveBuilderFeeAction{
		Type:             ActionTypeApproveBuilderFee,
		HyperliquidChain: chain.Name(),
		SignatureChainID: SignatureChainID,
		MaxFeeRate:       maxFeeRate,
		Builder:          builder,
		Nonce:            nonce,
	}
}

func (a ApproveBuilderFeeAction) ActionType() string { return a.Type }

func (a ApproveBuilderFeeAction) TypedName() string { return "ApproveBuilderFee" }

func (a ApproveBuilderFeeAction) TypedFields() []TypedField {
	return []TypedField{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "maxFeeRate", Type: "string"},
		{Name: "builder", Type: "address"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a ApproveBuilderFeeAction) TypedMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"maxFeeRate":       a.MaxFeeRate,
		"builder":          a.Builder,
		"nonce":            strconv.FormatUint(a.Nonce, 10),
	}
}

// ApproveAgentAction authorizes AgentAddress to trade on behalf of the signer.
type ApproveAgentAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainID string `json:"signatureChainId"`
	AgentAddress     string `json:"agentAddress"`
	AgentName        string `json:"agentName"`
	Nonce            uint64 `json:"nonce"`
}

func NewApproveAgentAction(chain Chain, agentAddress, agentName string, nonce uint64) ApproveAgentAction {
	return ApproveAgentAction{
		Type:             ActionTypeApproveAgent,
		HyperliquidChain: chain.Name(),
		SignatureChainID: SignatureChainID,
		AgentAddress:     agentAddress,
		AgentName:        agentName,
		Nonce:            nonce,
	}
}

func (a ApproveAgentAction) ActionType() string { return a.Type }

func (a ApproveAgentAction) TypedName() string { return "ApproveAgent" }

func (a ApproveAgentAction) TypedFields() []TypedField {
	return []TypedField{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "agentAddress", Type: "address"},
		{Name: "agentName", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a ApproveAgentAction) TypedMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"agentAddress":     a.AgentAddress,
		"agentName":        a.AgentName,
		"nonce":            strconv.FormatUint(a.Nonce, 10),
	}
}

// UsdClassTransferAction moves USDC between the spot and perp balances.
// Amount is a plain decimal string such as "12.5".
type UsdClassTransferAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainID string `json:"signatureChainId"`
	Amount           string `json:"amount"`
	ToPerp           bool   `json:"toPerp"`
	Nonce            uint64 `json:"nonce"`
}

func NewUsdClassTransferAction(chain Chain, amount string, toPerp bool, nonce uint64) UsdClassTransferAction {
	return UsdClassTransferAction{
		Type:             ActionTypeUsdClassTransfer,
		HyperliquidChain: chain.Name(),
		SignatureChainID: SignatureChainID,
		Amount:           amount,
		ToPerp:           toPerp,
		Nonce:            nonce,
	}
}

func (a UsdClassTransferAction) ActionType() string { return a.Type }

func (a UsdClassTransferAction) TypedName() string { return "UsdClassTransfer" }

func (a UsdClassTransferAction) TypedFields() []TypedField {
	return []TypedField{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "toPerp", Type: "bool"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a UsdClassTransferAction) TypedMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"amount":           a.Amount,
		"toPerp":           a.ToPerp,
		"nonce":            strconv.FormatUint(a.Nonce, 10),
	}
}
