package domain

import (
	"encoding/json"
	"testing"
)

func TestOrderActionJSONOmitsEmptyBuilder(t *testing.T) {
	a := NewOrderAction([]OrderWire{{
		Asset: 4, IsBuy: true, LimitPx: "1670.1", Size: "0.0147",
		OrderType: OrderTypeWire{Limit: &LimitOrderType{Tif: TifIoc}},
	}}, "", nil)

	if a.Grouping != GroupingNa {
		t.Errorf("default grouping = %q, want na", a.Grouping)
	}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"order","orders":[{"a":4,"b":true,"p":"1670.1","s":"0.0147","r":false,"t":{"limit":{"tif":"Ioc"}}}],"grouping":"na"}`
	if string(b) != want {
		t.Errorf("json =\n%s\nwant\n%s", b, want)
	}
}

func TestUserSignedActionsCarryChain(t *testing.T) {
	fee := NewApproveBuilderFeeAction(Testnet, "0xdadcb94d61d4a14e8ad1b94acf888120b7e807ae", "0.01%", 42)
	if fee.HyperliquidChain != "Testnet" || fee.SignatureChainID != SignatureChainID {
		t.Errorf("unexpected chain fields: %+v", fee)
	}
	if got := fee.TypedMessage()["nonce"]; got != "42" {
		t.Errorf("typed nonce = %v, want decimal string 42", got)
	}

	agent := NewApproveAgentAction(Mainnet, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", "hlmcp-101926", 7)
	fields := agent.TypedFields()
	if len(fields) != 4 || fields[1].Name != "agentAddress" || fields[1].Type != "address" {
		t.Errorf("unexpected schema: %+v", fields)
	}
	if agent.TypedName() != "ApproveAgent" || agent.ActionType() != ActionTypeApproveAgent {
		t.Error("unexpected names")
	}
	// Every schema member must have a message value.
	msg := agent.TypedMessage()
	for _, f := range fields {
		if _, ok := msg[f.Name]; !ok {
			t.Errorf("message missing %q", f.Name)
		}
	}
}

func TestScheduleCancelJSON(t *testing.T) {
	at := uint64(1760832000000)
	tests := []struct {
		name string
		at   *uint64
		want string
	}{
		{"scheduled", &at, `{"type":"scheduleCancel","time":1760832000000}`},
		{"cleared", nil, `{"type":"scheduleCancel"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(NewScheduleCancelAction(tt.at))
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("json = %s, want %s", b, tt.want)
			}
		})
	}
}

func TestModifyActionJSON(t *testing.T) {
	a := NewModifyAction([]ModifyWire{{
		Oid: 77,
		Order: OrderWire{
			Asset: 0, IsBuy: false, LimitPx: "61000", Size: "0.01",
			OrderType: OrderTypeWire{Trigger: &TriggerOrderType{IsMarket: true, TriggerPx: "60500", Tpsl: TpslStopLoss}},
		},
	}})
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"batchModify","modifies":[{"oid":77,"order":{"a":0,"b":false,"p":"61000","s":"0.01","r":false,"t":{"trigger":{"isMarket":true,"triggerPx":"60500","tpsl":"sl"}}}}]}`
	if string(b) != want {
		t.Errorf("json =\n%s\nwant\n%s", b, want)
	}
}

func TestUsdClassTransferTypedMessage(t *testing.T) {
	a := NewUsdClassTransferAction(Mainnet, "12.5", true, 9)
	if a.HyperliquidChain != "Mainnet" || a.SignatureChainID != SignatureChainID {
		t.Errorf("unexpected chain fields: %+v", a)
	}
	msg := a.TypedMessage()
	if msg["toPerp"] != true || msg["amount"] != "12.5" || msg["nonce"] != "9" {
		t.Errorf("typed message = %v", msg)
	}
	for _, f := range a.TypedFields() {
		if _, ok := msg[f.Name]; !ok {
			t.Errorf("message missing %q", f.Name)
		}
	}
}
