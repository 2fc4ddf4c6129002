package domain

import "encoding/json"

// Signature is an ECDSA signature in the exchange's JSON form.
// R and S are 0x-prefixed 32-byte hex; V is 27 or 28.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// ExchangeRequest is the signed envelope POSTed to /exchange.
type ExchangeRequest struct {
	Action       Action    `json:"action"`
	Nonce        uint64    `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress"`
}

// ExchangeResponse is the generic {"status": ..., "response": ...} reply.
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// OK reports whether the exchange accepted the action envelope.
// Individual order statuses inside Response may still carry errors.
func (r *ExchangeResponse) OK() bool {
	return r != nil && r.Status == "ok"
}

// OrderStatus is one entry of response.data.statuses for order actions.
type OrderStatus struct {
	Resting *struct {
		Oid uint64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
		Oid     uint64 `json:"oid"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

// Statuses decodes response.data.statuses. Cancel actions return plain
// "success" strings there; those decode as zero-value statuses.
func (r *ExchangeResponse) Statuses() ([]OrderStatus, error) {
	var body struct {
		Data struct {
			Statuses []json.RawMessage `json:"statuses"`
		} `json:"data"`
	}
	if len(r.Response) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(r.Response, &body); err != nil {
		return nil, err
	}
	out := make([]OrderStatus, 0, len(body.Data.Statuses))
	for _, raw := range body.Data.Statuses {
		var st OrderStatus
		if len(raw) > 0 && raw[0] == '{' {
			if err := json.Unmarshal(raw, &st); err != nil {
				return nil, err
			}
		}
		out = append(out, st)
	}
	return out, nil
}
