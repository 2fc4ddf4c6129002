package event

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Event is anything the realtime stream delivers to the cache.
type Event interface {
	EventKind() string
}

// Connected is emitted after the socket is open and every subscription was sent.
type Connected struct{}

// Disconnected is emitted when the socket closes; Err is nil on a clean shutdown.
type Disconnected struct {
	Err error
}

// AllMids carries the latest mid price of every listed coin.
type AllMids struct {
	Mids map[string]decimal.Decimal
}

// OrderUpdates carries raw orderUpdates data for the configured user.
type OrderUpdates struct {
	Raw json.RawMessage
}

// UserFills carries raw userFills data. The first message after subscribing
// is a snapshot of recent fills.
type UserFills struct {
	Raw        json.RawMessage
	IsSnapshot bool
}

func (Connected) EventKind() string    { return "connected" }
func (Disconnected) EventKind() string { return "disconnected" }
func (AllMids) EventKind() string      { return "allMids" }
func (OrderUpdates) EventKind() string { return "orderUpdates" }
func (UserFills) EventKind() string    { return "userFills" }

// UserScoped reports whether ev invalidates account-specific cached data.
func UserScoped(ev Event) bool {
	switch ev.(type) {
	case OrderUpdates, *OrderUpdates, UserFills, *UserFills:
		return true
	}
	return false
}
