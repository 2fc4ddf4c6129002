package hyperliquid

import (
	"math/rand/v2"
	"time"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// reconnectDelay returns how long to wait before reconnect attempt retry.
// The ceiling doubles per attempt up to reconnectMaxDelay; the delay is
// drawn from the upper half of it so that gateways dropped together do not
// reconnect in lockstep. jitter returns a value in [0, 1).
func reconnectDelay(retry int, jitter func() float64) time.Duration {
	ceiling := reconnectMaxDelay
	if retry < 0 {
		retry = 0
	}
	if retry < 30 {
		if d := reconnectBaseDelay << retry; d < ceiling {
			ceiling = d
		}
	}
	half := ceiling / 2
	return half + time.Duration(jitter()*float64(ceiling-half))
}

func defaultJitter() float64 { return rand.Float64() }
