package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// NonceSequencer hands out strictly increasing nonces to every signed action.
// It is the only mutable state shared by all signing paths and is lock-free.
type NonceSequencer struct {
	last atomic.Uint64
}

// NewNonceSequencer returns a sequencer whose first Next() is start.
// A start of 0 is treated as 1 so that a nonce is never zero.
func NewNonceSequencer(start uint64) *NonceSequencer {
	if start == 0 {
		start = 1
	}
	s := &NonceSequencer{}
	s.last.Store(start - 1)
	return s
}

// NewClockNonceSequencer seeds the sequence with the current Unix time in
// milliseconds, which is what the exchange expects as a nonce.
func NewClockNonceSequencer() *NonceSequencer {
	start := uint64(time.Now().UnixMilli())
	slog.Debug("Nonce sequencer seeded", slog.Uint64("start", start))
	return NewNonceSequencer(start)
}

// Next returns the next nonce. Concurrent callers always receive distinct
// values. Wrapping past the uint64 range halts the process.
func (s *NonceSequencer) Next() uint64 {
	n := s.last.Add(1)
	if n == 0 {
		panic(fmt.Sprintf("NONCE_OVERFLOW: sequence wrapped after %d", ^uint64(0)))
	}
	return n
}

// Peek returns the last issued nonce without consuming one.
func (s *NonceSequencer) Peek() uint64 {
	return s.last.Load()
}
