package service

import (
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"hl_gateway/internal/domain"
)

// BuilderFee describes the builder that orders route fees to.
type BuilderFee struct {
	Address    common.Address
	Fee        uint64 // tenths of a basis point
	MaxFeeRate string // rate string signed in approveBuilderFee, e.g. "0.01%"
}

// Info is the order-level builder field. The address goes out lowercase.
func (b BuilderFee) Info() *domain.BuilderInfo {
	return &domain.BuilderInfo{Builder: strings.ToLower(b.Address.Hex()), Fee: b.Fee}
}

// BuilderState owns the approval flag and the one-time nudge flag. One
// value is shared by everything that reads or flips them.
type BuilderState struct {
	approved atomic.Bool
	nudged   atomic.Bool
}

func (s *BuilderState) Approved() bool { return s.approved.Load() }

func (s *BuilderState) SetApproved(v bool) { s.approved.Store(v) }

// TakeNudge reports true exactly once while the fee is unapproved.
func (s *BuilderState) TakeNudge() bool {
	return !s.approved.Load() && !s.nudged.Swap(true)
}
