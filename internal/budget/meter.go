package budget

import (
	"context"
	"sync/atomic"
)

// UsageMeter is a fixed allowance of governance units, decremented as remote
// operations consume them. The allowance replenishes each run because a new
// meter is constructed per run.
type UsageMeter struct {
	allowance int64
	used      atomic.Int64
}

// NewUsageMeter creates a meter with the given unit allowance.
func NewUsageMeter(allowance int) *UsageMeter {
	return &UsageMeter{allowance: int64(allowance)}
}

// Consume records units spent.
func (m *UsageMeter) Consume(units int) {
	m.used.Add(int64(units))
}

// Remaining reports unspent units, never below zero.
func (m *UsageMeter) Remaining(_ context.Context) (int, error) {
	r := m.allowance - m.used.Load()
	if r < 0 {
		r = 0
	}
	return int(r), nil
}
