package ordermonitor

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func khz(v uint64) *uint64 { return &v }

func TestCumulativeExceedsDeadline(t *testing.T) {
	cycles := uint64(1_000_000)
	o := newTestOrder(1, nil)
	o.TotalCycles = &cycles
	o.Request.Offer.BiddingStart = 0
	o.Request.Offer.Timeout = 9 // expiry at 9s, less than the 10s proving takes

	cfg := MonitorConfig{PeakProveKHz: khz(100)} // 1_000_000 / (100*1000) = 10s to prove
	assert.True(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 0, 0), "10s to prove vs 9s deadline should exceed")

	cfg.PeakProveKHz = khz(1000) // 1s to prove
	assert.False(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 0, 0))
}

// TestCumulativeExceedsDeadlineUsesRemainingTime pins BiddingStart/Timeout
// to realistic absolute unix timestamps (not zero-based, as the other
// cases in this file use for arithmetic convenience) to confirm the check
// is measured against remaining time-to-expiry rather than the raw
// absolute expiry timestamp.
func TestCumulativeExceedsDeadlineUsesRemainingTime(t *testing.T) {
	cycles := uint64(1_000_000)
	now := uint64(1_800_000_000)
	o := newTestOrder(1, nil)
	o.TotalCycles = &cycles
	o.Request.Offer.BiddingStart = now
	o.Request.Offer.Timeout = 9 // expiry = now+9, 9s remaining, less than the 10s proving takes

	cfg := MonitorConfig{PeakProveKHz: khz(100)} // 1_000_000 / (100*1000) = 10s to prove
	assert.True(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 0, now))

	o.Request.Offer.Timeout = 11 // 11s remaining, enough
	assert.False(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 0, now))
}

func TestCumulativeExceedsDeadlineNoCycles(t *testing.T) {
	o := newTestOrder(1, nil)
	cfg := MonitorConfig{PeakProveKHz: khz(1)}
	assert.False(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 0, 0))
}

func TestCumulativeExceedsDeadlineAccountsForCommitted(t *testing.T) {
	cycles := uint64(100)
	o := newTestOrder(1, nil)
	o.TotalCycles = &cycles
	o.Request.Offer.Timeout = 1 // 1s deadline

	cfg := MonitorConfig{PeakProveKHz: khz(1)} // 100 cycles / 1000 = 0s on its own, fits
	assert.False(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 0, 0))

	// 2000 cycles already committed pushes the cumulative total to 2s, which
	// blows the 1s deadline even though the order's own cycles are tiny.
	assert.True(t, cumulativeExceedsDeadline([]*OrderRequest{o}, cfg, 2_000, 0))
}

func TestPruneForThroughputDropsFromTail(t *testing.T) {
	cfg := MonitorConfig{PeakProveKHz: khz(1)}
	cycles := uint64(10_000)
	a := newTestOrder(1, nil)
	a.Request.Offer.Timeout = 1 // tight deadline, will exceed
	a.TotalCycles = &cycles

	b := newTestOrder(2, nil)
	b.Request.Offer.Timeout = 100000 // plenty of headroom
	b.TotalCycles = &cycles

	orders := []*OrderRequest{b, a} // b first (higher priority), a second
	pruned := pruneForThroughput(orders, cfg, 0, 0)
	assert.Len(t, pruned, 1)
	assert.Equal(t, b.ID(), pruned[0].ID())
}

func TestPruneForThroughputNoLimitConfigured(t *testing.T) {
	orders := []*OrderRequest{newTestOrder(1, nil), newTestOrder(2, nil)}
	pruned := pruneForThroughput(orders, MonitorConfig{}, 0, 0)
	assert.Len(t, pruned, 2)
}

// TestPruneForThroughputCumulativeScenario mirrors the spec's literal
// throughput-vs-deadline scenario: candidates with cycles {1e6..5e6} at
// peak_prove_khz=100 (100,000 cycles/sec) and a uniform 100s deadline admit
// the first four (cumulative 10e6 cycles = 100s) and drop the fifth
// (cumulative 15e6 cycles = 150s).
func TestPruneForThroughputCumulativeScenario(t *testing.T) {
	cfg := MonitorConfig{PeakProveKHz: khz(100)}
	var orders []*OrderRequest
	for i, m := range []uint64{1, 2, 3, 4, 5} {
		cycles := m * 1_000_000
		o := newTestOrder(uint64(i+1), nil)
		o.TotalCycles = &cycles
		o.Request.Offer.Timeout = 100
		orders = append(orders, o)
	}

	pruned := pruneForThroughput(orders, cfg, 0, 0)
	require := assert.New(t)
	require.Len(pruned, 4)
	for i := 0; i < 4; i++ {
		require.Equal(orders[i].ID(), pruned[i].ID())
	}
}

func TestPriorityRank(t *testing.T) {
	o := newTestOrder(1, nil)
	assert.Equal(t, 1, priorityRank(o))
	o.SetPrimary(true)
	assert.Equal(t, 0, priorityRank(o))
}

func TestCostOf(t *testing.T) {
	cost := costOf(uint256.NewInt(10), 5)
	assert.Equal(t, uint256.NewInt(50), cost)
}
