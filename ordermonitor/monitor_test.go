package ordermonitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xDeep9/boundless/ordermonitor"
	"github.com/0xDeep9/boundless/ordermonitor/ordermonitortest"
)

// Bidding starts are anchored to real wall-clock time, mirroring the
// original test harness's now_timestamp()-based fixtures: the monitor's
// minimum-deadline check measures headroom against wall time, so a
// synthetic, far-past bidding start would always read as expired.
func wallNow() uint64 { return uint64(time.Now().Unix()) }

type testHarness struct {
	monitor  *ordermonitor.Monitor
	db       *ordermonitortest.FakeDB
	chain    *ordermonitortest.FakeChainMonitor
	market   *ordermonitortest.FakeMarket
	provider *ordermonitortest.FakeProvider
	priced   chan *ordermonitor.OrderRequest
	self     common.Address
}

func newHarness(cfg ordermonitor.MonitorConfig) *testHarness {
	self := common.HexToAddress("0xAbCdEf0000000000000000000000000000dEaD")
	db := ordermonitortest.NewFakeDB()
	chain := ordermonitortest.NewFakeChainMonitor(uint256.NewInt(100))
	market := ordermonitortest.NewFakeMarket()
	provider := ordermonitortest.NewFakeProvider(self, uint256.NewInt(1_000_000_000_000))
	gas := ordermonitortest.NewFakeGasEstimator()
	priced := make(chan *ordermonitor.OrderRequest, 16)

	m := ordermonitor.NewMonitor(db, chain, market, provider, gas, ordermonitor.StaticConfig{Config: cfg}, priced)
	return &testHarness{monitor: m, db: db, chain: chain, market: market, provider: provider, priced: priced, self: self}
}

func (h *testHarness) runTick(t *testing.T, blockNumber, blockTimestamp uint64) {
	t.Helper()
	h.chain.SetHead(blockNumber, blockTimestamp)
	h.provider.SetBlock(blockNumber, blockTimestamp)
	require.NoError(t, h.monitor.TestOnlyTick(context.Background()))
}

func TestMonitorLocksAndCommitsBasicOrder(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 10
	h := newHarness(cfg)

	start := wallNow()
	order := ordermonitortest.NewOrder(h.self, ordermonitor.LockAndFulfill, start, 10_000, 10_000)
	h.priced <- order
	h.market.SetLockBlock(1)

	h.runTick(t, 1, start+5)

	committed, ok := h.db.Committed(order.ID())
	require.True(t, ok)
	assert.Equal(t, ordermonitor.OrderStatusPendingProving, committed.Status)
}

func TestMonitorSkipsExpiredOrder(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 10
	h := newHarness(cfg)

	start := wallNow()
	order := ordermonitortest.NewOrder(h.self, ordermonitor.LockAndFulfill, start, 10, 10)
	h.priced <- order

	h.runTick(t, 1, start+10_000) // well past the 10s timeout

	_, ok := h.db.Committed(order.ID())
	assert.False(t, ok)
}

func TestMonitorSkipsInsufficientDeadline(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 500
	h := newHarness(cfg)

	start := wallNow()
	// Lock window stays open far into the future, but the request's own
	// expiry is only 100s out from wall-clock now — below the 500s minimum.
	order := ordermonitortest.NewOrder(h.self, ordermonitor.LockAndFulfill, start, 10_000, 100)
	h.priced <- order

	h.runTick(t, 1, start+50)

	_, ok := h.db.Committed(order.ID())
	assert.False(t, ok)
}

func TestMonitorSkipsOrderLockedByAnotherProver(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 10
	h := newHarness(cfg)

	start := wallNow()
	order := ordermonitortest.NewOrder(h.self, ordermonitor.LockAndFulfill, start, 10_000, 10_000)
	h.priced <- order

	other := common.HexToAddress("0x1111111111111111111111111111111111dEaD")
	require.NoError(t, h.db.SetRequestLocked(context.Background(), order.Request.ID, other, start+50))

	h.runTick(t, 1, start+100)

	_, ok := h.db.Committed(order.ID())
	assert.False(t, ok)
}

func TestMonitorRespectsSlotCap(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 10
	max := uint32(1)
	cfg.MaxConcurrentProofs = &max
	h := newHarness(cfg)

	start := wallNow()
	a := ordermonitortest.NewOrder(h.self, ordermonitor.LockAndFulfill, start, 10_000, 10_000)
	b := ordermonitortest.NewOrder(h.self, ordermonitor.LockAndFulfill, start, 10_000, 10_000)
	h.priced <- a
	h.priced <- b

	h.runTick(t, 1, start+100)

	_, aOK := h.db.Committed(a.ID())
	_, bOK := h.db.Committed(b.ID())
	assert.Equal(t, 1, boolCount(aOK, bOK), "exactly one order should be admitted under the slot cap")
}

func TestMonitorBalancePressureSkipsExpensiveOrder(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 10
	h := newHarness(cfg)
	h.provider.SetBalance(uint256.NewInt(0)) // no funds at all

	start := wallNow()
	order := ordermonitortest.NewOrder(h.self, ordermonitor.FulfillWithoutLocking, start, 10_000, 10_000)
	h.priced <- order

	h.runTick(t, 1, start+100)

	_, ok := h.db.Committed(order.ID())
	assert.False(t, ok)
}

func TestMonitorWaitsForFutureTargetTimestamp(t *testing.T) {
	cfg := ordermonitor.DefaultMonitorConfig
	cfg.MinDeadline = 10
	h := newHarness(cfg)

	start := wallNow()
	order := ordermonitortest.NewOrder(h.self, ordermonitor.FulfillWithoutLocking, start, 10_000, 10_000)
	future := start + 5_000
	order.TargetTimestamp = &future
	h.priced <- order

	h.runTick(t, 1, start+100) // before target timestamp

	_, ok := h.db.Committed(order.ID())
	assert.False(t, ok, "order should not be committed before its target timestamp")
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
