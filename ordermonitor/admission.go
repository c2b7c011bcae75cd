package ordermonitor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// provingOrderCapacity computes how many proving slots remain this tick,
// and as a side effect logs the committed-order roster whenever it
// changes, generalizing the original's get_proving_order_capacity /
// log_capacity pair.
func (m *Monitor) provingOrderCapacity(ctx context.Context, maxConcurrentProofs *uint32) (capacity, error) {
	if maxConcurrentProofs == nil {
		return unlimitedCapacity(), nil
	}

	committed, err := m.db.GetCommittedOrders(ctx)
	if err != nil {
		return capacity{}, errCapacityCheck(err)
	}

	m.logCapacity(committed, *maxConcurrentProofs)

	count := uint32(len(committed))
	var available uint32
	if *maxConcurrentProofs > count {
		available = *maxConcurrentProofs - count
	}
	return availableCapacity(available), nil
}

// logCapacity logs the committed-order roster only when its membership or
// status changes, since the roster's timestamps would otherwise make every
// line differ from the last and drown the log, exactly as the original
// notes.
func (m *Monitor) logCapacity(committed []*Order, max uint32) {
	ids := make([]string, 0, len(committed))
	for _, o := range committed {
		ids = append(ids, fmt.Sprintf("%s-%s", o.Status, o.ID()))
	}
	sort.Strings(ids)
	cur := strings.Join(ids, ",")

	m.capacityLogMu.Lock()
	changed := cur != m.prevOrdersByStatus
	m.prevOrdersByStatus = cur
	m.capacityLogMu.Unlock()

	if changed {
		log.Info("current committed orders", "count", len(committed), "max", max, "orders", ids)
	}
}

// applyCapacityLimits ranks candidates, grants proving slots up to the
// available capacity, and greedily admits as many as the wallet balance
// allows, generalizing the original's apply_capacity_limits.
func (m *Monitor) applyCapacityLimits(ctx context.Context, orders []*OrderRequest, cfg MonitorConfig, nowChain uint64) ([]*OrderRequest, error) {
	numOrders := len(orders)

	for _, order := range orders {
		order.SetPrimary(cfg.IsPrimary(order.Request.Client))
	}

	sort.SliceStable(orders, func(i, j int) bool {
		pi, pj := priorityRank(orders[i]), priorityRank(orders[j])
		if pi != pj {
			return pi < pj
		}
		return orders[i].Expiration() < orders[j].Expiration()
	})

	avail, err := m.provingOrderCapacity(ctx, cfg.MaxConcurrentProofs)
	if err != nil {
		return nil, err
	}
	granted := int(avail.requestCapacity(uint32(numOrders)))

	log.Info("proving capacity this tick", "candidates", numOrders, "capacity", avail, "granted", granted)

	committed, err := m.db.GetCommittedOrders(ctx)
	if err != nil {
		return nil, errCapacityCheck(err)
	}

	gasPrice, err := m.chainMonitor.CurrentGasPrice(ctx)
	if err != nil {
		return nil, errRPC("current_gas_price", err)
	}
	available, err := m.provider.GetBalance(ctx, m.provider.DefaultSignerAddress())
	if err != nil {
		return nil, errRPC("get_balance", err)
	}

	runningCost := new(uint256.Int)
	for _, order := range committed {
		units, err := m.gas.EstimateGasToFulfill(ctx, &order.Request)
		if err != nil {
			return nil, err
		}
		runningCost.Add(runningCost, costOf(gasPrice, units))
	}

	final := make([]*OrderRequest, 0, granted)
	for _, order := range orders {
		if len(final) >= granted {
			break
		}

		units, err := m.gasUnitsFor(ctx, order)
		if err != nil {
			return nil, err
		}
		totalCost := costOf(gasPrice, units)

		projected := new(uint256.Int).Add(runningCost, totalCost)
		if projected.Cmp(available) > 0 {
			log.Debug("skipping order, would exceed available balance", "id", order.ID())
			continue
		}
		runningCost = projected
		final = append(final, order)
	}

	m.checkStakeBalance(available, cfg)

	pruned := pruneForThroughput(final, cfg, committedCycles(committed, cfg), nowChain)
	for _, dropped := range final[len(pruned):] {
		log.Debug("dropping order, exceeds configured proving throughput", "id", dropped.ID())
		m.skipOrder(ctx, dropped, "cannot be completed before its expiration")
	}

	return pruned, nil
}

// gasUnitsFor estimates the gas units a candidate will consume this tick:
// lock-plus-fulfill for LockAndFulfill orders, fulfill-only otherwise, per
// spec section 4.4 step 4.
func (m *Monitor) gasUnitsFor(ctx context.Context, order *OrderRequest) (uint64, error) {
	fulfillUnits, err := m.gas.EstimateGasToFulfill(ctx, &order.Request)
	if err != nil {
		return 0, err
	}
	if order.FulfillmentType != LockAndFulfill {
		return fulfillUnits, nil
	}
	lockUnits, err := m.gas.EstimateGasToLock(ctx, order)
	if err != nil {
		return 0, err
	}
	return fulfillUnits + lockUnits, nil
}

func priorityRank(o *OrderRequest) int {
	if o.IsPrimary() {
		return 0
	}
	return 1
}

func costOf(gasPrice *uint256.Int, gasUnits uint64) *uint256.Int {
	return new(uint256.Int).Mul(gasPrice, uint256.NewInt(gasUnits))
}

// committedCycles sums the total-cycles estimate (plus the configured
// padding) of every already-committed order — the starting point for the
// cumulative proving-throughput budget pruneForThroughput checks each
// candidate against.
func committedCycles(committed []*Order, cfg MonitorConfig) uint64 {
	var total uint64
	for _, o := range committed {
		if o.TotalCycles == nil {
			continue
		}
		total += *o.TotalCycles + cfg.AdditionalProofCycles
	}
	return total
}

// pruneForThroughput drops admitted orders, from the tail of the already
// priority-sorted list, until the cumulative proving time of every
// committed order plus every remaining admitted order (processed serially,
// in priority order) fits within each remaining order's own remaining
// deadline, measured from its target time (or nowChain if it has none) —
// spec section 4.4 step 5. Dropping from the tail resolves the spec's own
// open question on which candidates to shed first: highest-priority,
// earliest-expiry orders are preserved.
func pruneForThroughput(orders []*OrderRequest, cfg MonitorConfig, committedCyclesTotal uint64, nowChain uint64) []*OrderRequest {
	if cfg.PeakProveKHz == nil || *cfg.PeakProveKHz == 0 {
		return orders
	}

	log.Debug("started with orders", "count", len(orders))

	kept := append([]*OrderRequest(nil), orders...)
	for len(kept) > 0 && cumulativeExceedsDeadline(kept, cfg, committedCyclesTotal, nowChain) {
		kept = kept[:len(kept)-1]
	}

	if len(kept) != len(orders) {
		ids := make([]string, 0, len(kept))
		for _, o := range kept {
			ids = append(ids, o.ID())
		}
		log.Info("filtered orders for proving throughput", "count", len(kept), "ids", ids)
	}
	return kept
}

// remainingDeadline is the time budget an order's proof has left, measured
// from its target timestamp (the time the scheduler would start acting on
// it) or nowChain if it has no target set — spec section 4.4 step 5's
// "remaining deadline at its target time". Zero if already past expiry.
func remainingDeadline(order *OrderRequest, nowChain uint64) uint64 {
	start := nowChain
	if order.TargetTimestamp != nil && *order.TargetTimestamp > start {
		start = *order.TargetTimestamp
	}
	expiry := order.Expiry()
	if expiry <= start {
		return 0
	}
	return expiry - start
}

// cumulativeExceedsDeadline reports whether any order in the priority-
// ordered slice would finish proving, behind every earlier order (starting
// from committedCycles), after its own remaining deadline.
func cumulativeExceedsDeadline(orders []*OrderRequest, cfg MonitorConfig, committedCyclesTotal uint64, nowChain uint64) bool {
	cumulative := committedCyclesTotal
	for _, order := range orders {
		if order.TotalCycles != nil {
			cumulative += *order.TotalCycles + cfg.AdditionalProofCycles
		}
		provingSecs := cumulative / (*cfg.PeakProveKHz * 1000)
		if provingSecs+cfg.BatchBufferTimeSecs > remainingDeadline(order, nowChain) {
			return true
		}
	}
	return false
}

// checkStakeBalance logs alerting-only warnings when available balance
// crosses the configured thresholds; it never changes an admission
// decision, per the original's design.
func (m *Monitor) checkStakeBalance(available *uint256.Int, cfg MonitorConfig) {
	if cfg.StakeBalanceErrorThreshold != nil && available.Cmp(cfg.StakeBalanceErrorThreshold) < 0 {
		log.Error("signer balance below error threshold", "balance", available, "threshold", cfg.StakeBalanceErrorThreshold)
		return
	}
	if cfg.StakeBalanceWarnThreshold != nil && available.Cmp(cfg.StakeBalanceWarnThreshold) < 0 {
		log.Warn("signer balance below warn threshold", "balance", available, "threshold", cfg.StakeBalanceWarnThreshold)
	}
}
