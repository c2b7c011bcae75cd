package ordermonitor

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// normalizeAddr lowercases and strips the 0x prefix, so a locker address
// read back from chain state can be compared against our own signer
// address without a false negative from case or prefix mismatch — the
// original implementation flagged exactly this as a recurring bug source.
func normalizeAddr(addr common.Address) string {
	return strings.TrimPrefix(strings.ToLower(addr.Hex()), "0x")
}

func sameAddr(a, b common.Address) bool {
	return normalizeAddr(a) == normalizeAddr(b)
}

func isWithinDeadline(order *OrderRequest, nowChain, nowWall, minDeadline uint64) bool {
	expiry := order.Expiry()
	if expiry < nowChain {
		log.Debug("order has expired, skipping", "id", order.ID())
		return false
	}
	var headroom uint64
	if expiry > nowWall {
		headroom = expiry - nowWall
	}
	if headroom < minDeadline {
		log.Debug("order deadline below minimum", "id", order.ID(), "deadline", expiry, "min_deadline", minDeadline)
		return false
	}
	return true
}

func isTargetTimeReached(order *OrderRequest, nowChain uint64) bool {
	if order.TargetTimestamp == nil {
		log.Warn("order has no target timestamp set", "id", order.ID())
		return false
	}
	if nowChain < *order.TargetTimestamp {
		return false
	}
	return true
}

// skipOrder records an order as skipped and drops it from whichever cache
// it lives in, mirroring the original's skip_order helper.
func (m *Monitor) skipOrder(ctx context.Context, order *OrderRequest, reason string) {
	if err := m.db.InsertSkippedRequest(ctx, order); err != nil {
		log.Error("failed to record skipped order", "reason", reason, "id", order.ID(), "err", err)
	}
	switch order.FulfillmentType {
	case LockAndFulfill:
		m.lockAndProveCache.Invalidate(order.ID())
	default:
		m.proveCache.Invalidate(order.ID())
	}
}

// selectCandidates sweeps both expiring caches and returns the orders ready
// to be considered for admission this tick, mirroring the original
// get_valid_orders: prove_cache entries are dropped if already fulfilled by
// another prover or past deadline, and otherwise wait for their target
// timestamp; lock_and_prove_cache entries are additionally filtered on lock
// ownership via the normalized address comparison.
func (m *Monitor) selectCandidates(ctx context.Context, nowChain, nowWall uint64) ([]*OrderRequest, error) {
	var candidates []*OrderRequest

	for _, order := range m.proveCache.Snapshot() {
		fulfilled, err := m.db.IsRequestFulfilled(ctx, order.Request.ID)
		if err != nil {
			return nil, errFetchOrders(err)
		}
		switch {
		case fulfilled:
			log.Debug("order was fulfilled by another prover, skipping", "id", order.ID())
			m.skipOrder(ctx, order, "fulfilled by other")
		case !isWithinDeadline(order, nowChain, nowWall, m.cfg.MinDeadline):
			m.skipOrder(ctx, order, "expired")
		case isTargetTimeReached(order, nowChain):
			log.Info("order locked by another prover expired unfulfilled, proving", "id", order.ID())
			candidates = append(candidates, order)
		}
	}

	self := m.provider.DefaultSignerAddress()
	for _, order := range m.lockAndProveCache.Snapshot() {
		if order.Request.LockExpiresAt() < nowChain {
			log.Debug("lock window expired before we locked, skipping", "id", order.ID())
			m.skipOrder(ctx, order, "lock expired before we locked")
			continue
		}

		locker, _, locked, err := m.db.GetRequestLocked(ctx, order.Request.ID)
		switch {
		case err != nil:
			return nil, errFetchOrders(err)
		case locked && !sameAddr(locker, self):
			log.Debug("order already locked by another prover, skipping", "id", order.ID(), "locker", locker)
			m.skipOrder(ctx, order, "locked by another prover")
		case locked:
			// We hold the lock already but never advanced past locking —
			// should not happen, but proceed to proving rather than stall.
			log.Debug("order already locked by us, proceeding to prove", "id", order.ID())
			candidates = append(candidates, order)
		case !isWithinDeadline(order, nowChain, nowWall, m.cfg.MinDeadline):
			m.skipOrder(ctx, order, "insufficient deadline")
		case isTargetTimeReached(order, nowChain):
			candidates = append(candidates, order)
		}
	}

	return candidates, nil
}
