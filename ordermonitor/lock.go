package ordermonitor

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// lockOrder submits the on-chain lock transaction for order and returns the
// price the lock cleared at, generalizing the original's lock_order: a
// pre-flight status check against the market contract and the local DB,
// the lock submission itself, and a retried block-timestamp fetch used to
// price the lock after the fact.
func (m *Monitor) lockOrder(ctx context.Context, order *OrderRequest, cfg MonitorConfig) (*uint256.Int, error) {
	requestID := order.Request.ID

	status, err := m.market.GetStatus(ctx, requestID, order.Request.ExpiresAt())
	if err != nil {
		return nil, errRPC("get_status", err)
	}
	if status != RequestStatusUnknown {
		log.Info("request not open, skipping", "id", order.ID(), "status", status)
		return nil, errAlreadyLocked(order.ID(), "")
	}

	locked, err := m.db.IsRequestLocked(ctx, requestID)
	if err != nil {
		return nil, errFetchOrders(err)
	}
	if locked {
		log.Warn("request already locked", "id", order.ID())
		return nil, errAlreadyLocked(order.ID(), "")
	}

	log.Info("locking request", "id", order.ID(), "stake", order.Request.Offer.LockStake)
	lockBlock, err := m.market.LockRequest(ctx, order, cfg.LockinPriorityGasGwei)
	if err != nil {
		return nil, classifyLockError(order, m.provider.DefaultSignerAddress().Hex(), err)
	}

	// The receipt can be available before the block itself is queryable;
	// retry the fetch rather than fail the lock outright.
	header, err := retryRPC(ctx, cfg.RPCRetryConfig, "get_block_by_number", func(ctx context.Context) (*BlockHeader, error) {
		if cached, ok := m.blockCache.Get(lockBlock); ok {
			return cached, nil
		}
		h, err := m.provider.GetBlockByNumber(ctx, lockBlock)
		if err != nil {
			return nil, err
		}
		m.blockCache.Add(h)
		return h, nil
	})
	if err != nil {
		return nil, errUnexpected(order.ID(), err)
	}

	lockPrice, err := order.Request.Offer.PriceAt(header.Timestamp)
	if err != nil {
		return nil, errUnexpected(order.ID(), err)
	}
	return lockPrice, nil
}

// classifyLockError maps a lock-submission failure onto the stable error
// taxonomy, including the substring-plus-address disambiguation the
// original uses to tell "we are out of funds" apart from "the requestor
// is out of funds" when the revert reason is a generic string.
func classifyLockError(order *OrderRequest, selfAddr string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "RequestIsLocked"):
		return errAlreadyLocked(order.ID(), "")
	case errors.Is(err, errTxnConfirmation):
		return errLockTxNotConfirmed(order.ID(), err)
	case strings.Contains(msg, "InsufficientBalance"):
		selfNormalized := strings.TrimPrefix(strings.ToLower(selfAddr), "0x")
		if strings.Contains(lower, selfNormalized) {
			return errInsufficientBalance(order.ID(), err)
		}
		// The requestor being out of funds is outside our control; treat it
		// as a soft lock failure rather than our own insufficient balance.
		return errLockTxFailed(order.ID(), err)
	case errors.Is(err, errTxnSubmission):
		return errLockTxFailed(order.ID(), err)
	default:
		return errUnexpected(order.ID(), err)
	}
}

// errTxnSubmission / errTxnConfirmation are sentinel wrap targets a
// MarketClient implementation can return to route a failure through the
// relevant classifyLockError branch without string matching.
var (
	errTxnSubmission   = errors.New("lock transaction submission failed")
	errTxnConfirmation = errors.New("lock transaction did not confirm")
)
