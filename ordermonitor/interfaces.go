package ordermonitor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DB is the subset of the persistent order database the monitor needs. The
// database schema and its durability are out of scope here; only this
// interface is consumed.
type DB interface {
	IsRequestLocked(ctx context.Context, requestID *uint256.Int) (bool, error)
	IsRequestFulfilled(ctx context.Context, requestID *uint256.Int) (bool, error)
	// GetRequestLocked returns the address that holds the lock and the block
	// timestamp it was locked at, if any.
	GetRequestLocked(ctx context.Context, requestID *uint256.Int) (locker common.Address, lockedAt uint64, ok bool, err error)
	GetCommittedOrders(ctx context.Context) ([]*Order, error)
	InsertAcceptedRequest(ctx context.Context, order *OrderRequest, lockPrice *uint256.Int) error
	InsertSkippedRequest(ctx context.Context, order *OrderRequest) error
	// SetRequestLocked is only used by tests to seed lock state.
	SetRequestLocked(ctx context.Context, requestID *uint256.Int, locker common.Address, lockedAt uint64) error
}

// ChainHead is the minimal chain head data the monitor reads each tick.
type ChainHead struct {
	Number    uint64
	Timestamp uint64
}

// ChainMonitor is the subset of the chain-monitoring service consumed here.
type ChainMonitor interface {
	CurrentGasPrice(ctx context.Context) (*uint256.Int, error)
	Head(ctx context.Context) (ChainHead, error)
}

// MarketClient is the subset of the market contract client consumed here.
type MarketClient interface {
	GetStatus(ctx context.Context, requestID *uint256.Int, expiresAt uint64) (RequestStatus, error)
	// LockRequest submits the lock transaction and returns the block number
	// it was (or is expected to be) included in.
	LockRequest(ctx context.Context, order *OrderRequest, priorityGasGwei *uint256.Int) (lockBlock uint64, err error)
}

// BlockHeader is the minimal block data the Provider collaborator returns.
type BlockHeader struct {
	Number    uint64
	Timestamp uint64
}

// Provider is the subset of the chain/wallet RPC provider consumed here.
type Provider interface {
	DefaultSignerAddress() common.Address
	GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error)
	GetBlockByNumber(ctx context.Context, number uint64) (*BlockHeader, error)
}

// GasEstimator supplies per-order gas-unit estimates, generalizing the
// original implementation's configurable lockin/fulfill/groth16-verify gas
// estimates (and its per-selector cost table) behind a narrow interface so
// the admission filter never hardcodes a constant.
type GasEstimator interface {
	EstimateGasToLock(ctx context.Context, order *OrderRequest) (uint64, error)
	EstimateGasToFulfill(ctx context.Context, request *Request) (uint64, error)
}
