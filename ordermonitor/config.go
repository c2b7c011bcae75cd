package ordermonitor

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// OrderCommitmentPriority selects the secondary sort key the admission
// filter uses after primary/non-primary classification.
type OrderCommitmentPriority uint8

const (
	// ShortestExpiry admits orders with the earliest expiration first.
	ShortestExpiry OrderCommitmentPriority = iota
)

func (p OrderCommitmentPriority) String() string {
	switch p {
	case ShortestExpiry:
		return "ShortestExpiry"
	default:
		return fmt.Sprintf("OrderCommitmentPriority(%d)", uint8(p))
	}
}

// DefaultMonitorConfig mirrors the teacher's DefaultMinerConfig/
// DefaultTxPoolConfig pattern: a ready-to-use zero-ish value an embedder can
// override field by field.
var DefaultMonitorConfig = MonitorConfig{
	MinDeadline:             0,
	AdditionalProofCycles:   0,
	BatchBufferTimeSecs:     0,
	OrderCommitmentPriority: ShortestExpiry,
	PriorityAddresses:       mapset.NewSet[common.Address](),
	LockinPriorityGasGwei:   nil,
	RPCRetryConfig:          RPCRetryConfig{RetryCount: 3, RetrySleep: 500 * time.Millisecond},
}

// RPCRetryConfig bounds the transient-RPC-read retry helper in retry.go.
type RPCRetryConfig struct {
	RetryCount uint64
	RetrySleep time.Duration
}

// MonitorConfig is the set of knobs read fresh at the start of every tick,
// generalizing the teacher's MinerConfig/TxPoolConfig shape (plain struct +
// String() + package-level default) to the order-monitor domain.
type MonitorConfig struct {
	// MinDeadline is the minimum remaining fulfillment time, in seconds,
	// required to keep an order.
	MinDeadline uint64
	// PeakProveKHz, when set, upper-bounds proving throughput: cycles ÷
	// (rate × 1000) must not exceed an order's remaining deadline.
	PeakProveKHz *uint64
	// MaxConcurrentProofs caps committed+admitted proving slots; nil means
	// unlimited.
	MaxConcurrentProofs *uint32
	// AdditionalProofCycles pads every cycle estimate used by the
	// throughput filter.
	AdditionalProofCycles uint64
	// BatchBufferTimeSecs is a temporal safety margin added to proof-time
	// deadline math.
	BatchBufferTimeSecs uint64
	// OrderCommitmentPriority is the admission filter's secondary sort key.
	OrderCommitmentPriority OrderCommitmentPriority
	// PriorityAddresses boosts matching requesters to primary status. Held
	// as a set since every candidate order is membership-tested against it
	// once per tick.
	PriorityAddresses mapset.Set[common.Address]
	// LockinPriorityGasGwei overrides the per-tx priority fee used when
	// submitting a lock transaction.
	LockinPriorityGasGwei *uint256.Int
	// StakeBalanceWarnThreshold / StakeBalanceErrorThreshold are alerting
	// only (spec: "alerting only"); they never change an admission
	// decision.
	StakeBalanceWarnThreshold  *uint256.Int
	StakeBalanceErrorThreshold *uint256.Int
	// RPCRetryConfig bounds retried transient RPC reads (block fetch after
	// a lock submission).
	RPCRetryConfig RPCRetryConfig
}

func (c *MonitorConfig) String() string {
	priorityCount := 0
	if c.PriorityAddresses != nil {
		priorityCount = c.PriorityAddresses.Cardinality()
	}
	return fmt.Sprintf(
		"MinDeadline: %d, PeakProveKHz: %v, MaxConcurrentProofs: %v, AdditionalProofCycles: %d, "+
			"BatchBufferTimeSecs: %d, OrderCommitmentPriority: %s, PriorityAddresses: %d",
		c.MinDeadline, derefU64(c.PeakProveKHz), derefU32(c.MaxConcurrentProofs), c.AdditionalProofCycles,
		c.BatchBufferTimeSecs, c.OrderCommitmentPriority, priorityCount)
}

// IsPrimary reports whether addr is on the priority allowlist.
func (c *MonitorConfig) IsPrimary(addr common.Address) bool {
	if c.PriorityAddresses == nil {
		return false
	}
	return c.PriorityAddresses.Contains(addr)
}

// ConfigSource supplies a fresh snapshot of the monitor's configuration
// each tick, a narrow analogue of the original implementation's
// lock-guarded ConfigLock — the monitor keeps only the snapshot read at the
// start of the current tick.
type ConfigSource interface {
	MonitorConfig() (MonitorConfig, error)
}

// StaticConfig is a ConfigSource that always returns the same snapshot,
// useful for tests and for embedders without a hot-reloadable config layer.
type StaticConfig struct {
	Config MonitorConfig
}

func (s StaticConfig) MonitorConfig() (MonitorConfig, error) { return s.Config, nil }

func derefU64(v *uint64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

func derefU32(v *uint32) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}
