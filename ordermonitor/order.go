// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package ordermonitor implements admission control and lock scheduling for
// a prover in a proof marketplace: it decides which priced orders to commit
// to and drives them from a pending cache through an on-chain lock (or a
// direct admission) into the PendingProving state.
package ordermonitor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FulfillmentType describes how an order is committed to.
type FulfillmentType uint8

const (
	// LockAndFulfill locks the request on-chain before proving it.
	LockAndFulfill FulfillmentType = iota
	// FulfillAfterLockExpire proves the request once another prover's lock
	// window has expired without fulfillment.
	FulfillAfterLockExpire
	// FulfillWithoutLocking proves the request without ever locking it.
	FulfillWithoutLocking
)

func (f FulfillmentType) String() string {
	switch f {
	case LockAndFulfill:
		return "LockAndFulfill"
	case FulfillAfterLockExpire:
		return "FulfillAfterLockExpire"
	case FulfillWithoutLocking:
		return "FulfillWithoutLocking"
	default:
		return fmt.Sprintf("FulfillmentType(%d)", uint8(f))
	}
}

// OrderStatus is the lifecycle state of an Order as tracked in the order
// database. The monitor only ever writes PendingProving or Skipped; the
// remaining states are produced and consumed by collaborators out of scope
// here (pricing pipeline, prover).
type OrderStatus uint8

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusPendingLock
	OrderStatusPendingProving
	OrderStatusProving
	OrderStatusSkipped
	OrderStatusFulfilled
	OrderStatusFailed
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusPendingLock:
		return "PendingLock"
	case OrderStatusPendingProving:
		return "PendingProving"
	case OrderStatusProving:
		return "Proving"
	case OrderStatusSkipped:
		return "Skipped"
	case OrderStatusFulfilled:
		return "Fulfilled"
	case OrderStatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("OrderStatus(%d)", uint8(s))
	}
}

// Committed reports whether an order occupies a proving slot: it has passed
// the admission gate and is not yet terminal.
func (s OrderStatus) Committed() bool {
	switch s {
	case OrderStatusPendingProving, OrderStatusProving, OrderStatusPendingLock:
		return true
	default:
		return false
	}
}

// Offer carries the pricing terms of a request, enough to derive the price
// a lock was made at without needing the full pricing pipeline here.
type Offer struct {
	MinPrice     *uint256.Int
	MaxPrice     *uint256.Int
	BiddingStart uint64
	RampUpPeriod uint64
	LockTimeout  uint64 // seconds after BiddingStart the lock window closes
	Timeout      uint64 // seconds after BiddingStart the request itself expires
	LockStake    *uint256.Int
}

// PriceAt linearly interpolates the offer price at the given block
// timestamp across the ramp-up window, clamping to [MinPrice, MaxPrice].
func (o *Offer) PriceAt(timestamp uint64) (*uint256.Int, error) {
	if o == nil {
		return nil, fmt.Errorf("offer is nil")
	}
	rampUpEnd := o.BiddingStart + o.RampUpPeriod
	switch {
	case timestamp <= o.BiddingStart:
		return new(uint256.Int).Set(o.MinPrice), nil
	case timestamp >= rampUpEnd || o.RampUpPeriod == 0:
		return new(uint256.Int).Set(o.MaxPrice), nil
	default:
		elapsed := timestamp - o.BiddingStart
		span := new(uint256.Int).Sub(o.MaxPrice, o.MinPrice)
		span.Mul(span, uint256.NewInt(elapsed))
		span.Div(span, uint256.NewInt(o.RampUpPeriod))
		return new(uint256.Int).Add(o.MinPrice, span), nil
	}
}

// Request is the on-chain proof request this order was priced for.
type Request struct {
	ID        *uint256.Int
	Client    common.Address
	Offer     Offer
	ImageURL  string
}

// ExpiresAt is the deadline by which the request must be fulfilled.
func (r *Request) ExpiresAt() uint64 {
	return r.Offer.BiddingStart + r.Offer.Timeout
}

// LockExpiresAt is the deadline by which the request must be locked.
func (r *Request) LockExpiresAt() uint64 {
	return r.Offer.BiddingStart + r.Offer.LockTimeout
}

// OrderRequest is a priced order as delivered by the pricing pipeline. It is
// the unit the two expiring caches hold and the admission filter ranks.
type OrderRequest struct {
	Request         Request
	FulfillmentType FulfillmentType
	ClientSig       []byte
	TargetTimestamp *uint64 // earliest block time the scheduler may act
	ExpireTimestamp *uint64 // used as the cache entry's TTL
	TotalCycles     *uint64 // used only by the proving-throughput filter
	LockStake       *uint256.Int

	primary bool // resolved once against MonitorConfig.PriorityAddresses
}

// ID is the stable cache/DB key for this order.
func (o *OrderRequest) ID() string {
	return fmt.Sprintf("%s-%s", o.Request.ID.Hex(), o.FulfillmentType)
}

// Expiry is the deadline relevant to deadline filtering: the request's own
// expiration for non-locking fulfillment, and the same for LockAndFulfill
// since once locked the prover is bound to the original request deadline.
func (o *OrderRequest) Expiry() uint64 {
	return o.Request.ExpiresAt()
}

// IsPrimary reports whether this order's requester is on the configured
// priority allowlist, as set by applyCapacityLimits before it ranks orders.
func (o *OrderRequest) IsPrimary() bool {
	return o.primary
}

// SetPrimary sets the priority classification. applyCapacityLimits calls it
// with MonitorConfig.IsPrimary for each candidate before ranking; tests call
// it directly.
func (o *OrderRequest) SetPrimary(primary bool) {
	o.primary = primary
}

// Expiration is the tie-break value used by the admission sort: earliest
// expiration wins within a priority class.
func (o *OrderRequest) Expiration() uint64 {
	return o.Expiry()
}

// Order is the persisted, read-mostly record the DB tracks. The monitor
// only writes status transitions to it; everything else is maintained by
// collaborators out of scope here.
type Order struct {
	IDValue     string
	Request     Request
	Status      OrderStatus
	TotalCycles *uint64
	LockPrice   *uint256.Int
}

func (o *Order) ID() string { return o.IDValue }

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%s status=%s}", o.IDValue, o.Status)
}

// RequestStatus mirrors the market contract's view of a request.
type RequestStatus uint8

const (
	RequestStatusUnknown RequestStatus = iota
	RequestStatusLocked
	RequestStatusFulfilled
	RequestStatusExpired
)

func (s RequestStatus) String() string {
	switch s {
	case RequestStatusUnknown:
		return "Unknown"
	case RequestStatusLocked:
		return "Locked"
	case RequestStatusFulfilled:
		return "Fulfilled"
	case RequestStatusExpired:
		return "Expired"
	default:
		return fmt.Sprintf("RequestStatus(%d)", uint8(s))
	}
}
