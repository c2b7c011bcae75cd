// Package ordermonitortest provides in-memory test doubles for
// ordermonitor's collaborator interfaces, adapted from the original
// implementation's setup_om_test_context/create_test_order harness: no
// sqlite or local chain is spun up, since persistence schema and consensus
// are out of scope here — a plain map-backed fake suffices to exercise the
// monitor's own logic.
package ordermonitortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/0xDeep9/boundless/ordermonitor"
)

// FakeDB is an in-memory ordermonitor.DB.
type FakeDB struct {
	mu sync.Mutex

	locked    map[string]lockRecord
	fulfilled map[string]bool
	committed map[string]*ordermonitor.Order
}

type lockRecord struct {
	locker   common.Address
	lockedAt uint64
}

func NewFakeDB() *FakeDB {
	return &FakeDB{
		locked:    make(map[string]lockRecord),
		fulfilled: make(map[string]bool),
		committed: make(map[string]*ordermonitor.Order),
	}
}

func (d *FakeDB) IsRequestLocked(_ context.Context, requestID *uint256.Int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.locked[requestID.Hex()]
	return ok, nil
}

func (d *FakeDB) IsRequestFulfilled(_ context.Context, requestID *uint256.Int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fulfilled[requestID.Hex()], nil
}

func (d *FakeDB) GetRequestLocked(_ context.Context, requestID *uint256.Int) (common.Address, uint64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.locked[requestID.Hex()]
	if !ok {
		return common.Address{}, 0, false, nil
	}
	return rec.locker, rec.lockedAt, true, nil
}

func (d *FakeDB) GetCommittedOrders(_ context.Context) ([]*ordermonitor.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*ordermonitor.Order, 0, len(d.committed))
	for _, o := range d.committed {
		out = append(out, o)
	}
	return out, nil
}

func (d *FakeDB) InsertAcceptedRequest(_ context.Context, order *ordermonitor.OrderRequest, lockPrice *uint256.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.committed[order.ID()] = &ordermonitor.Order{
		IDValue:   order.ID(),
		Request:   order.Request,
		Status:    ordermonitor.OrderStatusPendingProving,
		LockPrice: lockPrice,
	}
	return nil
}

func (d *FakeDB) InsertSkippedRequest(_ context.Context, order *ordermonitor.OrderRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.committed, order.ID())
	return nil
}

func (d *FakeDB) SetRequestLocked(_ context.Context, requestID *uint256.Int, locker common.Address, lockedAt uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locked[requestID.Hex()] = lockRecord{locker: locker, lockedAt: lockedAt}
	return nil
}

func (d *FakeDB) CommittedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.committed)
}

func (d *FakeDB) Committed(id string) (*ordermonitor.Order, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.committed[id]
	return o, ok
}

func (d *FakeDB) MarkFulfilled(requestID *uint256.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fulfilled[requestID.Hex()] = true
}

// FakeChainMonitor is an in-memory ordermonitor.ChainMonitor.
type FakeChainMonitor struct {
	mu       sync.Mutex
	gasPrice *uint256.Int
	head     ordermonitor.ChainHead
}

func NewFakeChainMonitor(gasPrice *uint256.Int) *FakeChainMonitor {
	return &FakeChainMonitor{gasPrice: gasPrice}
}

func (c *FakeChainMonitor) CurrentGasPrice(context.Context) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gasPrice, nil
}

func (c *FakeChainMonitor) Head(context.Context) (ordermonitor.ChainHead, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

func (c *FakeChainMonitor) SetHead(number, timestamp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = ordermonitor.ChainHead{Number: number, Timestamp: timestamp}
}

// FakeMarket is an in-memory ordermonitor.MarketClient.
type FakeMarket struct {
	mu sync.Mutex

	statuses  map[string]ordermonitor.RequestStatus
	lockBlock uint64
	lockErr   error
}

func NewFakeMarket() *FakeMarket {
	return &FakeMarket{statuses: make(map[string]ordermonitor.RequestStatus), lockBlock: 1}
}

func (m *FakeMarket) GetStatus(_ context.Context, requestID *uint256.Int, _ uint64) (ordermonitor.RequestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[requestID.Hex()], nil
}

func (m *FakeMarket) LockRequest(_ context.Context, order *ordermonitor.OrderRequest, _ *uint256.Int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return 0, m.lockErr
	}
	return m.lockBlock, nil
}

func (m *FakeMarket) SetStatus(requestID *uint256.Int, status ordermonitor.RequestStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[requestID.Hex()] = status
}

func (m *FakeMarket) SetLockBlock(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockBlock = block
}

func (m *FakeMarket) SetLockErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockErr = err
}

// FakeProvider is an in-memory ordermonitor.Provider.
type FakeProvider struct {
	mu sync.Mutex

	self    common.Address
	balance *uint256.Int
	blocks  map[uint64]*ordermonitor.BlockHeader
}

func NewFakeProvider(self common.Address, balance *uint256.Int) *FakeProvider {
	return &FakeProvider{self: self, balance: balance, blocks: make(map[uint64]*ordermonitor.BlockHeader)}
}

func (p *FakeProvider) DefaultSignerAddress() common.Address { return p.self }

func (p *FakeProvider) GetBalance(context.Context, common.Address) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *FakeProvider) GetBlockByNumber(_ context.Context, number uint64) (*ordermonitor.BlockHeader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.blocks[number]
	if !ok {
		return nil, fmt.Errorf("block %d not found", number)
	}
	return h, nil
}

func (p *FakeProvider) SetBlock(number, timestamp uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks[number] = &ordermonitor.BlockHeader{Number: number, Timestamp: timestamp}
}

func (p *FakeProvider) SetBalance(balance *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance = balance
}

// FakeGasEstimator is a fixed-cost ordermonitor.GasEstimator.
type FakeGasEstimator struct {
	LockGas    uint64
	FulfillGas uint64
}

func NewFakeGasEstimator() *FakeGasEstimator {
	return &FakeGasEstimator{LockGas: 200_000, FulfillGas: 300_000}
}

func (g *FakeGasEstimator) EstimateGasToLock(context.Context, *ordermonitor.OrderRequest) (uint64, error) {
	return g.LockGas, nil
}

func (g *FakeGasEstimator) EstimateGasToFulfill(context.Context, *ordermonitor.Request) (uint64, error) {
	return g.FulfillGas, nil
}

// NewOrder builds a test OrderRequest, generalizing the original's
// create_test_order helper: each call gets a unique request ID.
var nextOrderID uint64 = 1
var nextOrderIDMu sync.Mutex

func NewOrder(requester common.Address, fulfillmentType ordermonitor.FulfillmentType, biddingStart, lockTimeout, timeout uint64) *ordermonitor.OrderRequest {
	nextOrderIDMu.Lock()
	id := nextOrderID
	nextOrderID++
	nextOrderIDMu.Unlock()

	target := uint64(0)
	return &ordermonitor.OrderRequest{
		Request: ordermonitor.Request{
			ID:     uint256.NewInt(id),
			Client: requester,
			Offer: ordermonitor.Offer{
				MinPrice:     uint256.NewInt(1),
				MaxPrice:     uint256.NewInt(2),
				BiddingStart: biddingStart,
				RampUpPeriod: 1,
				LockTimeout:  lockTimeout,
				Timeout:      timeout,
				LockStake:    uint256.NewInt(0),
			},
			ImageURL: "http://risczero.com/image",
		},
		FulfillmentType: fulfillmentType,
		TargetTimestamp: &target,
	}
}
