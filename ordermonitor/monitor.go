package ordermonitor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/sync/semaphore"
)

// lockFanoutLimit bounds how many orders the monitor locks/proves
// concurrently in a single tick, mirroring the stress harness's
// semaphore.NewWeighted(batchSize) pattern rather than an unbounded
// futures::join_all fan-out.
const lockFanoutLimit = maxProvingBatchSize

// Monitor drives the admission-control loop: each tick it drains newly
// priced orders into the two expiring caches, selects candidates whose
// deadlines and target timestamps have been reached, ranks and admits them
// under the current proving capacity and wallet balance, and finally locks
// (or directly commits) the admitted set.
type Monitor struct {
	db           DB
	chainMonitor ChainMonitor
	market       MarketClient
	provider     Provider
	gas          GasEstimator
	configSource ConfigSource

	cfg MonitorConfig // snapshot refreshed at the start of every tick

	lockAndProveCache *orderCache
	proveCache        *orderCache
	blockCache        *blockHeaderCache

	capacityLogMu      sync.Mutex
	prevOrdersByStatus string

	priced <-chan *OrderRequest
}

// NewMonitor constructs a Monitor reading freshly priced orders from
// priced and configuration from configSource.
func NewMonitor(db DB, chainMonitor ChainMonitor, market MarketClient, provider Provider, gas GasEstimator, configSource ConfigSource, priced <-chan *OrderRequest) *Monitor {
	return &Monitor{
		db:                db,
		chainMonitor:      chainMonitor,
		market:            market,
		provider:          provider,
		gas:               gas,
		configSource:      configSource,
		lockAndProveCache: newOrderCache("lock_and_prove"),
		proveCache:        newOrderCache("prove"),
		blockCache:        newBlockHeaderCache(256),
		priced:            priced,
	}
}

// Run drives the tick loop until ctx is cancelled, sleeping interval
// between ticks.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	log.Info("starting order monitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("order monitor stopping", "err", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				log.Error("order monitor tick failed", "err", err)
			}
		}
	}
}

// TestOnlyTick runs a single tick synchronously; exported for use by
// ordermonitortest-based integration tests outside this package.
func (m *Monitor) TestOnlyTick(ctx context.Context) error {
	return m.tick(ctx)
}

// tick runs one full drain -> select -> admit -> commit cycle, checking ctx
// between each major phase so a cancellation fires a clean exit before the
// next phase starts rather than mid-phase, per spec.md's cancellation
// model; in-flight RPC/DB calls within a phase still run to completion.
func (m *Monitor) tick(ctx context.Context) error {
	defer metricsTickCost(time.Now())

	m.drainPriced()
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := m.configSource.MonitorConfig()
	if err != nil {
		return errUnexpected("config", err)
	}
	m.cfg = cfg

	head, err := m.chainMonitor.Head(ctx)
	if err != nil {
		return errRPC("head", err)
	}

	selectionStart := time.Now()
	candidates, err := m.selectCandidates(ctx, head.Timestamp, nowUnix())
	metricsSelectionCost(selectionStart)
	if err != nil {
		return err
	}
	CandidateOrdersGauge.Update(int64(len(candidates)))
	if len(candidates) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	admitted, err := m.applyCapacityLimits(ctx, candidates, cfg, head.Timestamp)
	if err != nil {
		return err
	}
	AdmittedOrdersGauge.Update(int64(len(admitted)))
	if len(admitted) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.lockAndProveOrders(ctx, admitted, cfg)
	return nil
}

// drainPriced moves every order currently waiting on the priced channel
// into the cache matching its fulfillment type, never blocking the tick if
// the channel is empty.
func (m *Monitor) drainPriced() {
	for {
		select {
		case order, ok := <-m.priced:
			if !ok {
				return
			}
			switch order.FulfillmentType {
			case LockAndFulfill:
				m.lockAndProveCache.Insert(order)
			default:
				m.proveCache.Insert(order)
			}
		default:
			return
		}
	}
}

// lockAndProveOrders fans out over admitted orders bounded by
// lockFanoutLimit, locking LockAndFulfill orders before committing them and
// committing the rest directly, generalizing the original's
// futures::join_all over lock_and_prove_orders.
func (m *Monitor) lockAndProveOrders(ctx context.Context, orders []*OrderRequest, cfg MonitorConfig) {
	defer metricsLockCost(time.Now())

	sem := semaphore.NewWeighted(lockFanoutLimit)
	var wg sync.WaitGroup

	for _, order := range orders {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn("lock fan-out interrupted", "err", err)
			break
		}
		wg.Add(1)
		go func(order *OrderRequest) {
			defer sem.Release(1)
			defer wg.Done()
			m.commitOrder(ctx, order, cfg)
		}(order)
	}
	wg.Wait()
}

func (m *Monitor) commitOrder(ctx context.Context, order *OrderRequest, cfg MonitorConfig) {
	id := order.ID()

	if order.FulfillmentType != LockAndFulfill {
		if err := m.db.InsertAcceptedRequest(ctx, order, uint256.NewInt(0)); err != nil {
			log.Error("failed to set order status to pending proving", "id", id, "err", err)
		}
		m.proveCache.Invalidate(id)
		return
	}

	lockPrice, err := m.lockOrder(ctx, order, cfg)
	if err != nil {
		metricsLockResult(false)
		// AlreadyLocked/LockTxFailed/LockTxNotConfirmed/RpcErr are soft
		// failures: routine, expected to recur across orders, logged at warn.
		// Our own InsufficientBalance and an UnexpectedError are hard
		// failures: they signal an operational problem worth a louder log,
		// even though the order still just gets skipped like any other.
		switch me, ok := err.(*MonitorError); {
		case ok && me.code == codeAlreadyLocked:
			log.Warn("soft failed to lock request", "id", id, "code", me.Code())
		case ok && (me.code == codeInsufficientBal || me.code == codeUnexpected):
			log.Error("failed to lock request", "id", id, "err", err)
		default:
			log.Warn("soft failed to lock request", "id", id, "err", err)
		}
		if dbErr := m.db.InsertSkippedRequest(ctx, order); dbErr != nil {
			log.Error("failed to set db failure state for order", "id", id, "err", dbErr)
		}
		metricsOrderSkipped()
		m.lockAndProveCache.Invalidate(id)
		return
	}

	metricsLockResult(true)
	log.Info("locked request", "id", id)
	if err := m.db.InsertAcceptedRequest(ctx, order, lockPrice); err != nil {
		log.Error("FATAL STAKE AT RISK: failed to move order from locking to proving status", "id", id, "err", err)
	}
	m.lockAndProveCache.Invalidate(id)
}
