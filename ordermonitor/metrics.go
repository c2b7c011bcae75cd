package ordermonitor

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

// metrics, generalizing preconf's registered-gauge/meter/timer block to the
// order monitor's tick/select/admit/lock pipeline.
var (
	CandidateOrdersGauge   = metrics.NewRegisteredGauge("ordermonitor/candidates", nil)
	AdmittedOrdersGauge    = metrics.NewRegisteredGauge("ordermonitor/admitted", nil)
	CapacityAvailableGauge = metrics.NewRegisteredGauge("ordermonitor/capacity/available", nil)

	LockSuccessMeter  = metrics.NewRegisteredMeter("ordermonitor/lock/success", nil)
	LockFailureMeter  = metrics.NewRegisteredMeter("ordermonitor/lock/failure", nil)
	OrderSkippedMeter = metrics.NewRegisteredMeter("ordermonitor/order/skipped", nil)

	TickTimer      = metrics.NewRegisteredTimer("ordermonitor/tick", nil)
	LockExecTimer  = metrics.NewRegisteredTimer("ordermonitor/lock/exec", nil)
	SelectionTimer = metrics.NewRegisteredTimer("ordermonitor/select", nil)
)

func metricsTickCost(start time.Time) { TickTimer.Update(time.Since(start)) }

func metricsLockCost(start time.Time) { LockExecTimer.Update(time.Since(start)) }

func metricsSelectionCost(start time.Time) { SelectionTimer.Update(time.Since(start)) }

func metricsLockResult(ok bool) {
	if ok {
		LockSuccessMeter.Mark(1)
	} else {
		LockFailureMeter.Mark(1)
	}
}

func metricsOrderSkipped() { OrderSkippedMeter.Mark(1) }
