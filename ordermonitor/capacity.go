package ordermonitor

// maxProvingBatchSize hard-caps the number of orders kicked off for locking
// and/or proving in a single tick, irrespective of configured limits.
const maxProvingBatchSize = 10

// capacity represents how many proving slots are available this tick, and
// vends out a grant capped at maxProvingBatchSize so a single tick never
// spawns more fan-out than that regardless of configuration.
type capacity struct {
	unlimited bool
	available uint32 // meaningful only when !unlimited
}

func unlimitedCapacity() capacity { return capacity{unlimited: true} }

func availableCapacity(n uint32) capacity { return capacity{available: n} }

// requestCapacity returns the number of proofs the monitor may kick off
// this tick for the given number of candidate orders.
func (c capacity) requestCapacity(request uint32) uint32 {
	if c.unlimited {
		return min32(request, maxProvingBatchSize)
	}
	if request > c.available {
		return min32(c.available, maxProvingBatchSize)
	}
	return min32(request, maxProvingBatchSize)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
