package ordermonitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapacityUnlimited(t *testing.T) {
	c := unlimitedCapacity()
	assert.Equal(t, uint32(0), c.requestCapacity(0))
	assert.Equal(t, uint32(maxProvingBatchSize), c.requestCapacity(15))
	assert.Equal(t, uint32(maxProvingBatchSize), c.requestCapacity(maxProvingBatchSize))
}

func TestCapacityAvailable(t *testing.T) {
	c := availableCapacity(50)
	assert.Equal(t, uint32(0), c.requestCapacity(0))
	assert.Equal(t, uint32(4), c.requestCapacity(4))
	assert.Equal(t, uint32(maxProvingBatchSize), c.requestCapacity(10))
}

func TestCapacityAvailableBelowBatchSize(t *testing.T) {
	c := availableCapacity(3)
	assert.Equal(t, uint32(3), c.requestCapacity(10))
}
