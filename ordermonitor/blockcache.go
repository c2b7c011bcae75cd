package ordermonitor

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// blockHeaderCacheTTL bounds how long a fetched block header is trusted
// before the monitor re-fetches it. Headers are immutable once final, so
// this only needs to be long enough to collapse repeated lookups of the
// same recent block across a single tick's fan-out.
const blockHeaderCacheTTL = 30 * time.Second

// blockHeaderCache memoizes GetBlockByNumber lookups, generalizing the
// teacher's ethclient.BlockHashCache (a plain mutex-guarded map) to a
// bounded, self-evicting cache since here the key space (block number) is
// unbounded over the life of a long-running monitor. Unlike the two order
// caches, every header shares the same fixed TTL, so the single-TTL
// hashicorp/golang-lru/v2/expirable cache fits directly.
type blockHeaderCache struct {
	cache *expirable.LRU[uint64, *BlockHeader]
}

func newBlockHeaderCache(size int) *blockHeaderCache {
	return &blockHeaderCache{
		cache: expirable.NewLRU[uint64, *BlockHeader](size, nil, blockHeaderCacheTTL),
	}
}

func (c *blockHeaderCache) Get(number uint64) (*BlockHeader, bool) {
	return c.cache.Get(number)
}

func (c *blockHeaderCache) Add(header *BlockHeader) {
	c.cache.Add(header.Number, header)
}
