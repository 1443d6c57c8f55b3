package oracle

import (
	"context"
	"sync"

	"github.com/samcharles93/tilesched/internal/gemm"
)

// Cached memoizes successful proposals of another oracle by request.
type Cached struct {
	next gemm.Oracle

	mu    sync.RWMutex
	cache map[gemm.OracleRequest]string
}

func NewCached(next gemm.Oracle) *Cached {
	return &Cached{
		next:  next,
		cache: make(map[gemm.OracleRequest]string),
	}
}

func (c *Cached) ProposeTiling(ctx context.Context, req gemm.OracleRequest) (string, error) {
	c.mu.RLock()
	if s, ok := c.cache[req]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	s, err := c.next.ProposeTiling(ctx, req)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[req] = s
	c.mu.Unlock()
	return s, nil
}

// Len reports how many proposals are cached.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
