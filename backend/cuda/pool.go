package cuda

// Pool caches freed GPU memory buffers by size for reuse.
// Avoids expensive cuMemAlloc/cuMemFree when operators are invoked
// repeatedly with stable shapes.
//
// Design:
//   - Buckets keyed by 256-byte-aligned size
//   - Get() returns cached buffer or allocates new
//   - Put() returns buffer to pool (no cuMemFree)
//   - FreeAll() releases everything at shutdown
//   - Thread-safe via mutex

import (
	"sync"

	"github.com/djeday123/godnn/backend"
)

type Pool struct {
	mu      sync.Mutex
	device  backend.Device
	buckets map[int][]*Storage // aligned size -> available buffers
	stats   PoolStats
}

type PoolStats struct {
	Hits       int64 // reused from pool
	Misses     int64 // new allocation
	AllocBytes int64 // total allocated
	PoolSize   int   // current buffers in pool
}

func NewPool(dev backend.Device) *Pool {
	return &Pool{
		device:  dev,
		buckets: make(map[int][]*Storage),
	}
}

// alignSize rounds up to 256-byte boundary.
// Prevents fragmentation from many similar-but-not-identical sizes.
func alignSize(byteLen int) int {
	return ((byteLen + 255) / 256) * 256
}

// Get returns a buffer of at least byteLen bytes.
// Tries to reuse a cached buffer first (O(1) lookup by aligned size).
func (p *Pool) Get(byteLen int) (*Storage, error) {
	size := alignSize(byteLen)

	p.mu.Lock()
	if bucket := p.buckets[size]; len(bucket) > 0 {
		s := bucket[len(bucket)-1]
		p.buckets[size] = bucket[:len(bucket)-1]
		p.stats.Hits++
		p.stats.PoolSize--
		p.mu.Unlock()
		return s, nil
	}
	p.stats.Misses++
	p.stats.AllocBytes += int64(size)
	p.mu.Unlock()

	return Alloc(size, p.device)
}

// Put returns a buffer to the pool for later reuse.
func (p *Pool) Put(s *Storage) {
	if s == nil || s.ptr == 0 {
		return
	}
	size := alignSize(s.byteLen)

	p.mu.Lock()
	p.buckets[size] = append(p.buckets[size], s)
	p.stats.PoolSize++
	p.mu.Unlock()
}

// FreeAll releases every cached buffer back to the driver.
func (p *Pool) FreeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for size, bucket := range p.buckets {
		for _, s := range bucket {
			s.Free()
		}
		delete(p.buckets, size)
	}
	p.stats.PoolSize = 0
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
