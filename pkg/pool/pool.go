// Package pool provides type-safe object pooling on top of sync.Pool.
//
// Example usage:
//
//	buffers := pool.New(
//	    func() *bytes.Buffer { return new(bytes.Buffer) },
//	    func(b *bytes.Buffer) { b.Reset() },
//	)
//	buf := buffers.Get()
//	defer buffers.Put(buf)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool with hit/miss statistics. It is safe for
// concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
		dropped   int64
	}
}

// New creates a pool. new builds an object when the pool is empty; reset,
// when not nil, clears an object before it is pooled again.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// WithLimit makes Put drop objects for which keep returns false, such as
// buffers that grew too large to be worth retaining.
func (p *Pool[T]) WithLimit(keep func(T) bool) *Pool[T] {
	p.keep = keep
	return p
}

// Get retrieves an object from the pool, creating one if needed.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		atomic.AddInt64(&p.stats.dropped, 1)
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns the number of objects created, currently checked out,
// handed out in total, and dropped by the limit.
func (p *Pool[T]) Stats() (allocated, inUse, gets, dropped int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets),
		atomic.LoadInt64(&p.stats.dropped)
}
