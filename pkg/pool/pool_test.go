package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsObjects(t *testing.T) {
	p := New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)

	buf := p.Get()
	buf.WriteString("data")
	p.Put(buf)

	again := p.Get()
	defer p.Put(again)
	assert.Equal(t, 0, again.Len())
}

func TestPoolLimitDropsObjects(t *testing.T) {
	p := New(func() []byte { return make([]byte, 0, 8) }, nil).
		WithLimit(func(b []byte) bool { return cap(b) <= 16 })

	p.Put(make([]byte, 0, 32))
	p.Put(make([]byte, 0, 8))

	_, inUse, _, dropped := p.Stats()
	assert.Equal(t, int64(-2), inUse)
	assert.Equal(t, int64(1), dropped)
}

func TestPoolConcurrentUse(t *testing.T) {
	p := New(func() *int { return new(int) }, func(n *int) { *n = 0 })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n := p.Get()
				*n++
				p.Put(n)
			}
		}()
	}
	wg.Wait()

	allocated, inUse, gets, _ := p.Stats()
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, int64(800), gets)
	assert.GreaterOrEqual(t, allocated, int64(1))
}
