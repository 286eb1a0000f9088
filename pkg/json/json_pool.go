// Package json provides the goccy/go-json helpers behind NDJSON: an object
// writer that keeps keys in column order, a pool of those writers, and a
// scanner that reads a flat object's members in document order.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/dfio/pkg/pool"
)

// maxPooledBuffer is the largest writer buffer returned to the pool.
const maxPooledBuffer = 1024 * 1024

var writerPool = pool.New(
	func() *ObjectWriter { return &ObjectWriter{buf: make([]byte, 0, 4096)} },
	func(w *ObjectWriter) { w.Begin() },
).WithLimit(func(w *ObjectWriter) bool { return cap(w.buf) <= maxPooledBuffer })

// GetDecoder returns a decoder over r that yields numbers as json.Number.
func GetDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// GetObjectWriter gets a pooled ObjectWriter.
func GetObjectWriter() *ObjectWriter {
	return writerPool.Get()
}

// PutObjectWriter returns w to the pool. Writers whose buffer grew past
// 1 MiB are dropped.
func PutObjectWriter(w *ObjectWriter) {
	writerPool.Put(w)
}
