//go:build dfio_minimal

package formats

// Minimal builds leave out NDJSON and cloud writes. The entry points remain
// and report a capability error.
const (
	defaultNDJSON = false
	defaultCloud  = false
)
