//go:build !dfio_minimal

package formats

const (
	defaultNDJSON = true
	defaultCloud  = true
)
