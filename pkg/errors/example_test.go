// Package errors provides examples of structured error handling in dfio.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// Example demonstrates basic error creation with an offending value.
func Example() {
	err := errors.New(errors.ErrorTypeUnsupportedOption, "unrecognised datatype").
		WithValue("frobnicate")

	fmt.Println(err.Error())

	// Output:
	// unsupported_option: unrecognised datatype "frobnicate"
}

// ExampleWrap shows how to wrap an underlying error with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeDecode, "failed to read ipc stream").
		WithDetail("format", "ipc_stream")

	if errors.IsType(err, errors.ErrorTypeDecode) {
		fmt.Println("This is a decode error")
	}

	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a decode error
	// Original error was unexpected EOF
}

// Example_errorChain shows how an object store failure surfaces through a write.
func Example_errorChain() {
	err := uploadPart()
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeIO, "failed to write parquet").
			WithDetail("destination", "s3")

		fmt.Println("Full error chain:", err)
	}

	// Output:
	// Full error chain: io: failed to write parquet: object_store: failed to upload part "bucket/key": access denied
}

func uploadPart() error {
	return errors.Wrap(stderrors.New("access denied"), errors.ErrorTypeObjectStore, "failed to upload part").
		WithValue("bucket/key").
		WithDetail("part", 3)
}

// ExamplePassthrough demonstrates that typed errors keep their kind.
func ExamplePassthrough() {
	typed := errors.New(errors.ErrorTypeCapability, "ndjson support is not built in")
	plain := io.EOF

	fmt.Println(errors.TypeOf(errors.Passthrough(typed, errors.ErrorTypeIO, "read failed")))
	fmt.Println(errors.TypeOf(errors.Passthrough(plain, errors.ErrorTypeIO, "read failed")))

	// Output:
	// capability
	// io
}

// ExampleIsType demonstrates checking error types.
func ExampleIsType() {
	storeErr := errors.New(errors.ErrorTypeObjectStore, "upload failed")
	wrappedErr := errors.Wrap(storeErr, errors.ErrorTypeIO, "write failed")

	fmt.Printf("Is object store error: %v\n", errors.IsType(storeErr, errors.ErrorTypeObjectStore))
	fmt.Printf("Wrapped error is io type: %v\n", errors.IsType(wrappedErr, errors.ErrorTypeIO))
	fmt.Printf("Wrapped error contains object store type: %v\n", errors.IsType(wrappedErr, errors.ErrorTypeObjectStore))

	// Output:
	// Is object store error: true
	// Wrapped error is io type: true
	// Wrapped error contains object store type: false
}
