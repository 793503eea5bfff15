// Package errors provides examples of structured error handling in the backup pipeline.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeTransfer, "failed to create dated folder").
		WithDetail("parent", "root-folder").
		WithDetail("name", "2024-05-01")

	fmt.Println(err.Error())

	// Output:
	// transfer: failed to create dated folder
}

// ExampleWrap shows how to wrap a local I/O failure.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortWrite, errors.ErrorTypeFile, "failed to write tsv row").
		WithDetail("file", "tabela1.tsv")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("serialization failure")
	}
	if errors.Is(err, io.ErrShortWrite) {
		fmt.Println("caused by short write")
	}

	// Output:
	// serialization failure
	// caused by short write
}

// ExampleTypeOf demonstrates classifying arbitrary errors.
func ExampleTypeOf() {
	fmt.Println(errors.TypeOf(errors.New(errors.ErrorTypeConnection, "dial tcp: refused")))
	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// connection
	// internal
}
