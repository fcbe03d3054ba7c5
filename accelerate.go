//go:build netlib

package main

// #cgo darwin LDFLAGS: -framework Accelerate
// #cgo linux LDFLAGS: -lopenblas
import "C"

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with -tags netlib routes every gonum matrix product through the
// system CBLAS (Accelerate on macOS, OpenBLAS elsewhere).
func init() {
	blas64.Use(netlib.Implementation{})
	blasBackend = "netlib"
}
