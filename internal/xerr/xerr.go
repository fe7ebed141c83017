// Package xerr defines the closed set of error kinds shared across the
// reduction pipeline. Components wrap one of these sentinels with
// fmt.Errorf("...: %w", kind, ...) at the point of failure; callers
// classify failures with errors.Is rather than type assertions.
package xerr

import "errors"

var (
	// InvalidInput marks malformed input: a bad file, an out-of-range
	// parameter, or an empty required collection.
	InvalidInput = errors.New("invalid input")

	// NotIndexed marks an operation that requires a unit-cell linkage
	// that is absent.
	NotIndexed = errors.New("not indexed")

	// NotConverged marks a nonlinear solver that reached its iteration
	// limit without satisfying its tolerances.
	NotConverged = errors.New("not converged")

	// NumericalFailure marks a non-positive-definite metric, a
	// near-singular Jacobian, or a zero-mass blob.
	NumericalFailure = errors.New("numerical failure")

	// OutOfRange marks a frame index outside the numor or a pixel
	// outside the detector.
	OutOfRange = errors.New("out of range")

	// Masked marks an integration region that overlaps a forbidden
	// detector region.
	Masked = errors.New("masked")

	// IO marks a reader or writer failure; the wrapped system error is
	// attached via %w in the usual fmt.Errorf chain.
	IO = errors.New("io error")
)

// ExitCode maps an error, classified by the sentinel it wraps, to the
// driver's exit code (0 success; 1 invalid input; 2 convergence failure;
// 3 I/O error). Unrecognized errors map to 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, NotConverged):
		return 2
	case errors.Is(err, IO):
		return 3
	default:
		return 1
	}
}
