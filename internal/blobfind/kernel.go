// Package blobfind implements the 3-D connected-component blob finder
// (spec §4.D): an FFT convolution pre-filter, thresholding, cross-frame
// union-find labelling with incremental moments, and ellipsoid
// construction from each label's inertia tensor.
package blobfind

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

// Shape names a pre-registered convolution kernel, matched by string so
// new shapes are a closed registry extension rather than a dynamic
// dispatch hierarchy (spec §9 "dynamic dispatch" design note).
type Shape string

const (
	Annular Shape = "annular"
	Box     Shape = "box"
	Radial  Shape = "radial"
)

// Kernel is a precomputed 2-D real-space convolution kernel, cached per
// frame size since the FFT transform size depends on it.
type Kernel struct {
	Shape      Shape
	Rows, Cols int
	Values     []float64 // row-major, Rows*Cols
}

// NewKernel builds the named kernel shape at the given radii (in pixels).
// innerRadius is ignored for Box and Radial.
func NewKernel(shape Shape, rows, cols int, innerRadius, outerRadius float64) (*Kernel, error) {
	k := &Kernel{Shape: shape, Rows: rows, Cols: cols, Values: make([]float64, rows*cols)}
	cy, cx := float64(rows)/2, float64(cols)/2
	var sum float64
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dy, dx := float64(r)-cy, float64(c)-cx
			dist := math.Hypot(dy, dx)
			var v float64
			switch shape {
			case Box:
				if dist <= outerRadius {
					v = 1
				}
			case Annular:
				if dist >= innerRadius && dist <= outerRadius {
					v = 1
				}
			case Radial:
				if dist <= outerRadius {
					v = outerRadius - dist
				}
			default:
				return nil, fmt.Errorf("%w: unknown kernel shape %q", xerr.InvalidInput, shape)
			}
			k.Values[r*cols+c] = v
			sum += v
		}
	}
	if sum > 0 {
		for i := range k.Values {
			k.Values[i] /= sum
		}
	}
	return k, nil
}

// kernelCache memoizes kernels by (shape, rows, cols, innerRadius,
// outerRadius) so repeated calls across frames of the same numor reuse
// one real-space kernel; its FFT is recomputed by each Convolve2D call.
type kernelCacheKey struct {
	shape                    Shape
	rows, cols               int
	innerRadius, outerRadius float64
}

var (
	kernelCacheMu sync.Mutex
	kernelCache   = map[kernelCacheKey]*Kernel{}
)

func cachedKernel(shape Shape, rows, cols int, innerRadius, outerRadius float64) (*Kernel, error) {
	key := kernelCacheKey{shape, rows, cols, innerRadius, outerRadius}
	kernelCacheMu.Lock()
	defer kernelCacheMu.Unlock()
	if k, ok := kernelCache[key]; ok {
		return k, nil
	}
	k, err := NewKernel(shape, rows, cols, innerRadius, outerRadius)
	if err != nil {
		return nil, err
	}
	kernelCache[key] = k
	return k, nil
}

// Convolve2D performs linear 2-D convolution of frame (rows x cols) with
// kernel via a zero-padded FFT: forward 2-D FFT of both operands
// (row-wise CmplxFFT then column-wise CmplxFFT, the standard separable
// decomposition of a 2-D DFT), elementwise multiply, inverse 2-D FFT, and
// crop back to the frame's original size (same-size convolution, kernel
// centred).
func Convolve2D(frame []float64, rows, cols int, k *Kernel) []float64 {
	padRows := rows + k.Rows - 1
	padCols := cols + k.Cols - 1

	a := make([][]complex128, padRows)
	b := make([][]complex128, padRows)
	for r := 0; r < padRows; r++ {
		a[r] = make([]complex128, padCols)
		b[r] = make([]complex128, padCols)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			a[r][c] = complex(frame[r*cols+c], 0)
		}
	}
	for r := 0; r < k.Rows; r++ {
		for c := 0; c < k.Cols; c++ {
			b[r][c] = complex(k.Values[r*k.Cols+c], 0)
		}
	}

	fft2D(a, padRows, padCols, false)
	fft2D(b, padRows, padCols, false)
	for r := 0; r < padRows; r++ {
		for c := 0; c < padCols; c++ {
			a[r][c] *= b[r][c]
		}
	}
	fft2D(a, padRows, padCols, true)

	rowOff := k.Rows / 2
	colOff := k.Cols / 2
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = real(a[r+rowOff][c+colOff])
		}
	}
	return out
}

// fft2D applies a 2-D (inverse, if inverse) FFT to grid in place via the
// row-then-column decomposition of the 2-D DFT.
func fft2D(grid [][]complex128, rows, cols int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(cols)
	for r := 0; r < rows; r++ {
		if inverse {
			grid[r] = rowFFT.Sequence(grid[r], grid[r])
		} else {
			grid[r] = rowFFT.Coefficients(grid[r], grid[r])
		}
	}
	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			col[r] = grid[r][c]
		}
		if inverse {
			col = colFFT.Sequence(col, col)
		} else {
			col = colFFT.Coefficients(col, col)
		}
		for r := 0; r < rows; r++ {
			grid[r][c] = col[r]
		}
	}
}
