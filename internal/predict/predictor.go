// Package predict enumerates predicted reflections in a resolution shell
// and assigns them shapes from the shape library (spec §4.H).
package predict

import (
	"fmt"
	"math"

	"github.com/hklreduce/hklreduce/internal/geom"
	"github.com/hklreduce/hklreduce/internal/peak"
	"github.com/hklreduce/hklreduce/internal/xdata"
	"github.com/hklreduce/hklreduce/internal/xerr"
	"github.com/hklreduce/hklreduce/internal/xtal"
)

// Params bundles the predictor's tunable inputs (spec §4.H).
type Params struct {
	DMin, DMax     float64
	Radius         float64
	NFrames        float64
	MinNeighbours  int
	Interpolation  xtal.Interpolation
}

// Predict enumerates every (h,k,l) with resolution 1/|hkl.B| in
// [DMin, DMax] up to maxIndex in each direction, finds its Ewald
// crossings, and for each crossing assigns a shape from the library
// (falling back to the library default below MinNeighbours hits),
// producing a predicted, cell-linked peak per crossing.
func Predict(cell *xtal.UnitCell, lib *xtal.ShapeLibrary, data *xdata.DataSet, maxIndex int, p Params) ([]*peak.Peak, error) {
	if p.DMin <= 0 || p.DMax <= p.DMin {
		return nil, fmt.Errorf("%w: invalid resolution shell", xerr.InvalidInput)
	}
	var out []*peak.Peak
	for h := -maxIndex; h <= maxIndex; h++ {
		for k := -maxIndex; k <= maxIndex; k++ {
			for l := -maxIndex; l <= maxIndex; l++ {
				if h == 0 && k == 0 && l == 0 {
					continue
				}
				hkl := geom.Vec3{float64(h), float64(k), float64(l)}
				q := cell.HKLToQ(hkl)
				d := 1 / q.Norm()
				if d < p.DMin || d > p.DMax {
					continue
				}
				roots, err := data.EventsFor(q)
				if err != nil {
					continue
				}
				for _, f := range roots {
					pk, err := predictOne(cell, lib, data, hkl, q, f, p)
					if err != nil {
						continue
					}
					out = append(out, pk)
				}
			}
		}
	}
	return out, nil
}

func predictOne(cell *xtal.UnitCell, lib *xtal.ShapeLibrary, data *xdata.DataSet, hkl, q geom.Vec3, f float64, p Params) (*peak.Peak, error) {
	st, err := data.States.At(f)
	if err != nil {
		return nil, err
	}
	kf := q.Add(st.Ki())
	px, py, err := data.Detector.PixelFromDirection(kf)
	if err != nil {
		return nil, err
	}

	hklInt := [3]int{int(math.Round(hkl[0])), int(math.Round(hkl[1])), int(math.Round(hkl[2]))}
	metric := lib.Default
	// The shape library indexes entries by Miller index only (no stored
	// frame), so the nFrames half of spec §4.H's neighbour window can't
	// be applied here; radius-in-HKL-space is the full filter.
	neighbours := lib.Neighbours(hklInt, p.Radius)
	if len(neighbours) >= p.MinNeighbours && p.MinNeighbours > 0 {
		metric = xtal.Combine(neighbours, p.Interpolation)
	}
	if metric == nil {
		return nil, fmt.Errorf("%w: no shape metric available for hkl %v", xerr.InvalidInput, hklInt)
	}

	var arr [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			arr[i*3+j] = metric.At(i, j)
		}
	}
	centre := geom.Vec3{px, py, f}
	shape, err := geom.NewEllipsoid(centre, arr)
	if err != nil {
		return nil, err
	}

	pk := peak.NewPeak(shape, f, px, py)
	pk.Cell = cell
	pk.HKL = hkl
	pk.Indexed = true
	return pk, nil
}
