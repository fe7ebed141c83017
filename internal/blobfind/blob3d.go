package blobfind

// Blob3D incrementally accumulates a labelled region's zeroth, first and
// second moments (mass, first moment, second moment) so that both the
// per-frame labelling pass and the cross-label union-find merge are
// O(1) amortized per pixel rather than requiring a second full pass over
// every pixel at the end.
type Blob3D struct {
	M0 float64     // mass: sum of (weight) over member pixels
	M1 [3]float64  // first moment: sum of weight*position
	M2 [3][3]float64 // second moment: sum of weight*position*position^T
}

// AddPoint folds one (x,y,z) sample of the given weight into the blob.
func (b *Blob3D) AddPoint(x, y, z, weight float64) {
	b.M0 += weight
	b.M1[0] += weight * x
	b.M1[1] += weight * y
	b.M1[2] += weight * z
	p := [3]float64{x, y, z}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			b.M2[i][j] += weight * p[i] * p[j]
		}
	}
}

// Merge folds another blob's moments into b (the moments of a union are
// simply the sum of the moments of its parts), supporting the
// cross-frame union-find described in §4.D/§5.
func (b *Blob3D) Merge(o *Blob3D) {
	b.M0 += o.M0
	for i := 0; i < 3; i++ {
		b.M1[i] += o.M1[i]
		for j := 0; j < 3; j++ {
			b.M2[i][j] += o.M2[i][j]
		}
	}
}

// Centre returns M1/M0.
func (b *Blob3D) Centre() [3]float64 {
	if b.M0 == 0 {
		return [3]float64{}
	}
	return [3]float64{b.M1[0] / b.M0, b.M1[1] / b.M0, b.M1[2] / b.M0}
}

// InertiaTensor returns M2/M0 - centre*centre^T.
func (b *Blob3D) InertiaTensor() [3][3]float64 {
	c := b.Centre()
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = b.M2[i][j]/b.M0 - c[i]*c[j]
		}
	}
	return out
}
