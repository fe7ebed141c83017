package refine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hklreduce/hklreduce/internal/xtal"
)

func testCell(t *testing.T) *xtal.UnitCell {
	cell, err := xtal.NewUnitCell([9]float64{10, 0, 0, 0, 10, 0, 0, 0, 10}, 0.1)
	require.NoError(t, err)
	return cell
}

func TestRefineRejectsNoActiveParams(t *testing.T) {
	b := &Batch{Cell: testCell(t), Active: map[ParamKind]bool{}}
	_, err := Refine(b, Options{MaxIter: 10})
	require.Error(t, err)
}

func TestRefineRejectsEmptyPeaks(t *testing.T) {
	b := &Batch{Cell: testCell(t), Active: map[ParamKind]bool{ParamBasis: true}}
	_, err := Refine(b, Options{MaxIter: 10})
	require.Error(t, err)
}

func TestPartitionBatchesCount(t *testing.T) {
	batches, err := PartitionBatches(testCell(t), nil, nil, 100, 4, map[ParamKind]bool{ParamBasis: true})
	require.NoError(t, err)
	require.Len(t, batches, 4)
	require.InDelta(t, 0, batches[0].FrameLo, 1e-9)
	require.InDelta(t, 100, batches[3].FrameHi, 1e-9)
}
