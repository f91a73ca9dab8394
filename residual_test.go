package mbir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResidualInitMatchesDirectComputation(t *testing.T) {
	sino, image := testGeometry(16, 4, 4, 4, 2)
	table := BuildProfileTable(sino, image.Deltaxy, DefaultLenPix)
	bc := NewBuilderContext(sino, image, table, NarrowBeam, DefaultLenDet)
	matrix, err := BuildSystemMatrix(bc, 1)
	require.NoError(t, err)

	nMeasurements := sino.NViews * sino.NChannels
	vol := NewVolume(image.Nx, image.Ny, image.Nz, 1.0)

	y := make([][]float64, image.Nz)
	for z := range y {
		y[z] = make([]float64, nMeasurements)
		for k := range y[z] {
			y[z][k] = float64(k) * 0.1
		}
	}

	res := NewResidual(image.Nz, nMeasurements)
	res.Init(matrix, y, vol)

	for z := 0; z < image.Nz; z++ {
		expected := make([]float64, nMeasurements)
		copy(expected, y[z])
		for j := 0; j < matrix.Ncolumns; j++ {
			col := &matrix.Columns[j]
			for n, rowIdx := range col.RowIndex {
				expected[rowIdx] -= float64(col.Value[n]) * vol.Values[z][j]
			}
		}
		assert.Equal(t, expected, res.Values[z])
	}
}

func TestSubtractScaledColumnInvariant(t *testing.T) {
	res := NewResidual(1, 8)
	for k := range res.Values[0] {
		res.Values[0][k] = 10
	}
	col := &SparseColumn{RowIndex: []int32{1, 3, 5}, Value: []float32{2, 3, 4}}

	res.SubtractScaledColumn(0, col, 1.5)

	assert.Equal(t, 10.0, res.At(0, 0))
	assert.Equal(t, 10.0-2*1.5, res.At(0, 1))
	assert.Equal(t, 10.0-3*1.5, res.At(0, 3))
	assert.Equal(t, 10.0-4*1.5, res.At(0, 5))
}

func TestSubtractScaledColumnNoopOnZeroDiff(t *testing.T) {
	res := NewResidual(1, 4)
	res.Values[0][2] = 7
	col := &SparseColumn{RowIndex: []int32{2}, Value: []float32{3}}

	res.SubtractScaledColumn(0, col, 0)

	assert.Equal(t, 7.0, res.At(0, 2))
}
