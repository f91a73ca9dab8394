package binaryio

import (
	"path/filepath"
	"testing"

	"github.com/sixy6e/go-mbir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceFileNameFormat(t *testing.T) {
	assert.Equal(t, "phantom_slice0007.2Dsinodata", SliceFileName("phantom", 7, ".2Dsinodata"))
	assert.Equal(t, "phantom_slice0000.wght", SliceFileName("phantom", 0, ".wght"))
}

func TestFloats64LERoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "angles.bin")
	values := []float64{0, 0.1, 1.5, -3.25, 1e10}

	require.NoError(t, WriteFloats64LE(path, values))
	got, err := ReadFloats64LE(path, len(values))
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestSinogramSliceRoundTrip(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "phantom")
	values := []float64{1, 2, 3, 4, 5, 6}

	require.NoError(t, WriteSinogramSlice(basename, 2, values))
	got, err := ReadSinogramSlice(basename, 2, len(values))
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestImageRoundTripAcrossSlices(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "phantom")
	vol := &mbir.Volume{
		Nx: 2, Ny: 2, Nz: 3,
		Values: [][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
			{9, 10, 11, 12},
		},
	}

	require.NoError(t, WriteImage(basename, vol))
	got, err := ReadImage(basename, vol.Nx, vol.Ny, vol.Nz)
	require.NoError(t, err)
	assert.Equal(t, vol.Values, got.Values)
}

func TestReadSinogramAndWeightsAllSlices(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "phantom")
	nz, nMeasurements := 3, 4

	for z := 0; z < nz; z++ {
		sino := make([]float64, nMeasurements)
		wght := make([]float64, nMeasurements)
		for k := range sino {
			sino[k] = float64(z*10 + k)
			wght[k] = 1.0
		}
		require.NoError(t, WriteSinogramSlice(basename, z, sino))
		require.NoError(t, WriteWeightsSlice(basename, z, wght))
	}

	sino, err := ReadSinogram(basename, nz, nMeasurements)
	require.NoError(t, err)
	wght, err := ReadWeights(basename, nz, nMeasurements)
	require.NoError(t, err)

	for z := 0; z < nz; z++ {
		for k := 0; k < nMeasurements; k++ {
			assert.Equal(t, float64(z*10+k), sino[z][k])
			assert.Equal(t, 1.0, wght[z][k])
		}
	}
}

func TestSystemMatrixRoundTrip(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "phantom")
	matrix := &mbir.SystemMatrix{
		Ncolumns: 3,
		Columns: []mbir.SparseColumn{
			{RowIndex: []int32{0, 2, 5}, Value: []float32{1.5, 2.5, 3.5}},
			{RowIndex: []int32{}, Value: []float32{}},
			{RowIndex: []int32{1}, Value: []float32{9.25}},
		},
	}

	require.NoError(t, WriteSystemMatrix(basename, matrix))
	got, err := ReadSystemMatrix(basename)
	require.NoError(t, err)

	require.Equal(t, matrix.Ncolumns, got.Ncolumns)
	for c := 0; c < matrix.Ncolumns; c++ {
		assert.Equal(t, matrix.Columns[c].RowIndex, got.Columns[c].RowIndex, "column %d", c)
		assert.Equal(t, matrix.Columns[c].Value, got.Columns[c].Value, "column %d", c)
	}
}
