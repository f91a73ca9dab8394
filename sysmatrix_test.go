package mbir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func testGeometry(nChannels, nViews, nx, ny, nz int) (SinoGeometry, ImageGeometry) {
	angles := make([]float64, nViews)
	for i := range angles {
		angles[i] = math.Pi * float64(i) / float64(nViews)
	}
	sino := SinoGeometry{
		NChannels:    nChannels,
		DeltaChannel: 1.0,
		CenterOffset: 0,
		NViews:       nViews,
		ViewAngles:   angles,
	}
	image := ImageGeometry{Nx: nx, Ny: ny, Nz: nz, Deltaxy: 1.0, ROIRadius: float64(nx)}
	return sino, image
}

func TestBuildSystemMatrixColumnsNonEmpty(t *testing.T) {
	sino, image := testGeometry(32, 8, 6, 6, 1)
	table := BuildProfileTable(sino, image.Deltaxy, DefaultLenPix)
	bc := NewBuilderContext(sino, image, table, NarrowBeam, DefaultLenDet)

	matrix, err := BuildSystemMatrix(bc, 1)
	require.NoError(t, err)
	require.Equal(t, image.Nx*image.Ny, matrix.Ncolumns)

	for i, col := range matrix.Columns {
		require.Greater(t, col.Nnonzero(), 0, "pixel %d inside the detector footprint must have at least one nonzero entry", i)
		for _, v := range col.Value {
			require.Greater(t, v, float32(0))
		}
		for n := 1; n < len(col.RowIndex); n++ {
			require.Less(t, col.RowIndex[n-1], col.RowIndex[n], "row indices must be strictly ascending within a column")
		}
	}
}

func TestBuildSystemMatrixSequentialMatchesParallel(t *testing.T) {
	sino, image := testGeometry(24, 6, 5, 5, 1)
	table := BuildProfileTable(sino, image.Deltaxy, DefaultLenPix)
	bc := NewBuilderContext(sino, image, table, NarrowBeam, DefaultLenDet)

	seq, err := BuildSystemMatrix(bc, 1)
	require.NoError(t, err)

	par, err := BuildSystemMatrix(bc, 4)
	require.NoError(t, err)

	require.Equal(t, seq.Ncolumns, par.Ncolumns)
	for c := 0; c < seq.Ncolumns; c++ {
		require.Equal(t, seq.Columns[c].RowIndex, par.Columns[c].RowIndex, "column %d", c)
		require.Equal(t, seq.Columns[c].Value, par.Columns[c].Value, "column %d", c)
	}
}

func TestNarrowAndWideBeamValueSumsAgree(t *testing.T) {
	// spec.md §8 scenario S6: narrow-beam and wide-beam system matrices
	// built from the same geometry must agree in total forward-projection
	// mass (sum of every column's values) to within 2%.
	sino, image := testGeometry(32, 8, 6, 6, 1)
	table := BuildProfileTable(sino, image.Deltaxy, DefaultLenPix)

	narrowBC := NewBuilderContext(sino, image, table, NarrowBeam, DefaultLenDet)
	wideBC := NewBuilderContext(sino, image, table, WideBeam, DefaultLenDet)

	narrow, err := BuildSystemMatrix(narrowBC, 1)
	require.NoError(t, err)
	wide, err := BuildSystemMatrix(wideBC, 1)
	require.NoError(t, err)

	var narrowSum, wideSum float64
	for _, col := range narrow.Columns {
		for _, v := range col.Value {
			narrowSum += float64(v)
		}
	}
	for _, col := range wide.Columns {
		for _, v := range col.Value {
			wideSum += float64(v)
		}
	}

	require.Greater(t, narrowSum, 0.0)
	relDiff := math.Abs(narrowSum-wideSum) / narrowSum
	require.LessOrEqual(t, relDiff, 0.02, "narrow-beam sum %.6g vs wide-beam sum %.6g", narrowSum, wideSum)
}

func TestBuildColumnNarrowBeamProfileIndexRangeError(t *testing.T) {
	// Two channels 10 pixel widths apart sit at t = -5 and t = +5, while every
	// pixel's footprint lies within [-2, 2]. Channel 0 still falls inside
	// [indMin, indMax], and its profile index (-10, -8 or -6 with LenPix=4)
	// is outside [-1, LenPix], surfacing GeometryInconsistency rather than
	// a process abort (spec.md §7).
	sino, image := testGeometry(2, 1, 3, 3, 1)
	sino.DeltaChannel = 10
	table := BuildProfileTable(sino, image.Deltaxy, 4)
	bc := NewBuilderContext(sino, image, table, NarrowBeam, DefaultLenDet)

	// Build every column; none should panic, and each must fail with the
	// sentinel error.
	for c := 0; c < image.Nx*image.Ny; c++ {
		_, err := bc.BuildColumn(c)
		require.ErrorIs(t, err, ErrGeometryInconsistency, "column %d", c)
	}
}
