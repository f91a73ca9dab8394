package mbir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfileTableShape(t *testing.T) {
	geo := SinoGeometry{
		NChannels:    64,
		DeltaChannel: 1.0,
		CenterOffset: 0,
		NViews:       4,
		ViewAngles:   []float64{0, math.Pi / 8, math.Pi / 4, math.Pi / 3},
	}
	table := BuildProfileTable(geo, 1.0, 128)
	require.Len(t, table.Rows, geo.NViews)
	for _, row := range table.Rows {
		assert.Len(t, row, 128)
	}
}

func TestBuildProfileTableNonNegative(t *testing.T) {
	geo := SinoGeometry{
		NChannels:    32,
		DeltaChannel: 1.0,
		NViews:       8,
		ViewAngles: []float64{
			0, math.Pi / 16, math.Pi / 8, 3 * math.Pi / 16,
			math.Pi / 4, math.Pi / 2, math.Pi, 3 * math.Pi / 2,
		},
	}
	table := BuildProfileTable(geo, 1.0, 64)
	for _, row := range table.Rows {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestFoldAngleRange(t *testing.T) {
	for _, theta := range []float64{-3 * math.Pi, -0.1, 0, math.Pi, 10} {
		folded := foldAngle(theta)
		assert.GreaterOrEqual(t, folded, 0.0)
		assert.Less(t, folded, math.Pi/2)
	}
}

func TestBuildProfileTablePeaksAtMaxval(t *testing.T) {
	ang := math.Pi / 8
	geo := SinoGeometry{
		NChannels:    16,
		DeltaChannel: 1.0,
		NViews:       1,
		ViewAngles:   []float64{ang},
	}
	deltaxy := 1.0
	table := BuildProfileTable(geo, deltaxy, 256)
	row := table.Rows[0]

	expectedMax := deltaxy / math.Cos(ang)

	var maxVal float64
	for _, v := range row {
		if v > maxVal {
			maxVal = v
		}
	}
	assert.InDelta(t, expectedMax, maxVal, 1e-2, "flat-top of the trapezoid equals deltaxy/cos(angle)")

	assert.Equal(t, 0.0, row[0], "profile must vanish at the table's leading edge")
	assert.Equal(t, 0.0, row[len(row)-1], "profile must vanish at the table's trailing edge")
}
