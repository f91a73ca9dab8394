package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/sixy6e/go-mbir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadVolumeRoundTrip(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "volume.tdb")
	vol := &mbir.Volume{
		Nx: 2, Ny: 2, Nz: 2,
		Values: [][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
		},
	}

	require.NoError(t, WriteVolume(uri, "", vol, 3, 1.25))

	got, err := ReadVolume(uri, "", vol.Nx, vol.Ny, vol.Nz)
	require.NoError(t, err)
	assert.Equal(t, vol.Values, got.Values)
}

func TestWriteReadResidualRoundTrip(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "residual.tdb")
	res := &mbir.Residual{
		NMeasurements: 3,
		Values: [][]float64{
			{0.1, 0.2, 0.3},
			{-0.1, 0, 0.5},
		},
	}

	require.NoError(t, WriteResidual(uri, "", res, 2))

	got, err := ReadResidual(uri, "", 2, res.NMeasurements)
	require.NoError(t, err)
	assert.Equal(t, res.Values, got.Values)
}
