package mbir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRampVolume(nx, ny, nz int) *Volume {
	vol := NewVolume(nx, ny, nz, 0)
	for z := 0; z < nz; z++ {
		for j := 0; j < nx*ny; j++ {
			vol.Values[z][j] = float64(z*nx*ny + j)
		}
	}
	return vol
}

func TestExtractSlotOrderInterior(t *testing.T) {
	nx, ny, nz := 5, 5, 3
	vol := makeRampVolume(nx, ny, nz)
	ne := NeighborhoodExtractor{Nx: nx, Ny: ny, Nz: nz, Policy: WrapAround}

	// voxel at (z=1, y=2, x=2), well clear of every edge.
	z, y, x := 1, 2, 2
	idx := z*nx*ny + y*nx + x
	nb := ne.Extract(vol, idx)

	at := func(zz, yy, xx int) float64 { return vol.Values[zz][yy*nx+xx] }

	require.Equal(t, at(z, y, x+1), nb[0])
	require.Equal(t, at(z, y, x-1), nb[1])
	require.Equal(t, at(z, y+1, x), nb[2])
	require.Equal(t, at(z, y-1, x), nb[3])
	require.Equal(t, at(z+1, y, x), nb[4])
	require.Equal(t, at(z-1, y, x), nb[5])
	require.Equal(t, at(z, y+1, x+1), nb[6])
	require.Equal(t, at(z, y+1, x-1), nb[7])
	require.Equal(t, at(z, y-1, x+1), nb[8])
	require.Equal(t, at(z, y-1, x-1), nb[9])
}

func TestExtractWrapAroundEdge(t *testing.T) {
	nx, ny, nz := 4, 4, 2
	vol := makeRampVolume(nx, ny, nz)
	ne := NeighborhoodExtractor{Nx: nx, Ny: ny, Nz: nz, Policy: WrapAround}

	// corner voxel (z=0, y=0, x=0): every -1 neighbor wraps to the far edge.
	idx := 0
	nb := ne.Extract(vol, idx)

	assert.Equal(t, vol.Values[0][0*nx+1], nb[0])        // x+1
	assert.Equal(t, vol.Values[0][0*nx+(nx-1)], nb[1])   // x-1 wraps to nx-1
	assert.Equal(t, vol.Values[0][1*nx+0], nb[2])        // y+1
	assert.Equal(t, vol.Values[0][(ny-1)*nx+0], nb[3])   // y-1 wraps to ny-1
	assert.Equal(t, vol.Values[1][0*nx+0], nb[4])        // z+1
	assert.Equal(t, vol.Values[nz-1][0*nx+0], nb[5])     // z-1 wraps to nz-1
}

func TestExtractZeroPolicyEdge(t *testing.T) {
	nx, ny, nz := 4, 4, 2
	vol := makeRampVolume(nx, ny, nz)
	ne := NeighborhoodExtractor{Nx: nx, Ny: ny, Nz: nz, Policy: Zero}

	nb := ne.Extract(vol, 0)
	assert.Equal(t, 0.0, nb[1], "x-1 out of range under Zero policy must read 0")
	assert.Equal(t, 0.0, nb[3], "y-1 out of range under Zero policy must read 0")
	assert.Equal(t, 0.0, nb[5], "z-1 out of range under Zero policy must read 0")
}

func TestExtractReflectPolicyEdge(t *testing.T) {
	nx, ny, nz := 4, 4, 2
	vol := makeRampVolume(nx, ny, nz)
	ne := NeighborhoodExtractor{Nx: nx, Ny: ny, Nz: nz, Policy: Reflect}

	nb := ne.Extract(vol, 0)
	assert.Equal(t, vol.Values[0][0], nb[1], "x-1 reflects back onto x=0")
	assert.Equal(t, vol.Values[0][0], nb[3], "y-1 reflects back onto y=0")
	assert.Equal(t, vol.Values[0][0], nb[5], "z-1 reflects back onto z=0")
}
