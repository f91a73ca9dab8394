package mbir

// Volume is the current estimate of the reconstructed attenuation map.
// Values[z][j] is voxel (j mod Nx, j/Nx, z).
type Volume struct {
	Nx, Ny, Nz int
	Values     [][]float64 // [Nz][Nx*Ny]
}

// NewVolume allocates a volume with every voxel set to initVal.
func NewVolume(nx, ny, nz int, initVal float64) *Volume {
	vol := &Volume{Nx: nx, Ny: ny, Nz: nz, Values: make([][]float64, nz)}
	for z := 0; z < nz; z++ {
		row := make([]float64, nx*ny)
		for j := range row {
			row[j] = initVal
		}
		vol.Values[z] = row
	}
	return vol
}
