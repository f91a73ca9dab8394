// Package binaryio implements the little-endian binary file formats of
// spec.md §6: per-slice sinogram/weight/image data and the sparse
// system-matrix file. The Stream/DataFile abstraction (stream.go) is
// grounded on the teacher's reader.go/file.go (Stream interface,
// GenericStream, OpenGSF/Close) — there used for big-endian GSF record
// streams over a tiledb.VFS handle, here for plain little-endian float
// slices over a local or TileDB VFS-backed file, so the same data files
// can be read from disk or an object store without branching at call
// sites.
package binaryio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/sixy6e/go-mbir"
)

// SliceFileName formats the per-slice data file name convention of
// spec.md §6: "<basename>_slice<NNNN><ext>", zero-padded to 4 digits.
func SliceFileName(basename string, z int, ext string) string {
	return fmt.Sprintf("%s_slice%04d%s", basename, z, ext)
}

// ReadFloats64LE reads n little-endian float64 values from path via a
// tiledb.VFS-backed DataFile, so local paths and object-store URIs are
// both supported without a separate code path.
func ReadFloats64LE(path string, n int) ([]float64, error) {
	f, err := OpenDataFile(path, "")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.ReadAll()
	if err != nil {
		return nil, err
	}

	values := make([]float64, n)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &values); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", mbir.ErrIO, path, err)
	}
	return values, nil
}

// WriteFloats64LE writes values as little-endian float64 to path via
// tiledb.VFS, the write-side counterpart of ReadFloats64LE.
func WriteFloats64LE(path string, values []float64) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		return fmt.Errorf("%w: encoding %s: %v", mbir.ErrIO, path, err)
	}
	return writeVFS(path, buf.Bytes())
}

// writeVFS writes data to uri through a fresh tiledb.VFS handle, the
// write-side counterpart of OpenDataFile (which only opens for reading).
func writeVFS(uri string, data []byte) error {
	config, err := tiledb.NewConfig()
	if err != nil {
		return fmt.Errorf("%w: tiledb config: %v", mbir.ErrIO, err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return fmt.Errorf("%w: tiledb context: %v", mbir.ErrIO, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return fmt.Errorf("%w: tiledb vfs: %v", mbir.ErrIO, err)
	}
	defer vfs.Free()

	if exists, _ := vfs.IsFile(uri); exists {
		if err := vfs.RemoveFile(uri); err != nil {
			return fmt.Errorf("%w: removing existing %s: %v", mbir.ErrIO, uri, err)
		}
	}

	handle, err := vfs.Open(uri, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return fmt.Errorf("%w: opening %s for write: %v", mbir.ErrIO, uri, err)
	}
	defer handle.Close()

	if err := binary.Write(handle, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("%w: writing %s: %v", mbir.ErrIO, uri, err)
	}

	return nil
}

// ReadSinogramSlice reads the NViews*NChannels measurement array for slice
// z from "<basename>_slice<NNNN>.2Dsinodata".
func ReadSinogramSlice(basename string, z, nMeasurements int) ([]float64, error) {
	return ReadFloats64LE(SliceFileName(basename, z, ".2Dsinodata"), nMeasurements)
}

// WriteSinogramSlice writes slice z's measurement array.
func WriteSinogramSlice(basename string, z int, values []float64) error {
	return WriteFloats64LE(SliceFileName(basename, z, ".2Dsinodata"), values)
}

// ReadWeightsSlice reads slice z's weight array, same shape as the
// sinogram (spec.md §6).
func ReadWeightsSlice(basename string, z, nMeasurements int) ([]float64, error) {
	return ReadFloats64LE(SliceFileName(basename, z, ".wght"), nMeasurements)
}

// WriteWeightsSlice writes slice z's weight array.
func WriteWeightsSlice(basename string, z int, values []float64) error {
	return WriteFloats64LE(SliceFileName(basename, z, ".wght"), values)
}

// ReadImageSlice reads slice z's Nx*Ny voxel array from
// "<basename>_slice<NNNN>.2Dimgdata".
func ReadImageSlice(basename string, z, nxy int) ([]float64, error) {
	return ReadFloats64LE(SliceFileName(basename, z, ".2Dimgdata"), nxy)
}

// WriteImageSlice writes slice z's voxel array.
func WriteImageSlice(basename string, z int, values []float64) error {
	return WriteFloats64LE(SliceFileName(basename, z, ".2Dimgdata"), values)
}

// ReadSinogram reads every slice 0..nz-1 of a sinogram-shaped file set.
func ReadSinogram(basename string, nz, nMeasurements int) ([][]float64, error) {
	out := make([][]float64, nz)
	for z := 0; z < nz; z++ {
		vals, err := ReadSinogramSlice(basename, z, nMeasurements)
		if err != nil {
			return nil, err
		}
		out[z] = vals
	}
	return out, nil
}

// ReadWeights reads every slice's weight array.
func ReadWeights(basename string, nz, nMeasurements int) ([][]float64, error) {
	out := make([][]float64, nz)
	for z := 0; z < nz; z++ {
		vals, err := ReadWeightsSlice(basename, z, nMeasurements)
		if err != nil {
			return nil, err
		}
		out[z] = vals
	}
	return out, nil
}

// ReadImage reads every slice of a volume's image data into an
// mbir.Volume.
func ReadImage(basename string, nx, ny, nz int) (*mbir.Volume, error) {
	vol := &mbir.Volume{Nx: nx, Ny: ny, Nz: nz, Values: make([][]float64, nz)}
	for z := 0; z < nz; z++ {
		vals, err := ReadImageSlice(basename, z, nx*ny)
		if err != nil {
			return nil, err
		}
		vol.Values[z] = vals
	}
	return vol, nil
}

// WriteImage writes every slice of vol.
func WriteImage(basename string, vol *mbir.Volume) error {
	for z := 0; z < vol.Nz; z++ {
		if err := WriteImageSlice(basename, z, vol.Values[z]); err != nil {
			return err
		}
	}
	return nil
}
