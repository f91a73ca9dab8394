package checkpoint

import (
	"errors"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/sixy6e/go-mbir"
)

// volumeAttrs declares the single dense-array attribute holding a
// reconstructed volume's voxel values. Its Z/Y/X position is carried by
// the array's dimensions rather than struct fields, since the domain
// bounds (Nx, Ny, Nz) are only known at runtime; schemaAttrs only
// processes this struct's attr-tagged field.
type volumeAttrs struct {
	Value float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
}

// residualAttrs declares the single dense-array attribute holding a
// residual's error values, keyed by (Z, K) where K indexes the flattened
// NViews*NChannels measurement array.
type residualAttrs struct {
	Value float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
}

func openConfigCtx(configURI string) (*tiledb.Config, *tiledb.Context, error) {
	var (
		config *tiledb.Config
		err    error
	)
	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: tiledb config: %v", mbir.ErrIO, err)
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		config.Free()
		return nil, nil, fmt.Errorf("%w: tiledb context: %v", mbir.ErrIO, err)
	}

	return config, ctx, nil
}

// dimWithFilters builds a dimension over [0, size-1] with a positive-delta
// plus zstandard filter pipeline, the same pattern the teacher applies to
// its PING_ID dimension in schema.go's pingDenseSchema.
func dimWithFilters(ctx *tiledb.Context, name string, size uint64) (*tiledb.Dimension, error) {
	dim, err := tiledb.NewDimension(ctx, name, tiledb.TILEDB_UINT64, []uint64{0, size - 1}, size)
	if err != nil {
		return nil, err
	}

	filts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		dim.Free()
		return nil, err
	}
	defer filts.Free()

	delta, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_POSITIVE_DELTA)
	if err != nil {
		dim.Free()
		return nil, err
	}
	defer delta.Free()

	zstd, err := ZstdFilter(ctx, 16)
	if err != nil {
		dim.Free()
		return nil, err
	}
	defer zstd.Free()

	if err := AddFilters(filts, delta, zstd); err != nil {
		dim.Free()
		return nil, err
	}
	if err := dim.SetFilterList(filts); err != nil {
		dim.Free()
		return nil, err
	}

	return dim, nil
}

func createDenseSchema(ctx *tiledb.Context, dims []*tiledb.Dimension, attrs any) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, err
	}
	defer domain.Free()

	if err := domain.AddDimensions(dims...); err != nil {
		return nil, err
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, err
	}

	if err := schema.SetDomain(domain); err != nil {
		return nil, err
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, err
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, err
	}

	if err := schemaAttrs(attrs, schema, ctx); err != nil {
		return nil, err
	}

	return schema, nil
}

// WriteVolume checkpoints vol to a TileDB dense array at uri, keyed by
// dimensions (Z, Y, X), overwriting any existing array. iteration and
// relChange are recorded as array metadata so a resumed run can report
// where it left off.
func WriteVolume(uri, configURI string, vol *mbir.Volume, iteration int, relChange float64) error {
	config, ctx, err := openConfigCtx(configURI)
	if err != nil {
		return err
	}
	defer config.Free()
	defer ctx.Free()

	zdim, err := dimWithFilters(ctx, "Z", uint64(vol.Nz))
	if err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}
	ydim, err := dimWithFilters(ctx, "Y", uint64(vol.Ny))
	if err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}
	xdim, err := dimWithFilters(ctx, "X", uint64(vol.Nx))
	if err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}

	schema, err := createDenseSchema(ctx, []*tiledb.Dimension{zdim, ydim, xdim}, &volumeAttrs{})
	if err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}
	defer schema.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}
	defer vfs.Free()
	if exists, _ := vfs.IsDir(uri); exists {
		if err := vfs.RemoveDir(uri); err != nil {
			return errors.Join(mbir.ErrCreateVolumeTdb, err)
		}
	}

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return errors.Join(mbir.ErrCreateVolumeTdb, err)
	}

	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return errors.Join(mbir.ErrWriteVolumeTdb, err)
	}
	defer array.Close()

	flat := make([]float64, 0, vol.Nz*vol.Nx*vol.Ny)
	for z := 0; z < vol.Nz; z++ {
		flat = append(flat, vol.Values[z]...)
	}

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(mbir.ErrWriteVolumeTdb, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(mbir.ErrWriteVolumeTdb, err)
	}
	if _, err := query.SetDataBuffer("Value", flat); err != nil {
		return errors.Join(mbir.ErrWriteVolumeTdb, err)
	}
	if err := query.Submit(); err != nil {
		return errors.Join(mbir.ErrWriteVolumeTdb, err)
	}

	meta := map[string]any{"iteration": iteration, "relative_change": relChange}
	if err := WriteArrayMetadata(ctx, uri, "checkpoint", meta); err != nil {
		return errors.Join(mbir.ErrWriteVolumeTdb, err)
	}

	return nil
}

// ReadVolume restores a volume checkpoint written by WriteVolume.
func ReadVolume(uri, configURI string, nx, ny, nz int) (*mbir.Volume, error) {
	config, ctx, err := openConfigCtx(configURI)
	if err != nil {
		return nil, err
	}
	defer config.Free()
	defer ctx.Free()

	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
	if err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	defer array.Free()
	defer array.Close()

	flat := make([]float64, nx*ny*nz)

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	defer query.Free()

	subarray, err := tiledb.NewSubarray(ctx, array)
	if err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	defer subarray.Free()

	if err := subarray.SetSubArray([]uint64{0, uint64(nz - 1), 0, uint64(ny - 1), 0, uint64(nx - 1)}); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if err := query.SetSubarray(subarray); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if _, err := query.SetDataBuffer("Value", flat); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if err := query.Submit(); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}

	vol := &mbir.Volume{Nx: nx, Ny: ny, Nz: nz, Values: make([][]float64, nz)}
	stride := nx * ny
	for z := 0; z < nz; z++ {
		vol.Values[z] = flat[z*stride : (z+1)*stride]
	}

	return vol, nil
}

// WriteResidual checkpoints res to a TileDB dense array at uri, keyed by
// dimensions (Z, K) where K is the flattened measurement index.
func WriteResidual(uri, configURI string, res *mbir.Residual, nz int) error {
	config, ctx, err := openConfigCtx(configURI)
	if err != nil {
		return err
	}
	defer config.Free()
	defer ctx.Free()

	zdim, err := dimWithFilters(ctx, "Z", uint64(nz))
	if err != nil {
		return errors.Join(mbir.ErrCreateResidualTdb, err)
	}
	kdim, err := dimWithFilters(ctx, "K", uint64(res.NMeasurements))
	if err != nil {
		return errors.Join(mbir.ErrCreateResidualTdb, err)
	}

	schema, err := createDenseSchema(ctx, []*tiledb.Dimension{zdim, kdim}, &residualAttrs{})
	if err != nil {
		return errors.Join(mbir.ErrCreateResidualTdb, err)
	}
	defer schema.Free()

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(mbir.ErrCreateResidualTdb, err)
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return errors.Join(mbir.ErrCreateResidualTdb, err)
	}

	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return errors.Join(mbir.ErrWriteResidualTdb, err)
	}
	defer array.Close()

	flat := make([]float64, 0, nz*res.NMeasurements)
	for z := 0; z < nz; z++ {
		flat = append(flat, res.Values[z]...)
	}

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(mbir.ErrWriteResidualTdb, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(mbir.ErrWriteResidualTdb, err)
	}
	if _, err := query.SetDataBuffer("Value", flat); err != nil {
		return errors.Join(mbir.ErrWriteResidualTdb, err)
	}
	if err := query.Submit(); err != nil {
		return errors.Join(mbir.ErrWriteResidualTdb, err)
	}

	return nil
}

// ReadResidual restores a residual checkpoint written by WriteResidual.
func ReadResidual(uri, configURI string, nz, nMeasurements int) (*mbir.Residual, error) {
	config, ctx, err := openConfigCtx(configURI)
	if err != nil {
		return nil, err
	}
	defer config.Free()
	defer ctx.Free()

	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
	if err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	defer array.Free()
	defer array.Close()

	flat := make([]float64, nz*nMeasurements)

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	defer query.Free()

	subarray, err := tiledb.NewSubarray(ctx, array)
	if err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	defer subarray.Free()

	if err := subarray.SetSubArray([]uint64{0, uint64(nz - 1), 0, uint64(nMeasurements - 1)}); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if err := query.SetSubarray(subarray); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if _, err := query.SetDataBuffer("Value", flat); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}
	if err := query.Submit(); err != nil {
		return nil, errors.Join(mbir.ErrIO, err)
	}

	res := &mbir.Residual{NMeasurements: nMeasurements, Values: make([][]float64, nz)}
	for z := 0; z < nz; z++ {
		res.Values[z] = flat[z*nMeasurements : (z+1)*nMeasurements]
	}

	return res, nil
}
