// Package checkpoint persists in-progress and completed reconstructions
// (volume and residual snapshots) to TileDB dense arrays, so a long-running
// recon can resume after interruption rather than restart from iteration
// zero. The filter/attribute plumbing is adapted from the teacher's
// tiledb.go and schema.go, trimmed to the generic reflection-and-tag-driven
// parts (CreateAttr, schemaAttrs) and the compression filter constructors;
// the sensor/ping-specific schema builders were dropped since they have no
// MBIR analog.
package checkpoint

import (
	"errors"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"

	"github.com/sixy6e/go-mbir"
)

// ArrayOpen is a helper for opening a tiledb array in the given mode.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}

	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}

	return array, nil
}

// AddFilters sequentially appends compression filters to a filter pipeline.
func AddFilters(filterList *tiledb.FilterList, filters ...*tiledb.Filter) error {
	for _, filt := range filters {
		if err := filterList.AddFilter(filt); err != nil {
			return err
		}
	}
	return nil
}

// AttachFilters attaches the same filter pipeline to a set of attributes.
func AttachFilters(filterList *tiledb.FilterList, attrs ...*tiledb.Attribute) error {
	for _, attr := range attrs {
		if err := attr.SetFilterList(filterList); err != nil {
			return err
		}
	}
	return nil
}

// ZstdFilter initialises the Zstandard compression filter at the given
// compression level.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// GzipFilter initialises the deflate compression filter.
func GzipFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_GZIP)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// Lz4Filter initialises the LZ4 compression filter.
func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_LZ4)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// RleFilter initialises the run-length-encoding filter. The compression
// level is meaningless for RLE and quietly ignored by TileDB.
func RleFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_RLE)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// Bzip2Filter initialises the Burrows-Wheeler compression filter.
func Bzip2Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BZIP2)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// BitWidthReductionFilter initialises the bit-width-reduction filter.
func BitWidthReductionFilter(ctx *tiledb.Context, window int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BIT_WIDTH_REDUCTION)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_BIT_WIDTH_MAX_WINDOW, window); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// CreateAttr creates a tiledb attribute, with its compression filter
// pipeline, from a struct field's "tiledb" and "filters" tags. Supported
// tiledb tag attributes are dtype and ftype; ftype=dim fields are the
// caller's responsibility (they are not attributes) and are skipped by
// schemaAttrs before CreateAttr is ever called on them. Supported filter
// tags are zstd(level=N), gzip(level=N), lz4(level=N), rle(level=N),
// bzip2(level=N), bitw(window=N), bish (bitshuffle) and bysh
// (byteshuffle), applied in tag order.
func CreateAttr(
	fieldName string,
	filterDefs []stgpsr.Definition,
	tiledbDefs map[string]stgpsr.Definition,
	schema *tiledb.ArraySchema,
	ctx *tiledb.Context,
) error {
	def, ok := tiledbDefs["dtype"]
	if !ok {
		return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("dtype tag not found"))
	}
	dtypeName, _ := def.Attribute("dtype")

	var dtype tiledb.Datatype
	switch dtypeName {
	case "int8":
		dtype = tiledb.TILEDB_INT8
	case "uint8":
		dtype = tiledb.TILEDB_UINT8
	case "int16":
		dtype = tiledb.TILEDB_INT16
	case "uint16":
		dtype = tiledb.TILEDB_UINT16
	case "int32":
		dtype = tiledb.TILEDB_INT32
	case "uint32":
		dtype = tiledb.TILEDB_UINT32
	case "int64":
		dtype = tiledb.TILEDB_INT64
	case "uint64":
		dtype = tiledb.TILEDB_UINT64
	case "float32":
		dtype = tiledb.TILEDB_FLOAT32
	case "float64":
		dtype = tiledb.TILEDB_FLOAT64
	}

	filts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(mbir.ErrCreateAttributeTdb, err)
	}
	defer filts.Free()

	for _, filter := range filterDefs {
		switch filter.Name() {
		case "zstd":
			level, ok := filter.Attribute("level")
			if !ok {
				return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("zstd level not defined"))
			}
			filt, err := ZstdFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "gzip":
			level, ok := filter.Attribute("level")
			if !ok {
				return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("gzip level not defined"))
			}
			filt, err := GzipFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "lz4":
			level, ok := filter.Attribute("level")
			if !ok {
				return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("lz4 level not defined"))
			}
			filt, err := Lz4Filter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "rle":
			level, ok := filter.Attribute("level")
			if !ok {
				return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("rle level not defined"))
			}
			filt, err := RleFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "bzip2":
			level, ok := filter.Attribute("level")
			if !ok {
				return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("bzip2 level not defined"))
			}
			filt, err := Bzip2Filter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "bitw":
			window, ok := filter.Attribute("window")
			if !ok {
				return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("bitwidth window not defined"))
			}
			filt, err := BitWidthReductionFilter(ctx, int32(window.(int64)))
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "bish":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BITSHUFFLE)
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		case "bysh":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
			if err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filts.AddFilter(filt); err != nil {
				return errors.Join(mbir.ErrCreateAttributeTdb, err)
			}
		}
	}

	attr, err := tiledb.NewAttribute(ctx, fieldName, dtype)
	if err != nil {
		return errors.Join(mbir.ErrCreateAttributeTdb, err)
	}
	defer attr.Free()

	if err := AttachFilters(filts, attr); err != nil {
		return errors.Join(mbir.ErrCreateAttributeTdb, err)
	}

	if err := schema.AddAttributes(attr); err != nil {
		return errors.Join(mbir.ErrCreateAttributeTdb, err)
	}

	return nil
}

// schemaAttrs walks every exported field of t and, for every field tagged
// ftype=attr, creates the corresponding tiledb attribute via CreateAttr.
// Fields tagged ftype=dim are skipped: dimensions are declared explicitly
// by the caller (WriteVolume, WriteResidual via createDenseSchema) since their
// domain bounds are runtime values, not tag literals.
func schemaAttrs(t any, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	values := reflect.ValueOf(t).Elem()
	types := values.Type()
	filtDefs, _ := stgpsr.ParseStruct(t, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(t, "tiledb")

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		fieldTdbDefs := make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldTdbDefs[v.Name()] = v
		}

		def, ok := fieldTdbDefs["ftype"]
		if !ok {
			return errors.Join(mbir.ErrCreateAttributeTdb, errors.New("ftype tag not found"))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue
		}

		if err := CreateAttr(name, filtDefs[name], fieldTdbDefs, schema, ctx); err != nil {
			return errors.Join(mbir.ErrCreateAttributeTdb, err)
		}
	}

	return nil
}

// WriteArrayMetadata attaches a JSON-serialised value to a tiledb array as
// array metadata, adapted from the teacher's WriteArrayMetadata.
func WriteArrayMetadata(ctx *tiledb.Context, arrayURI, key string, md any) error {
	array, err := ArrayOpen(ctx, arrayURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return errors.Join(mbir.ErrIO, err)
	}
	defer array.Free()
	defer array.Close()

	jsn, err := mbir.JSONDumps(md)
	if err != nil {
		return err
	}

	if err := array.PutMetadata(key, jsn); err != nil {
		return errors.Join(mbir.ErrIO, err)
	}

	return nil
}
