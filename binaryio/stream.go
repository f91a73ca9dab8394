package binaryio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/sixy6e/go-mbir"
)

// Stream is a generic reader/seeker so callers can hand the package either
// a *tiledb.VFSfh (local disk or an object store such as S3) or an
// in-memory *bytes.Reader without branching. Grounded on the teacher's
// reader.go Stream interface.
type Stream interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

// GenericStream returns either the raw VFS handle (streamed access) or an
// in-memory byte reader over its full contents, grounded on the teacher's
// reader.go GenericStream helper.
func GenericStream(handle *tiledb.VFSfh, size uint64, inMemory bool) (Stream, error) {
	if !inMemory {
		return handle, nil
	}
	buffer := make([]byte, size)
	if err := binary.Read(handle, binary.LittleEndian, &buffer); err != nil {
		return nil, err
	}
	return bytes.NewReader(buffer), nil
}

// Tell reports the current position within stream.
func Tell(stream Stream) (int64, error) {
	return stream.Seek(0, 1)
}

// DataFile is an opened binary data file (local path or object-store URI),
// grounded on the teacher's file.go GsfFile/OpenGSF: a tiledb.VFS handle
// backing a Stream, usable transparently for local or remote storage.
type DataFile struct {
	URI      string
	config   *tiledb.Config
	ctx      *tiledb.Context
	vfs      *tiledb.VFS
	handle   *tiledb.VFSfh
	filesize uint64
	Stream
}

// OpenDataFile opens uri for reading. configURI, if non-empty, points at a
// TileDB config file (credentials, endpoint overrides for an object
// store); otherwise a default config is used.
func OpenDataFile(uri, configURI string) (*DataFile, error) {
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
		return nil, fmt.Errorf("%w: tiledb config: %v", mbir.ErrIO, err)
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, fmt.Errorf("%w: tiledb context: %v", mbir.ErrIO, err)
	}

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: tiledb vfs: %v", mbir.ErrIO, err)
	}

	handle, err := vfs.Open(uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", mbir.ErrIO, uri, err)
	}

	filesize, err := vfs.FileSize(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: sizing %s: %v", mbir.ErrIO, uri, err)
	}

	stream, err := GenericStream(handle, filesize, true)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", mbir.ErrIO, uri, err)
	}

	return &DataFile{
		URI:      uri,
		config:   config,
		ctx:      ctx,
		vfs:      vfs,
		handle:   handle,
		filesize: filesize,
		Stream:   stream,
	}, nil
}

// Close releases the file's tiledb handles.
func (d *DataFile) Close() {
	d.handle.Close()
	d.vfs.Free()
	d.ctx.Free()
	d.config.Free()
}

// ReadAll reads the entirety of the file's contents.
func (d *DataFile) ReadAll() ([]byte, error) {
	if _, err := d.Stream.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("%w: seeking %s: %v", mbir.ErrIO, d.URI, err)
	}
	buf := make([]byte, d.filesize)
	if err := binary.Read(d.Stream, binary.LittleEndian, &buf); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", mbir.ErrIO, d.URI, err)
	}
	return buf, nil
}
