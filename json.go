package mbir

import (
	"encoding/json"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// WriteJSON serialises data to a JSON file. The output location can be
// local or an object store such as S3, since writes go through a
// tiledb.VFS handle rather than the os package.
func WriteJSON(fileURI, configURI string, data any) (int, error) {
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
		return 0, fmt.Errorf("%w: tiledb config: %v", ErrIO, err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, fmt.Errorf("%w: tiledb context: %v", ErrIO, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, fmt.Errorf("%w: tiledb vfs: %v", ErrIO, err)
	}
	defer vfs.Free()

	if exists, _ := vfs.IsFile(fileURI); exists {
		if err := vfs.RemoveFile(fileURI); err != nil {
			return 0, fmt.Errorf("%w: removing existing %s: %v", ErrIO, fileURI, err)
		}
	}

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %v", ErrIO, fileURI, err)
	}
	defer stream.Close()

	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, err
	}

	written, err := stream.Write(jsn)
	if err != nil {
		return 0, fmt.Errorf("%w: writing %s: %v", ErrIO, fileURI, err)
	}

	return written, nil
}

// JSONDumps constructs a JSON string of the supplied data.
func JSONDumps(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return string(jsn), nil
}

// JSONIndentDumps constructs a JSON string of the supplied data using an
// indentation of four spaces.
func JSONIndentDumps(data any) (string, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", err
	}

	return string(jsn), nil
}
