package paramio

import (
	"fmt"
	"path/filepath"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/sixy6e/go-mbir"
)

// trawl recursively walks uri via tiledb.VFS, collecting every file whose
// basename matches pattern, grounded on the teacher's search/search.go
// trawl helper (there used to find "*.gsf" files).
func trawl(vfs *tiledb.VFS, pattern, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", mbir.ErrIO, uri, err)
	}

	for _, file := range files {
		match, err := filepath.Match(pattern, filepath.Base(file))
		if err != nil {
			return nil, err
		}
		if match {
			items = append(items, file)
		}
	}

	for _, dir := range dirs {
		items, err = trawl(vfs, pattern, dir, items)
		if err != nil {
			return nil, err
		}
	}

	return items, nil
}

// FindBasenames recursively searches uri for "*.imgparams" files and
// returns their basenames (the path with the ".imgparams" suffix
// stripped), each naming a complete parameter set of the form
// "<basename>.imgparams"/".sinoparams"/".reconparams" (spec.md §6).
// configURI, if non-empty, points at a TileDB config file for accessing
// an object store uri with restricted permissions, grounded on the
// teacher's search.FindGsf.
func FindBasenames(uri, configURI string) ([]string, error) {
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
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, fmt.Errorf("%w: tiledb context: %v", mbir.ErrIO, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: tiledb vfs: %v", mbir.ErrIO, err)
	}
	defer vfs.Free()

	matches, err := trawl(vfs, "*.imgparams", uri, make([]string, 0))
	if err != nil {
		return nil, err
	}

	basenames := make([]string, len(matches))
	for i, m := range matches {
		basenames[i] = strings.TrimSuffix(m, ".imgparams")
	}

	return basenames, nil
}
