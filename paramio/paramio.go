// Package paramio reads and writes the plain-text "key = value" parameter
// files used for image, sinogram and reconstruction parameters (spec.md
// §6). The parsing style (lowercased keys, typed value coercion from a
// string) is grounded on the teacher's decode/params.go key=value
// processing for GSF's PROCESSING_PARAMETERS record.
package paramio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMissingKey is returned by the typed accessors (String, Int, Float64,
// Bool) when a required key is absent from a parsed parameter set.
type ErrMissingKey struct {
	Key string
}

func (e *ErrMissingKey) Error() string {
	return fmt.Sprintf("parameter error: missing required key %q", e.Key)
}

// Params is a parsed "key = value" file, keyed by lowercased, trimmed key.
type Params map[string]string

// Read parses "<basename><ext>" as a sequence of "key = value" lines.
// Blank lines and lines beginning with '#' are ignored.
func Read(basename, ext string) (Params, error) {
	path := basename + ext
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parameter error: opening %s: %w", path, err)
	}
	defer f.Close()

	params := make(Params)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		split := strings.SplitN(line, "=", 2)
		if len(split) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(split[0]))
		val := strings.TrimSpace(split[1])
		params[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parameter error: reading %s: %w", path, err)
	}

	return params, nil
}

// Write serialises params as "key = value" lines to "<basename><ext>", one
// per line, keys in the order supplied.
func Write(basename, ext string, keys []string, params Params) error {
	path := basename + ext
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("parameter error: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s = %s\n", k, params[k]); err != nil {
			return fmt.Errorf("parameter error: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}

func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", &ErrMissingKey{Key: key}
	}
	return v, nil
}

func (p Params) Int(key string) (int, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter error: key %q: %w", key, err)
	}
	return i, nil
}

func (p Params) Float64(key string) (float64, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter error: key %q: %w", key, err)
	}
	return f, nil
}

// Bool parses yes/no/true/false/1/0, matching the teacher's bool-word
// handling for free-text parameter values.
func (p Params) Bool(key string) (bool, error) {
	v, err := p.String(key)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("parameter error: key %q: unrecognised boolean value %q", key, v)
	}
}
