package mbir

import (
	"errors"
)

// Sentinel errors corresponding to the taxonomy of error kinds the
// reconstruction pipeline can raise. Callers compare with errors.Is;
// context (file names, voxel indices) is attached at the call site, by
// wrapping with fmt.Errorf's %w or by errors.Join, rather than encoded
// into the sentinel text.
var ErrArgument = errors.New("argument error")
var ErrParameter = errors.New("parameter error")
var ErrGeometryInconsistency = errors.New("geometry inconsistency")
var ErrIO = errors.New("io error")
var ErrNumeric = errors.New("numeric error")

var ErrEmptyColumn = errors.New("system matrix column has no nonzero entries")
var ErrProfileIndexRange = errors.New("profile index out of range")
var ErrNonPositiveCurvature = errors.New("non-positive curvature in icd surrogate")

var ErrCreateAttributeTdb = errors.New("error creating attribute for tiledb array")
var ErrCreateSchemaTdb = errors.New("error creating tiledb schema")
var ErrCreateDimTdb = errors.New("error creating tiledb dimension")
var ErrAddFilters = errors.New("error adding filter to filter list")
var ErrDims = errors.New("error dims is > 2")
var ErrDtype = errors.New("error slice datatype is unexpected")
var ErrSetBuff = errors.New("error setting tiledb buffer")
var ErrFiltList = errors.New("error creating tiledb filter list")
var ErrNewAttr = errors.New("error creating tiledb attribute")
var ErrNewFilt = errors.New("error creating tiledb filter")
var ErrSetFiltList = errors.New("error setting tiledb filter list")
var ErrAddAttr = errors.New("error adding tiledb attribute")
var ErrZstdFilt = errors.New("error creating tiledb zstandard filter")
var ErrCreateVolumeTdb = errors.New("error creating volume checkpoint array")
var ErrWriteVolumeTdb = errors.New("error writing volume checkpoint array")
var ErrCreateResidualTdb = errors.New("error creating residual checkpoint array")
var ErrWriteResidualTdb = errors.New("error writing residual checkpoint array")
