package mbir

import (
	"fmt"
	"log"
	"math"
	"runtime"

	"github.com/alitto/pond"
)

// BeamModel selects how a channel's system-matrix value is sampled from the
// detector-pixel profile. NarrowBeam is the default and matches the
// original reference implementation; WideBeam is the compile-time
// alternative the original source gated behind a build flag, exposed here
// as a runtime enum (see DESIGN.md).
type BeamModel int

const (
	NarrowBeam BeamModel = iota
	WideBeam
)

// SparseColumn is the contribution of one image pixel to every (view,
// channel) pair. RowIndex is ascending within a view-block; Value entries
// are strictly positive. SystemMatrix exclusively owns its columns; no
// column is ever shared or aliased.
type SparseColumn struct {
	RowIndex []int32
	Value    []float32
}

// Nnonzero returns the number of nonzero entries in the column.
func (c *SparseColumn) Nnonzero() int {
	return len(c.Value)
}

// SystemMatrix is the sparse column-per-pixel forward-projection operator.
// Because the projection does not depend on slice under parallel-beam
// geometry, a single SystemMatrix is shared read-only across every Z slice.
type SystemMatrix struct {
	Ncolumns int
	Columns  []SparseColumn
}

// BuilderContext holds the geometry constants needed to build a
// SystemMatrix, computed once and passed by reference. This replaces the
// source's function-local first-call static-initialisation idiom with an
// explicit, race-free value (spec.md §9).
type BuilderContext struct {
	Sino  SinoGeometry
	Image ImageGeometry
	Table ProfileTable

	Model  BeamModel
	LenDet int // sub-elements per channel aperture in WideBeam mode

	x0, y0, t0 float64
}

// NewBuilderContext precomputes the pixel-origin and detector-zero
// constants shared by every column build.
func NewBuilderContext(sino SinoGeometry, image ImageGeometry, table ProfileTable, model BeamModel, lenDet int) *BuilderContext {
	if lenDet <= 0 {
		lenDet = DefaultLenDet
	}
	return &BuilderContext{
		Sino:   sino,
		Image:  image,
		Table:  table,
		Model:  model,
		LenDet: lenDet,
		x0:     -float64(image.Nx-1) * image.Deltaxy / 2,
		y0:     -float64(image.Ny-1) * image.Deltaxy / 2,
		t0:     -float64(sino.NChannels-1)*sino.DeltaChannel/2 - sino.CenterOffset*sino.DeltaChannel,
	}
}

// BuildColumn computes the sparse column for image-plane pixel index
// col = row*Nx + pcol (row = col/Nx, pcol = col%Nx), per spec.md §4.2.
// A fatal GeometryInconsistency is returned if a narrow-beam profile index
// falls outside [-1, LenPix] — the original exits the process in this
// case; this implementation instead surfaces it as an error so the caller
// (the orchestrator) can abort the run with file/parameter context.
func (bc *BuilderContext) BuildColumn(colIndex int) (SparseColumn, error) {
	nx := bc.Image.Nx
	row := colIndex / nx
	pcol := colIndex % nx

	y := bc.y0 + float64(row)*bc.Image.Deltaxy
	x := bc.x0 + float64(pcol)*bc.Image.Deltaxy

	maxNonzero := bc.Sino.NViews * bc.Sino.NChannels
	rowIdx := make([]int32, 0, 16)
	vals := make([]float32, 0, 16)

	lenPix := bc.Table.LenPix
	deltaxy := bc.Image.Deltaxy
	deltaChannel := bc.Sino.DeltaChannel
	nChannels := bc.Sino.NChannels

	for v := 0; v < bc.Sino.NViews; v++ {
		ang := bc.Sino.ViewAngles[v]
		tau := y*math.Cos(ang) - x*math.Sin(ang)

		tMin := tau - deltaxy
		tMax := tau + deltaxy

		if tMax < bc.t0 {
			continue
		}

		indMin := int(math.Ceil((tMin-bc.t0)/deltaChannel - 0.5))
		if indMin < 0 {
			indMin = 0
		}
		indMax := int(math.Floor((tMax-bc.t0)/deltaChannel + 0.5))
		if indMax >= nChannels {
			indMax = nChannels - 1
		}

		profRow := bc.Table.Rows[v]

		for i := indMin; i <= indMax; i++ {
			var aval float64

			switch bc.Model {
			case WideBeam:
				const1 := bc.t0 - deltaChannel/2 + deltaChannel/float64(bc.LenDet-1)
				const3 := deltaxy - tau
				const4 := float64(lenPix-1) / (2 * deltaxy)
				for k := 0; k < bc.LenDet; k++ {
					t := const1 + float64(i)*deltaChannel + float64(k)*deltaChannel/float64(bc.LenDet-1)
					profInd := int(0.5 + (t+const3)*const4)
					if profInd >= 0 && profInd < lenPix {
						aval += profRow[profInd] / float64(bc.LenDet)
					}
				}
			default: // NarrowBeam
				const3 := deltaxy - tau
				profInd := int(float64(lenPix) * (bc.t0 + float64(i)*deltaChannel + const3) / (2 * deltaxy))
				if profInd == lenPix {
					profInd = lenPix - 1
				} else if profInd == -1 {
					profInd = 0
				} else if profInd < 0 || profInd >= lenPix {
					return SparseColumn{}, fmt.Errorf("%w: column %d view %d channel %d profile index %d outside [0,%d)",
						ErrGeometryInconsistency, colIndex, v, i, profInd, lenPix)
				}
				aval = profRow[profInd]
			}

			if aval > 0 {
				rowIdx = append(rowIdx, int32(v*nChannels+i))
				vals = append(vals, float32(aval))
			}
		}
	}

	if len(vals) > maxNonzero {
		return SparseColumn{}, fmt.Errorf("%w: column %d has %d entries, exceeds bound %d",
			ErrGeometryInconsistency, colIndex, len(vals), maxNonzero)
	}

	return SparseColumn{RowIndex: rowIdx, Value: vals}, nil
}

// BuildSystemMatrix computes every column of A. When workers > 1 the build
// is fanned out across a bounded pond pool, one submission per column —
// columns are independent given a read-only BuilderContext, mirroring the
// teacher's one-worker-per-item conversion pool (cmd/main.go's
// convert_gsf_list). workers <= 1 builds sequentially in column order.
func BuildSystemMatrix(bc *BuilderContext, workers int) (*SystemMatrix, error) {
	ncols := bc.Image.Nx * bc.Image.Ny

	log.Println("Computing system matrix...")

	matrix := &SystemMatrix{
		Ncolumns: ncols,
		Columns:  make([]SparseColumn, ncols),
	}

	if workers <= 1 {
		for c := 0; c < ncols; c++ {
			col, err := bc.BuildColumn(c)
			if err != nil {
				return nil, err
			}
			matrix.Columns[c] = col
		}
		log.Println("System matrix computation done")
		return matrix, nil
	}

	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}

	pool := pond.New(workers, 0, pond.MinWorkers(workers))
	defer pool.StopAndWait()

	errs := make(chan error, ncols)

	for c := 0; c < ncols; c++ {
		colIndex := c
		pool.Submit(func() {
			col, err := bc.BuildColumn(colIndex)
			if err != nil {
				errs <- err
				return
			}
			matrix.Columns[colIndex] = col
			errs <- nil
		})
	}

	pool.StopAndWait()
	close(errs)

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	log.Println("System matrix computation done")
	return matrix, nil
}
