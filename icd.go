package mbir

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"

	"github.com/alitto/pond"
)

// ReconParams collects the reconstruction parameters of spec.md §3:
// p < q <= 2, T > 0, SigmaX > 0, all b >= 0.
type ReconParams struct {
	P, Q, T, SigmaX             float64
	BNearest, BDiag, BInterslice float64
	Positivity                  bool
	StopThreshold               float64
	MaxIterations               int
	InitImageValue              float64
}

// State is one of the ICDOptimizer's outer-loop states (spec.md §4.5):
// Idle -> Initializing -> Sweeping -> (Sweeping | Converged | MaxIterReached).
type State int

const (
	Idle State = iota
	Initializing
	Sweeping
	Converged
	MaxIterReached
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Initializing:
		return "Initializing"
	case Sweeping:
		return "Sweeping"
	case Converged:
		return "Converged"
	case MaxIterReached:
		return "MaxIterReached"
	default:
		return "Unknown"
	}
}

// Outcome is the result of running the optimizer to completion,
// cancellation, or the iteration cap.
type Outcome struct {
	State               State
	Iterations          int
	FinalRelativeChange float64
	NumericErrors       int
	ConvergenceWarning  bool
}

// ICDOptimizer is the outer scheduler of spec.md §4.5/§2: it sweeps
// voxels, invokes one ICD step per voxel, updates the volume and residual,
// and tracks convergence. A is borrowed read-only; Volume and Residual are
// borrowed mutably and owned by the caller (the Orchestrator).
type ICDOptimizer struct {
	A         *SystemMatrix
	Residual  *Residual
	Volume    *Volume
	Weights   [][]float64
	Params    ReconParams
	Neighbors NeighborhoodExtractor
	Prior     QGGMRFParams

	// RandomOrder enables a per-iteration deterministic random sweep
	// permutation (spec.md §5); raster order is used when false.
	RandomOrder bool
	Seed        int64

	// ParallelSlices runs each slice's sweep on its own pond worker; A is
	// shared read-only and each slice owns a disjoint e[z]/x[z,:] strip, so
	// this carries no cross-slice ordering requirement (spec.md §5).
	ParallelSlices bool
	Workers        int

	state         State
	numericErrors int
}

// State reports the optimizer's current outer-loop state.
func (o *ICDOptimizer) State() State { return o.state }

// stepVoxel performs one ICD update of voxel (z, j) where j is the
// in-plane index (spec.md §4.5 steps 1-7). cm accumulates the sweep's
// convergence statistics.
func (o *ICDOptimizer) stepVoxel(z, j int, cm *ConvergenceMonitor) {
	col := &o.A.Columns[j]
	nxy := o.Volume.Nx * o.Volume.Ny

	var theta1, theta2 float64
	w := o.Weights[z]
	e := o.Residual.Values[z]
	for n, rowIdx := range col.RowIndex {
		a := float64(col.Value[n])
		theta1 -= a * w[rowIdx] * e[rowIdx]
		theta2 += a * a * w[rowIdx]
	}

	v := o.Volume.Values[z][j]
	neighbors := o.Neighbors.Extract(o.Volume, z*nxy+j)

	var sum1Nearest, sum2Nearest, sum1Diag, sum2Diag, sum1Inter, sum2Inter float64
	for idx, nb := range neighbors {
		delta := v - nb
		s := o.Prior.SurrogateCoeff(delta)
		switch {
		case idx < 4:
			sum1Nearest += s * delta
			sum2Nearest += s
		case idx < 6:
			sum1Inter += s * delta
			sum2Inter += s
		default:
			sum1Diag += s * delta
			sum2Diag += s
		}
	}

	theta1 += o.Params.BNearest*sum1Nearest + o.Params.BDiag*sum1Diag + o.Params.BInterslice*sum1Inter
	theta2 += o.Params.BNearest*sum2Nearest + o.Params.BDiag*sum2Diag + o.Params.BInterslice*sum2Inter

	if theta2 <= 0 {
		// Per spec.md §4.5/§7: only occurs when the column is empty and the
		// prior coefficients sum to zero; skip the voxel and count it.
		o.numericErrors++
		return
	}

	vNew := v - theta1/theta2
	if o.Params.Positivity && vNew < 0 {
		vNew = 0
	}

	diff := vNew - v
	if diff != 0 {
		o.Volume.Values[z][j] = vNew
		o.Residual.SubtractScaledColumn(z, col, diff)
	}

	cm.Accumulate(diff, v)
}

// sweepOrder returns the in-plane voxel visitation order for one slice in
// one iteration: raster order by default, or a deterministic permutation
// seeded from (Seed, iteration, z) when RandomOrder is set.
func (o *ICDOptimizer) sweepOrder(nxy, iteration, z int) []int {
	order := make([]int, nxy)
	for i := range order {
		order[i] = i
	}
	if !o.RandomOrder {
		return order
	}
	rng := rand.New(rand.NewSource(o.Seed + int64(iteration)*1_000_003 + int64(z)))
	rng.Shuffle(nxy, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// sweep visits every voxel once. Sequential unless ParallelSlices is set,
// in which case every slice is submitted to a bounded pond pool; within a
// slice, voxels remain strictly sequential because each update mutates
// e[z], which subsequent updates within the same slice read (spec.md §5).
func (o *ICDOptimizer) sweep(iteration int) ConvergenceMonitor {
	nxy := o.Volume.Nx * o.Volume.Ny
	nz := o.Volume.Nz

	if !o.ParallelSlices || nz <= 1 {
		var cm ConvergenceMonitor
		for z := 0; z < nz; z++ {
			for _, j := range o.sweepOrder(nxy, iteration, z) {
				o.stepVoxel(z, j, &cm)
			}
		}
		return cm
	}

	workers := o.Workers
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers > nz {
		workers = nz
	}

	pool := pond.New(workers, 0, pond.MinWorkers(workers))
	partials := make([]ConvergenceMonitor, nz)

	for z := 0; z < nz; z++ {
		sliceIndex := z
		pool.Submit(func() {
			var cm ConvergenceMonitor
			for _, j := range o.sweepOrder(nxy, iteration, sliceIndex) {
				o.stepVoxel(sliceIndex, j, &cm)
			}
			partials[sliceIndex] = cm
		})
	}
	pool.StopAndWait()

	var total ConvergenceMonitor
	for _, p := range partials {
		total.Merge(p)
	}
	return total
}

// Run drives the outer ICD loop (spec.md §4.5) to convergence, to
// MaxIterations, or until ctx is cancelled at a sweep boundary.
func (o *ICDOptimizer) Run(ctx context.Context) (Outcome, error) {
	o.state = Initializing

	if o.A == nil || o.Residual == nil || o.Volume == nil {
		return Outcome{}, fmt.Errorf("%w: optimizer missing A, residual, or volume", ErrParameter)
	}
	if o.Params.P >= o.Params.Q || o.Params.Q > 2 {
		return Outcome{}, fmt.Errorf("%w: require p < q <= 2, got p=%v q=%v", ErrParameter, o.Params.P, o.Params.Q)
	}

	o.state = Sweeping
	o.numericErrors = 0

	var rel float64
	for iter := 0; iter < o.Params.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return Outcome{State: o.state, Iterations: iter, FinalRelativeChange: rel, NumericErrors: o.numericErrors}, ctx.Err()
		default:
		}

		cm := o.sweep(iter)
		rel = cm.RelativeChange()
		log.Printf("iteration %d: relative change %.4f%%, numeric errors %d", iter+1, rel, o.numericErrors)

		if rel < o.Params.StopThreshold {
			o.state = Converged
			return Outcome{
				State:               Converged,
				Iterations:          iter + 1,
				FinalRelativeChange: rel,
				NumericErrors:       o.numericErrors,
			}, nil
		}
	}

	o.state = MaxIterReached
	log.Println("MaxIterations reached without meeting StopThreshold")
	return Outcome{
		State:               MaxIterReached,
		Iterations:          o.Params.MaxIterations,
		FinalRelativeChange: rel,
		NumericErrors:       o.numericErrors,
		ConvergenceWarning:  true,
	}, nil
}
