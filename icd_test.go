package mbir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestOptimizer(t *testing.T, randomOrder bool, parallelSlices bool) (*ICDOptimizer, *Orchestrator) {
	t.Helper()

	sino, image := testGeometry(24, 12, 6, 6, 2)
	recon := ReconParams{
		P: 1.2, Q: 2.0, T: 1.0, SigmaX: 0.05,
		BNearest: 1.0, BDiag: 1.0 / 1.41421356, BInterslice: 1.0,
		Positivity:     true,
		StopThreshold:  0.01,
		MaxIterations:  20,
		InitImageValue: 0,
	}

	nMeasurements := sino.NViews * sino.NChannels
	y := make([][]float64, image.Nz)
	w := make([][]float64, image.Nz)
	for z := range y {
		y[z] = make([]float64, nMeasurements)
		w[z] = make([]float64, nMeasurements)
		for k := range y[z] {
			y[z][k] = 1.0
			w[z][k] = 1.0
		}
	}

	cfg := Config{
		Sino: sino, Image: image, Recon: recon, Y: y, W: w,
		Model: NarrowBeam, LenPix: DefaultLenPix, LenDet: DefaultLenDet,
		EdgePolicy:       WrapAround,
		SysMatrixWorkers: 1,
		SliceWorkers:     map[bool]int{true: 2, false: 0}[parallelSlices],
		RandomOrder:      randomOrder,
		Seed:             42,
	}

	orch, err := NewOrchestrator(cfg)
	require.NoError(t, err)

	return nil, orch
}

func TestOrchestratorRunConverges(t *testing.T) {
	_, orch := buildTestOptimizer(t, false, false)

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []State{Converged, MaxIterReached}, outcome.State)
	assert.Greater(t, outcome.Iterations, 0)
}

func TestOrchestratorDeterministicWithSeed(t *testing.T) {
	_, orchA := buildTestOptimizer(t, true, false)
	_, orchB := buildTestOptimizer(t, true, false)

	outcomeA, err := orchA.Run(context.Background())
	require.NoError(t, err)
	outcomeB, err := orchB.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, outcomeA.Iterations, outcomeB.Iterations)
	for z := 0; z < orchA.Volume.Nz; z++ {
		assert.Equal(t, orchA.Volume.Values[z], orchB.Volume.Values[z], "identical seeds must reproduce identical voxel trajectories")
	}
}

func TestOrchestratorSequentialMatchesParallelSlices(t *testing.T) {
	_, seqOrch := buildTestOptimizer(t, false, false)
	_, parOrch := buildTestOptimizer(t, false, true)

	seqOutcome, err := seqOrch.Run(context.Background())
	require.NoError(t, err)
	parOutcome, err := parOrch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, seqOutcome.Iterations, parOutcome.Iterations)
	for z := 0; z < seqOrch.Volume.Nz; z++ {
		assert.InDeltaSlice(t, seqOrch.Volume.Values[z], parOrch.Volume.Values[z], 1e-9,
			"slice-parallel sweeps over independent slices must match the sequential result")
	}
}

func TestRunRejectsInvalidPriorOrdering(t *testing.T) {
	_, orch := buildTestOptimizer(t, false, false)
	orch.Config.Recon.P = 2.5 // violates p < q
	orch.Matrix = nil
	orch.Volume = nil
	orch.Residual = nil

	_, err := orch.Run(context.Background())
	assert.ErrorIs(t, err, ErrParameter)
}

func TestRunRespectsCancellation(t *testing.T) {
	_, orch := buildTestOptimizer(t, false, false)
	orch.Config.Recon.MaxIterations = 1_000_000
	orch.Config.Recon.StopThreshold = 0 // never converges on its own

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := orch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, outcome.Iterations)
}
