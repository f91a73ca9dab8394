package mbir

import (
	"context"
	"fmt"
	"log"
)

// Config collects everything an Orchestrator needs to run a reconstruction
// end to end: acquisition and volume geometry, reconstruction parameters,
// and the concurrency/reproducibility knobs of spec.md §5.
type Config struct {
	Sino   SinoGeometry
	Image  ImageGeometry
	Recon  ReconParams
	Y      [][]float64 // [Nz][NViews*NChannels] measurements
	W      [][]float64 // [Nz][NViews*NChannels] weights

	Model      BeamModel
	LenPix     int
	LenDet     int
	EdgePolicy EdgePolicy

	SysMatrixWorkers int // column-build parallelism; <=1 is sequential
	SliceWorkers     int // slice-sweep parallelism; <=1 is sequential
	RandomOrder      bool
	Seed             int64
}

// Orchestrator wires the geometry profile table, system-matrix builder,
// residual/volume initialisation, and ICD optimizer into a single
// reconstruction run (spec.md §2).
type Orchestrator struct {
	Config Config

	Matrix   *SystemMatrix
	Residual *Residual
	Volume   *Volume
}

// NewOrchestrator validates cfg and prepares an Orchestrator. It does not
// build the system matrix or initialise the residual; call Run for that.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Image.Nx < 1 || cfg.Image.Ny < 1 || cfg.Image.Nz < 1 {
		return nil, fmt.Errorf("%w: image geometry Nx, Ny, Nz must be >= 1", ErrParameter)
	}
	if len(cfg.Y) != cfg.Image.Nz || len(cfg.W) != cfg.Image.Nz {
		return nil, fmt.Errorf("%w: Y and W must have Nz=%d slices", ErrArgument, cfg.Image.Nz)
	}
	return &Orchestrator{Config: cfg}, nil
}

// Run builds the system matrix (if not already built), initialises the
// volume and residual, and drives the ICD optimizer to completion.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	cfg := o.Config

	if o.Matrix == nil {
		log.Println("Building detector-pixel profile table")
		table := BuildProfileTable(cfg.Sino, cfg.Image.Deltaxy, cfg.LenPix)

		bc := NewBuilderContext(cfg.Sino, cfg.Image, table, cfg.Model, cfg.LenDet)

		matrix, err := BuildSystemMatrix(bc, cfg.SysMatrixWorkers)
		if err != nil {
			return Outcome{}, err
		}
		o.Matrix = matrix
	}

	if o.Volume == nil {
		o.Volume = NewVolume(cfg.Image.Nx, cfg.Image.Ny, cfg.Image.Nz, cfg.Recon.InitImageValue)
	}

	if o.Residual == nil {
		nMeasurements := cfg.Sino.NViews * cfg.Sino.NChannels
		o.Residual = NewResidual(cfg.Image.Nz, nMeasurements)
		log.Println("Initializing residual from volume and measurements")
		o.Residual.Init(o.Matrix, cfg.Y, o.Volume)
	}

	neighbors := NeighborhoodExtractor{Nx: cfg.Image.Nx, Ny: cfg.Image.Ny, Nz: cfg.Image.Nz, Policy: cfg.EdgePolicy}
	prior := QGGMRFParams{P: cfg.Recon.P, Q: cfg.Recon.Q, T: cfg.Recon.T, SigmaX: cfg.Recon.SigmaX}

	optimizer := &ICDOptimizer{
		A:              o.Matrix,
		Residual:       o.Residual,
		Volume:         o.Volume,
		Weights:        cfg.W,
		Params:         cfg.Recon,
		Neighbors:      neighbors,
		Prior:          prior,
		RandomOrder:    cfg.RandomOrder,
		Seed:           cfg.Seed,
		ParallelSlices: cfg.SliceWorkers > 1,
		Workers:        cfg.SliceWorkers,
	}

	log.Println("Starting ICD reconstruction")
	return optimizer.Run(ctx)
}
