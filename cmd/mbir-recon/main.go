// Command mbir-recon runs an ICD reconstruction from a sinogram, weights,
// and a (possibly previously computed) system matrix, split out of the
// teacher's single cmd/main.go into one binary per operation (spec.md §6).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbir"
	"github.com/sixy6e/go-mbir/binaryio"
	"github.com/sixy6e/go-mbir/checkpoint"
	"github.com/sixy6e/go-mbir/paramio"
)

func runRecon(cCtx *cli.Context) error {
	basename := cCtx.String("basename")
	outBasename := cCtx.String("out-basename")
	if outBasename == "" {
		outBasename = basename + "_recon"
	}

	log.Println("Reading parameters:", basename)
	imageGeo, err := paramio.ReadImageParams(basename)
	if err != nil {
		return err
	}
	sinoGeo, err := paramio.ReadSinoParams(basename)
	if err != nil {
		return err
	}
	reconParams, err := paramio.ReadReconParams(basename)
	if err != nil {
		return err
	}

	nMeasurements := sinoGeo.NViews * sinoGeo.NChannels

	log.Println("Reading sinogram and weights")
	y, err := binaryio.ReadSinogram(basename, imageGeo.Nz, nMeasurements)
	if err != nil {
		return err
	}
	w, err := binaryio.ReadWeights(basename, imageGeo.Nz, nMeasurements)
	if err != nil {
		return err
	}

	model := mbir.NarrowBeam
	if cCtx.Bool("wide-beam") {
		model = mbir.WideBeam
	}

	cfg := mbir.Config{
		Sino:             sinoGeo,
		Image:            imageGeo,
		Recon:            reconParams,
		Y:                y,
		W:                w,
		Model:            model,
		LenPix:           cCtx.Int("len-pix"),
		LenDet:           cCtx.Int("len-det"),
		EdgePolicy:       mbir.WrapAround,
		SysMatrixWorkers: cCtx.Int("sysmat-workers"),
		SliceWorkers:     cCtx.Int("slice-workers"),
		RandomOrder:      cCtx.Bool("random-order"),
		Seed:             cCtx.Int64("seed"),
	}

	orch, err := mbir.NewOrchestrator(cfg)
	if err != nil {
		return err
	}

	if sysmatURI := cCtx.String("sysmatrix"); sysmatURI != "" {
		log.Println("Reading precomputed system matrix:", sysmatURI)
		matrix, err := binaryio.ReadSystemMatrix(sysmatURI)
		if err != nil {
			return err
		}
		orch.Matrix = matrix
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcome, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	log.Println("Writing reconstructed volume:", outBasename)
	if err := binaryio.WriteImage(outBasename, orch.Volume); err != nil {
		return err
	}

	summary := mbir.Summarize(orch.Volume, orch.Residual, outcome, outcome.NumericErrors)
	log.Printf("reconstruction finished: state=%s iterations=%d rms_residual=%.6g",
		summary.FinalState, summary.Iterations, summary.RMSResidual)

	if cCtx.IsSet("mu-water") {
		qa := mbir.Inspect(orch.Volume, orch.Residual, outcome, outcome.NumericErrors)
		minHU, maxHU, meanHU := qa.HounsfieldRange(cCtx.Float64("mu-air"), cCtx.Float64("mu-water"))
		log.Printf("Hounsfield range: min=%.1f max=%.1f mean=%.1f", minHU, maxHU, meanHU)
	}

	if _, err := mbir.WriteJSON(outBasename+"-summary.json", cCtx.String("config-uri"), summary); err != nil {
		return err
	}

	if checkpointURI := cCtx.String("checkpoint-uri"); checkpointURI != "" {
		log.Println("Writing checkpoint:", checkpointURI)
		if err := checkpoint.WriteVolume(checkpointURI, cCtx.String("config-uri"), orch.Volume, outcome.Iterations, outcome.FinalRelativeChange); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	app := &cli.App{
		Name:  "mbir-recon",
		Usage: "run an ICD reconstruction of a parallel-beam CT sinogram",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "basename", Usage: "parameter/data basename", Required: true},
			&cli.StringFlag{Name: "out-basename", Usage: "output image basename; defaults to <basename>_recon"},
			&cli.StringFlag{Name: "sysmatrix", Usage: "basename of a precomputed system matrix; rebuilt if empty"},
			&cli.StringFlag{Name: "checkpoint-uri", Usage: "TileDB array URI to checkpoint the final volume to"},
			&cli.StringFlag{Name: "config-uri", Usage: "TileDB config file URI for object-store access"},
			&cli.IntFlag{Name: "len-pix", Value: mbir.DefaultLenPix},
			&cli.IntFlag{Name: "len-det", Value: mbir.DefaultLenDet},
			&cli.BoolFlag{Name: "wide-beam"},
			&cli.IntFlag{Name: "sysmat-workers", Usage: "<=1 builds system-matrix columns sequentially"},
			&cli.IntFlag{Name: "slice-workers", Usage: "<=1 sweeps slices sequentially"},
			&cli.BoolFlag{Name: "random-order", Usage: "use a seeded random voxel sweep order instead of raster order"},
			&cli.Int64Flag{Name: "seed", Usage: "seed for --random-order"},
			&cli.Float64Flag{Name: "mu-air", Usage: "air attenuation coefficient for Hounsfield-unit reporting"},
			&cli.Float64Flag{Name: "mu-water", Usage: "water attenuation coefficient; setting this enables Hounsfield-unit reporting"},
		},
		Action: runRecon,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
