// Command mbir-sysmat builds and writes the sparse system matrix for a
// sinogram/image geometry pair, split out of the teacher's single
// cmd/main.go into one binary per operation (spec.md §6).
package main

import (
	"errors"
	"log"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbir"
	"github.com/sixy6e/go-mbir/binaryio"
	"github.com/sixy6e/go-mbir/paramio"
)

func buildSysMatrix(basename string, lenPix, lenDet, workers int, wideBeam bool) error {
	log.Println("Reading image and sinogram parameters:", basename)
	imageGeo, err := paramio.ReadImageParams(basename)
	if err != nil {
		return err
	}
	sinoGeo, err := paramio.ReadSinoParams(basename)
	if err != nil {
		return err
	}

	model := mbir.NarrowBeam
	if wideBeam {
		model = mbir.WideBeam
	}

	log.Println("Computing detector-pixel profile table")
	table := mbir.BuildProfileTable(sinoGeo, imageGeo.Deltaxy, lenPix)
	bc := mbir.NewBuilderContext(sinoGeo, imageGeo, table, model, lenDet)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	matrix, err := mbir.BuildSystemMatrix(bc, workers)
	if err != nil {
		return err
	}

	log.Println("Writing system matrix:", basename+".2Dsysmatrix")
	return binaryio.WriteSystemMatrix(basename, matrix)
}

func main() {
	app := &cli.App{
		Name:  "mbir-sysmat",
		Usage: "compute the sparse system matrix for a parallel-beam CT geometry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "basename",
				Usage:    "basename shared by <basename>.imgparams and <basename>.sinoparams",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "len-pix",
				Usage: "detector-pixel profile table discretisation",
				Value: mbir.DefaultLenPix,
			},
			&cli.IntFlag{
				Name:  "len-det",
				Usage: "sub-elements per channel aperture in wide-beam mode",
				Value: mbir.DefaultLenDet,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "column-build worker pool size; 0 uses the number of CPUs",
			},
			&cli.BoolFlag{
				Name:  "wide-beam",
				Usage: "use wide-beam sub-element integration instead of narrow-beam sampling",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return buildSysMatrix(
				cCtx.String("basename"),
				cCtx.Int("len-pix"),
				cCtx.Int("len-det"),
				cCtx.Int("workers"),
				cCtx.Bool("wide-beam"),
			)
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, mbir.ErrGeometryInconsistency) {
			log.Fatal("geometry inconsistency: ", err)
		}
		log.Fatal(err)
	}
}
