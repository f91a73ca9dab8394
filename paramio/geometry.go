package paramio

import (
	"fmt"

	"github.com/sixy6e/go-mbir"
	"github.com/sixy6e/go-mbir/binaryio"
)

// ReadImageParams reads "<basename>.imgparams" into an mbir.ImageGeometry
// (spec.md §6: Nx, Ny, Nz, Deltaxy, ROIRadius).
func ReadImageParams(basename string) (mbir.ImageGeometry, error) {
	p, err := Read(basename, ".imgparams")
	if err != nil {
		return mbir.ImageGeometry{}, err
	}

	var geo mbir.ImageGeometry
	if geo.Nx, err = p.Int("nx"); err != nil {
		return mbir.ImageGeometry{}, err
	}
	if geo.Ny, err = p.Int("ny"); err != nil {
		return mbir.ImageGeometry{}, err
	}
	if geo.Nz, err = p.Int("nz"); err != nil {
		return mbir.ImageGeometry{}, err
	}
	if geo.Deltaxy, err = p.Float64("deltaxy"); err != nil {
		return mbir.ImageGeometry{}, err
	}
	if geo.ROIRadius, err = p.Float64("roiradius"); err != nil {
		return mbir.ImageGeometry{}, err
	}

	if geo.Nx < 1 || geo.Ny < 1 || geo.Nz < 1 {
		return mbir.ImageGeometry{}, fmt.Errorf("%w: Nx, Ny, Nz must be >= 1", mbir.ErrParameter)
	}
	if geo.Deltaxy <= 0 {
		return mbir.ImageGeometry{}, fmt.Errorf("%w: Deltaxy must be > 0", mbir.ErrParameter)
	}

	return geo, nil
}

// WriteImageParams writes an mbir.ImageGeometry to "<basename>.imgparams".
func WriteImageParams(basename string, geo mbir.ImageGeometry) error {
	params := Params{
		"nx":        fmt.Sprint(geo.Nx),
		"ny":        fmt.Sprint(geo.Ny),
		"nz":        fmt.Sprint(geo.Nz),
		"deltaxy":   fmt.Sprint(geo.Deltaxy),
		"roiradius": fmt.Sprint(geo.ROIRadius),
	}
	return Write(basename, ".imgparams", []string{"nx", "ny", "nz", "deltaxy", "roiradius"}, params)
}

// ReadSinoParams reads "<basename>.sinoparams" plus the companion
// "<basename>.ViewAngles" binary file into an mbir.SinoGeometry
// (spec.md §6).
func ReadSinoParams(basename string) (mbir.SinoGeometry, error) {
	p, err := Read(basename, ".sinoparams")
	if err != nil {
		return mbir.SinoGeometry{}, err
	}

	var geo mbir.SinoGeometry
	if geo.NChannels, err = p.Int("nchannels"); err != nil {
		return mbir.SinoGeometry{}, err
	}
	if geo.DeltaChannel, err = p.Float64("deltachannel"); err != nil {
		return mbir.SinoGeometry{}, err
	}
	if geo.CenterOffset, err = p.Float64("centeroffset"); err != nil {
		return mbir.SinoGeometry{}, err
	}
	if geo.NViews, err = p.Int("nviews"); err != nil {
		return mbir.SinoGeometry{}, err
	}

	if geo.NChannels < 1 {
		return mbir.SinoGeometry{}, fmt.Errorf("%w: NChannels must be >= 1", mbir.ErrParameter)
	}
	if geo.DeltaChannel <= 0 {
		return mbir.SinoGeometry{}, fmt.Errorf("%w: DeltaChannel must be > 0", mbir.ErrParameter)
	}
	if geo.NViews < 1 {
		return mbir.SinoGeometry{}, fmt.Errorf("%w: NViews must be >= 1", mbir.ErrParameter)
	}

	geo.ViewAngles, err = ReadViewAngles(basename, geo.NViews)
	if err != nil {
		return mbir.SinoGeometry{}, err
	}

	return geo, nil
}

// WriteSinoParams writes an mbir.SinoGeometry's scalar fields to
// "<basename>.sinoparams" and its view angles to "<basename>.ViewAngles".
func WriteSinoParams(basename string, geo mbir.SinoGeometry) error {
	params := Params{
		"nchannels":    fmt.Sprint(geo.NChannels),
		"deltachannel": fmt.Sprint(geo.DeltaChannel),
		"centeroffset": fmt.Sprint(geo.CenterOffset),
		"nviews":       fmt.Sprint(geo.NViews),
	}
	keys := []string{"nchannels", "deltachannel", "centeroffset", "nviews"}
	if err := Write(basename, ".sinoparams", keys, params); err != nil {
		return err
	}
	return WriteViewAngles(basename, geo.ViewAngles)
}

// ReadViewAngles reads "<basename>.ViewAngles": nViews little-endian
// float64 angles in radians (spec.md §6).
func ReadViewAngles(basename string, nViews int) ([]float64, error) {
	return binaryio.ReadFloats64LE(basename+".ViewAngles", nViews)
}

// WriteViewAngles writes angles as little-endian float64 to
// "<basename>.ViewAngles".
func WriteViewAngles(basename string, angles []float64) error {
	return binaryio.WriteFloats64LE(basename+".ViewAngles", angles)
}

// ReadReconParams reads "<basename>.reconparams" into an
// mbir.ReconParams (spec.md §3/§6).
func ReadReconParams(basename string) (mbir.ReconParams, error) {
	p, err := Read(basename, ".reconparams")
	if err != nil {
		return mbir.ReconParams{}, err
	}

	var rp mbir.ReconParams
	get := func(key string, dst *float64) {
		if err == nil {
			*dst, err = p.Float64(key)
		}
	}
	get("p", &rp.P)
	get("q", &rp.Q)
	get("t", &rp.T)
	get("sigmax", &rp.SigmaX)
	get("b_nearest", &rp.BNearest)
	get("b_diag", &rp.BDiag)
	get("b_interslice", &rp.BInterslice)
	get("stopthreshold", &rp.StopThreshold)
	get("initimagevalue", &rp.InitImageValue)
	if err != nil {
		return mbir.ReconParams{}, err
	}

	if rp.Positivity, err = p.Bool("positivity"); err != nil {
		return mbir.ReconParams{}, err
	}
	if rp.MaxIterations, err = p.Int("maxiterations"); err != nil {
		return mbir.ReconParams{}, err
	}

	if rp.P <= 0 || rp.P >= rp.Q || rp.Q > 2 {
		return mbir.ReconParams{}, fmt.Errorf("%w: require 0 < p < q <= 2", mbir.ErrParameter)
	}
	if rp.T <= 0 || rp.SigmaX <= 0 {
		return mbir.ReconParams{}, fmt.Errorf("%w: T and SigmaX must be > 0", mbir.ErrParameter)
	}

	return rp, nil
}
