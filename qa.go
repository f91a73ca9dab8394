package mbir

import (
	"math"

	"github.com/samber/lo"

	"github.com/sixy6e/go-mbir/hu"
)

// QualityInfo summarises a completed reconstruction run for inspection
// before the volume is trusted downstream, grounded on the teacher's
// QInfo (there computed from ping headers; here from the final volume and
// residual).
type QualityInfo struct {
	MinValue        float64
	MaxValue        float64
	MeanValue       float64
	RMSResidual     float64
	MaxAbsResidual  float64
	NumericWarnings int
	Iterations      int
	Converged       bool
	FinalRelChange  float64
}

// Inspect computes a QualityInfo from the outcome of a reconstruction run.
func Inspect(vol *Volume, res *Residual, outcome Outcome, numericWarnings int) QualityInfo {
	values := make([]float64, 0, vol.Nz*vol.Nx*vol.Ny)
	for z := 0; z < vol.Nz; z++ {
		values = append(values, vol.Values[z]...)
	}

	qa := QualityInfo{
		MinValue:        lo.Min(values),
		MaxValue:        lo.Max(values),
		MeanValue:       mean(values),
		Iterations:      outcome.Iterations,
		Converged:       outcome.State == Converged,
		FinalRelChange:  outcome.FinalRelativeChange,
		NumericWarnings: numericWarnings,
	}

	var sumSq, maxAbs float64
	n := 0
	for z := 0; z < len(res.Values); z++ {
		for _, e := range res.Values[z] {
			sumSq += e * e
			if a := math.Abs(e); a > maxAbs {
				maxAbs = a
			}
			n++
		}
	}
	if n > 0 {
		qa.RMSResidual = math.Sqrt(sumSq / float64(n))
	}
	qa.MaxAbsResidual = maxAbs

	return qa
}

// HounsfieldRange reports a QualityInfo's min/max/mean voxel values
// converted to Hounsfield units, given the scan's air and water reference
// attenuation coefficients (SPEC_FULL.md §10). The reconstruction core
// itself never sees Hounsfield units; this exists solely for
// human-readable reporting.
func (qa QualityInfo) HounsfieldRange(muAir, muWater float64) (minHU, maxHU, meanHU float64) {
	return hu.MuToHU(qa.MinValue, muAir, muWater),
		hu.MuToHU(qa.MaxValue, muAir, muWater),
		hu.MuToHU(qa.MeanValue, muAir, muWater)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
