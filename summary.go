package mbir

// ReconSummary captures the spatial and iteration extent of a completed
// reconstruction run, grounded on the teacher's SwathBathySummary (there a
// geometric/temporal extent over swath pings; here a geometric/iteration
// extent over a reconstructed volume).
type ReconSummary struct {
	Nx, Ny, Nz     int
	Iterations     int
	FinalState     State
	MinValue       float64
	MaxValue       float64
	RMSResidual    float64
	MaxAbsResidual float64
}

// Summarize builds a ReconSummary from a completed run's volume, residual,
// and outcome.
func Summarize(vol *Volume, res *Residual, outcome Outcome, numericWarnings int) ReconSummary {
	qa := Inspect(vol, res, outcome, numericWarnings)
	return ReconSummary{
		Nx:             vol.Nx,
		Ny:             vol.Ny,
		Nz:             vol.Nz,
		Iterations:     outcome.Iterations,
		FinalState:     outcome.State,
		MinValue:       qa.MinValue,
		MaxValue:       qa.MaxValue,
		RMSResidual:    qa.RMSResidual,
		MaxAbsResidual: qa.MaxAbsResidual,
	}
}
