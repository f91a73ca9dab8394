package mbir

import "math"

// ConvergenceMonitor accumulates the sum of squared voxel updates and the
// sum of squared voxel values over a sweep, and reports the relative
// percent change used as the ICD stopping criterion (spec.md §4.5).
type ConvergenceMonitor struct {
	sumDiffSq float64
	sumValSq  float64
}

// Accumulate records one voxel's update (diff = v' - v) and pre-update
// value v toward the sweep's convergence metric.
func (cm *ConvergenceMonitor) Accumulate(diff, v float64) {
	cm.sumDiffSq += diff * diff
	cm.sumValSq += v * v
}

// Merge combines another monitor's partial sums into this one. Used to
// reduce per-worker accumulators from a slice-parallel sweep after the
// pool drains.
func (cm *ConvergenceMonitor) Merge(other ConvergenceMonitor) {
	cm.sumDiffSq += other.sumDiffSq
	cm.sumValSq += other.sumValSq
}

// RelativeChange returns ell = sqrt(sum(diff^2) / sum(v^2)) * 100, the
// percent metric compared against StopThreshold.
func (cm ConvergenceMonitor) RelativeChange() float64 {
	if cm.sumValSq == 0 {
		return 0
	}
	return math.Sqrt(cm.sumDiffSq/cm.sumValSq) * 100
}

// Reset clears the accumulators ahead of the next sweep.
func (cm *ConvergenceMonitor) Reset() {
	cm.sumDiffSq = 0
	cm.sumValSq = 0
}
