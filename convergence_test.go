package mbir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelativeChangeZeroWhenNoSignal(t *testing.T) {
	var cm ConvergenceMonitor
	assert.Equal(t, 0.0, cm.RelativeChange())
}

func TestRelativeChangeComputation(t *testing.T) {
	var cm ConvergenceMonitor
	cm.Accumulate(1, 10) // diff=1, v=10
	cm.Accumulate(2, 20) // diff=2, v=20
	// sumDiffSq = 1+4=5, sumValSq=100+400=500
	// relative change = sqrt(5/500)*100 = sqrt(0.01)*100 = 10
	assert.InDelta(t, 10.0, cm.RelativeChange(), 1e-9)
}

func TestMergeSumsAccumulators(t *testing.T) {
	var a, b ConvergenceMonitor
	a.Accumulate(1, 10)
	b.Accumulate(2, 20)

	a.Merge(b)
	assert.Equal(t, 1.0+4.0, a.sumDiffSq)
	assert.Equal(t, 100.0+400.0, a.sumValSq)
}

func TestResetClearsAccumulators(t *testing.T) {
	var cm ConvergenceMonitor
	cm.Accumulate(5, 5)
	cm.Reset()
	assert.Equal(t, 0.0, cm.RelativeChange())
}
