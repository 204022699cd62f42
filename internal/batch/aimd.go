package batch

import (
	"context"
	"math"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// AIMD grows the batch additively while the window success ratio stays high
// and shrinks it multiplicatively when the ratio collapses, congestion-
// avoidance style.
type AIMD struct {
	runs    WaitingLister
	metrics MetricSource
	logger  logging.Logger

	delta float64
	beta  float64
	size  float64
	min   int
	max   int
}

// AIMDParams parameterizes the controller.
type AIMDParams struct {
	Delta    float64 // additive increase per step
	Beta     float64 // multiplicative decrease factor, in (0, 1)
	BaseSize float64
	MinSize  int
	MaxSize  int
}

// NewAIMD builds the provider starting at the base size.
func NewAIMD(runs WaitingLister, metrics MetricSource, params AIMDParams) *AIMD {
	return &AIMD{
		runs:    runs,
		metrics: metrics,
		logger:  logging.NewComponentLogger("AIMDBatchProvider"),
		delta:   params.Delta,
		beta:    params.Beta,
		size:    clampFloat(params.BaseSize, float64(params.MinSize), float64(params.MaxSize)),
		min:     params.MinSize,
		max:     params.MaxSize,
	}
}

func (a *AIMD) NextBatch(ctx context.Context) ([]domain.TaskRun, error) {
	m, err := a.metrics.SystemMetrics(ctx)
	if err != nil {
		return nil, err
	}
	a.adjust(m)
	return a.runs.ListWaitingRuns(ctx, a.Size())
}

// Size is the current batch size, floored.
func (a *AIMD) Size() int {
	return int(math.Floor(a.size))
}

func (a *AIMD) adjust(m SystemMetrics) {
	total := m.SuccessCount + m.ErrorCount
	ratio := 0.0
	if total > 0 {
		ratio = float64(m.SuccessCount) / float64(total)
	}
	switch {
	case ratio >= 0.85:
		a.size += a.delta
	case ratio < 0.70:
		a.size *= a.beta
	}
	a.size = clampFloat(a.size, float64(a.min), float64(a.max))
	a.logger.Debug("success ratio %.2f over %d outcomes, batch size %d", ratio, total, a.Size())
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
