package batch

import (
	"context"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// Phase names the lifecycle stage of the adaptive controller.
type Phase string

const (
	PhaseColdStart   Phase = "COLD_START"
	PhaseCalibration Phase = "CALIBRATION"
	PhaseOperational Phase = "OPERATIONAL"
)

const stateHistoryLimit = 100

// ControllerState is the per-step diagnostic snapshot of the adaptive
// provider.
type ControllerState struct {
	Time          time.Time
	Phase         Phase
	BatchSize     int
	Bmin          int
	Bmax          int
	Utilization   float64
	Error         float64
	Integral      float64
	Quality       float64
	Saturated     bool
	SaturationEnd SaturationEnd
}

// AdaptivePIDParams parameterizes the two-tier controller.
type AdaptivePIDParams struct {
	PID              PIDParams
	InitialBatch     int
	AdaptationPeriod int
}

// AdaptivePID combines a cold start prober, a tactical PID loop, and a
// strategic boundary adapter. Probing finds a safe working range, the PID
// tracks target utilization inside it, and once past calibration the
// strategic tier moves the range itself.
type AdaptivePID struct {
	runs    WaitingLister
	metrics MetricSource
	logger  logging.Logger

	phase      Phase
	prober     *ColdStartProber
	tactical   *TacticalPID
	strategic  *StrategicAdapter
	iterations int

	now      func() time.Time
	lastStep time.Time

	states      []ControllerState
	quality     []float64
	throughputs []float64
}

// NewAdaptivePID builds the provider in the cold start phase.
func NewAdaptivePID(runs WaitingLister, metrics MetricSource, params AdaptivePIDParams) *AdaptivePID {
	tactical := NewTacticalPID(params.PID)
	return &AdaptivePID{
		runs:      runs,
		metrics:   metrics,
		logger:    logging.NewComponentLogger("AdaptivePIDBatchProvider"),
		phase:     PhaseColdStart,
		prober:    NewColdStartProber(params.InitialBatch),
		tactical:  tactical,
		strategic: NewStrategicAdapter(tactical, params.AdaptationPeriod),
		now:       time.Now,
	}
}

func (p *AdaptivePID) NextBatch(ctx context.Context) ([]domain.TaskRun, error) {
	m, err := p.metrics.SystemMetrics(ctx)
	if err != nil {
		return nil, err
	}
	size := p.step(m)
	return p.runs.ListWaitingRuns(ctx, size)
}

// Phase returns the current lifecycle stage.
func (p *AdaptivePID) Phase() Phase { return p.phase }

// States returns the recorded step snapshots, newest last.
func (p *AdaptivePID) States() []ControllerState { return p.states }

func (p *AdaptivePID) step(m SystemMetrics) int {
	at := p.now()
	dt := 0.0
	if !p.lastStep.IsZero() {
		dt = at.Sub(p.lastStep).Seconds()
	}
	p.lastStep = at

	if p.phase == PhaseColdStart {
		size := p.prober.NextBatchSize(m)
		if p.prober.Ready() {
			bmin, bmax := p.prober.Range()
			p.tactical.SetBoundaries(bmin, bmax)
			p.phase = PhaseCalibration
			p.logger.Info("cold start done, range [%d, %d]", bmin, bmax)
		}
		p.record(ControllerState{Time: at, Phase: PhaseColdStart, BatchSize: size, Quality: p.trackQuality(m)})
		return size
	}

	utilization := 0.0
	if m.QueueCapacity > 0 {
		utilization = float64(m.QueueDepth) / float64(m.QueueCapacity)
	}
	size, info := p.tactical.Compute(utilization, dt)

	p.iterations++
	if p.phase == PhaseCalibration && p.iterations > 5 {
		p.phase = PhaseOperational
		p.logger.Info("calibration done after %d iterations", p.iterations)
	}
	if p.phase == PhaseOperational {
		p.strategic.Update(m.Throughput, m.ErrorRate, info.Saturated, info.SaturationEnd)
	}

	bmin, bmax := p.tactical.Boundaries()
	p.record(ControllerState{
		Time:          at,
		Phase:         p.phase,
		BatchSize:     size,
		Bmin:          bmin,
		Bmax:          bmax,
		Utilization:   utilization,
		Error:         info.Error,
		Integral:      info.Integral,
		Quality:       p.trackQuality(m),
		Saturated:     info.Saturated,
		SaturationEnd: info.SaturationEnd,
	})
	return size
}

func (p *AdaptivePID) record(state ControllerState) {
	p.states = append(p.states, state)
	if len(p.states) > stateHistoryLimit {
		p.states = p.states[len(p.states)-stateHistoryLimit:]
	}
}

// trackQuality scores the current step and remembers it for the stability
// check. Throughput is normalized against the best recent throughput,
// latency against a 3 second target, and a high error rate discounts the
// whole score quadratically.
func (p *AdaptivePID) trackQuality(m SystemMetrics) float64 {
	maxThroughput := m.Throughput
	for _, t := range p.throughputs {
		if t > maxThroughput {
			maxThroughput = t
		}
	}
	throughputNorm := 0.0
	if maxThroughput > 0 {
		throughputNorm = m.Throughput / maxThroughput
	}
	latencyNorm := 1 - m.AvgLatency/3
	if latencyNorm < 0 {
		latencyNorm = 0
	}
	queueFill := 0.0
	if m.QueueCapacity > 0 {
		queueFill = float64(m.QueueDepth) / float64(m.QueueCapacity)
	}

	quality := 0.4*throughputNorm + 0.3*(1-m.ErrorRate) + 0.2*latencyNorm + 0.1*(1-queueFill)
	if m.ErrorRate > 0.2 {
		penalty := (1 - m.ErrorRate) / 0.8
		quality *= penalty * penalty
	}
	quality = clampFloat(quality, 0, 1)

	p.quality = append(p.quality, quality)
	if len(p.quality) > stateHistoryLimit {
		p.quality = p.quality[len(p.quality)-stateHistoryLimit:]
	}
	p.throughputs = append(p.throughputs, m.Throughput)
	if len(p.throughputs) > stateHistoryLimit {
		p.throughputs = p.throughputs[len(p.throughputs)-stateHistoryLimit:]
	}
	return quality
}

// Stable reports whether the last ten quality scores vary by less than 10%.
func (p *AdaptivePID) Stable() bool {
	if len(p.quality) < 10 {
		return false
	}
	recent := p.quality[len(p.quality)-10:]
	m := mean(recent)
	if m == 0 {
		return false
	}
	return stddev(recent)/m < 0.1
}
