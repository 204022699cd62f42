package batch

import "math"

// SaturationEnd names which boundary a PID step hit, if any.
type SaturationEnd string

const (
	SaturationNone SaturationEnd = ""
	SaturationMin  SaturationEnd = "min"
	SaturationMax  SaturationEnd = "max"
)

// ColdStartProber doubles the batch each step until latency, errors, or the
// absence of successes show the ceiling, then derives the PID working range
// from the last safe size.
type ColdStartProber struct {
	n                    int
	maxErrorRate         float64
	maxLatencyMultiplier float64
	baselineLatency      float64
	baselineSet          bool
	calibrated           bool
	rangeMin             int
	rangeMax             int
}

// NewColdStartProber starts probing at initialBatch.
func NewColdStartProber(initialBatch int) *ColdStartProber {
	return &ColdStartProber{
		n:                    initialBatch,
		maxErrorRate:         0.2,
		maxLatencyMultiplier: 2.0,
	}
}

// NextBatchSize returns the size to probe with next. The first observed
// latency becomes the baseline.
func (p *ColdStartProber) NextBatchSize(m SystemMetrics) int {
	if p.calibrated {
		return p.rangeMax
	}
	if !p.baselineSet {
		p.baselineLatency = m.AvgLatency
		p.baselineSet = true
		return p.n
	}

	latencyOK := m.AvgLatency < p.baselineLatency*p.maxLatencyMultiplier
	errorsOK := m.ErrorRate < p.maxErrorRate
	if latencyOK && errorsOK && m.SuccessCount > 0 {
		p.n *= 2
		return p.n
	}

	p.rangeMin = maxInt(10, p.n/4)
	p.rangeMax = p.n / 2
	p.calibrated = true
	return p.rangeMax
}

// Ready reports whether probing has finished.
func (p *ColdStartProber) Ready() bool { return p.calibrated }

// Range returns the derived (Bmin, Bmax) once probing has finished.
func (p *ColdStartProber) Range() (int, int) { return p.rangeMin, p.rangeMax }

// TacticalPID holds queue utilization at a setpoint by steering the batch
// size inside [Bmin, Bmax].
type TacticalPID struct {
	kp, ki, kd float64
	target     float64
	antiWindup float64

	integral  float64
	prevError float64

	bmin  int
	bmax  int
	bbase float64
}

// PIDParams parameterizes the tactical controller.
type PIDParams struct {
	Kp                float64
	Ki                float64
	Kd                float64
	TargetUtilization float64
	AntiWindupLimit   float64
}

// NewTacticalPID builds the controller with a placeholder range; the cold
// start prober or the strategic adapter sets the real one.
func NewTacticalPID(params PIDParams) *TacticalPID {
	c := &TacticalPID{
		kp:         params.Kp,
		ki:         params.Ki,
		kd:         params.Kd,
		target:     params.TargetUtilization,
		antiWindup: params.AntiWindupLimit,
	}
	c.SetBoundaries(100, 1000)
	return c
}

// SetBoundaries installs a new working range. Bmin never drops below 10 and
// the range never collapses below width 10.
func (c *TacticalPID) SetBoundaries(bmin, bmax int) {
	c.bmin = maxInt(10, bmin)
	c.bmax = maxInt(c.bmin+10, bmax)
	c.bbase = float64(c.bmin+c.bmax) / 2
}

// Boundaries returns the current working range.
func (c *TacticalPID) Boundaries() (int, int) { return c.bmin, c.bmax }

// Integral returns the accumulated integral term.
func (c *TacticalPID) Integral() float64 { return c.integral }

// StepInfo is the diagnostic output of one PID step.
type StepInfo struct {
	Error         float64
	Signal        float64
	Integral      float64
	Derivative    float64
	Saturated     bool
	SaturationEnd SaturationEnd
}

// Compute runs one PID step against the observed utilization with time
// delta dt seconds.
func (c *TacticalPID) Compute(utilization, dt float64) (int, StepInfo) {
	err := c.target - utilization

	c.integral += err * dt
	c.integral = clampFloat(c.integral, -c.antiWindup, c.antiWindup)

	derivative := 0.0
	if dt > 0 {
		derivative = (err - c.prevError) / dt
	}
	c.prevError = err

	u := c.kp*err + c.ki*c.integral + c.kd*derivative
	u = clampFloat(u, -0.5, 0.5)

	size := int(math.Round(clampFloat(c.bbase*(1+u), float64(c.bmin), float64(c.bmax))))

	info := StepInfo{Error: err, Signal: u, Integral: c.integral, Derivative: derivative}
	switch size {
	case c.bmax:
		info.Saturated = true
		info.SaturationEnd = SaturationMax
	case c.bmin:
		info.Saturated = true
		info.SaturationEnd = SaturationMin
	}
	return size, info
}

// Reset clears the integral and derivative memory after a boundary jump.
func (c *TacticalPID) Reset() {
	c.integral = 0
	c.prevError = 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
