package batch

import (
	"math"

	"github.com/MatweyL/Potok/internal/shared/logging"
)

// StrategicAdapter reviews the long-term trend every period tactical steps
// and moves the PID working range. At most one rule fires per review, in
// priority order: emergency contraction, degradation, grow, shrink.
type StrategicAdapter struct {
	period             int
	stabilityThreshold float64
	errorRateThreshold float64

	throughput     []float64
	errorRates     []float64
	saturated      []bool
	saturationEnds []SaturationEnd

	counter int
	pid     *TacticalPID
	logger  logging.Logger
}

// NewStrategicAdapter builds the adapter steering the given controller.
func NewStrategicAdapter(pid *TacticalPID, period int) *StrategicAdapter {
	return &StrategicAdapter{
		period:             period,
		stabilityThreshold: 0.1,
		errorRateThreshold: 0.2,
		pid:                pid,
		logger:             logging.NewComponentLogger("StrategicAdapter"),
	}
}

// Update records one tactical observation and reviews the boundaries every
// period steps. History is bounded: a review only ever looks at the newest
// period observations, so older ones are dropped.
func (a *StrategicAdapter) Update(throughput, errorRate float64, saturated bool, end SaturationEnd) {
	a.throughput = append(a.throughput, throughput)
	a.errorRates = append(a.errorRates, errorRate)
	a.saturated = append(a.saturated, saturated)
	a.saturationEnds = append(a.saturationEnds, end)
	if len(a.throughput) > a.period {
		a.throughput = a.throughput[len(a.throughput)-a.period:]
		a.errorRates = a.errorRates[len(a.errorRates)-a.period:]
		a.saturated = a.saturated[len(a.saturated)-a.period:]
		a.saturationEnds = a.saturationEnds[len(a.saturationEnds)-a.period:]
	}

	a.counter++
	if a.counter >= a.period {
		a.adapt()
		a.counter = 0
	}
}

func (a *StrategicAdapter) adapt() {
	window := a.period
	if len(a.throughput) < window {
		window = len(a.throughput)
	}
	if window < 3 {
		return
	}

	throughput := a.throughput[len(a.throughput)-window:]
	errorRates := a.errorRates[len(a.errorRates)-window:]
	ends := a.saturationEnds[len(a.saturationEnds)-window:]

	throughputMean := mean(throughput)
	throughputCV := 0.0
	if throughputMean > 0 {
		throughputCV = stddev(throughput) / throughputMean
	}
	errorMean := mean(errorRates)
	errorTrend := slope(errorRates)
	throughputTrend := slope(throughput)

	maxSaturations := 0
	minSaturations := 0
	for _, end := range ends {
		switch end {
		case SaturationMax:
			maxSaturations++
		case SaturationMin:
			minSaturations++
		}
	}

	bmin, bmax := a.pid.Boundaries()

	switch {
	case errorMean > 0.5:
		a.pid.SetBoundaries(int(float64(bmin)*0.8), int(float64(bmax)*0.7))
		a.pid.Reset()
		a.logger.Warn("emergency contraction: error rate %.2f, range [%d, %d] -> %v", errorMean, bmin, bmax, boundsOf(a.pid))
	case errorTrend > 0.01 && throughputTrend < 0:
		a.pid.SetBoundaries(bmin, int(float64(bmax)*0.9))
		a.pid.Reset()
		a.logger.Info("degradation: error trend %.4f, throughput trend %.2f, Bmax %d -> %v", errorTrend, throughputTrend, bmax, boundsOf(a.pid))
	case throughputCV < a.stabilityThreshold && float64(maxSaturations) > float64(window)*0.7 && errorMean < a.errorRateThreshold:
		a.pid.SetBoundaries(bmin, int(float64(bmax)*1.05))
		a.logger.Info("grow: saturated at max %d/%d, Bmax %d -> %v", maxSaturations, window, bmax, boundsOf(a.pid))
	case float64(minSaturations) > float64(window)*0.7:
		a.pid.SetBoundaries(int(float64(bmin)*0.9), int(float64(bmax)*0.95))
		a.logger.Info("shrink: saturated at min %d/%d, range [%d, %d] -> %v", minSaturations, window, bmin, bmax, boundsOf(a.pid))
	default:
		return
	}

	a.trimHistory()
}

// trimHistory keeps the newest two observations so the next review leans on
// post-adaptation behavior.
func (a *StrategicAdapter) trimHistory() {
	if len(a.throughput) > 2 {
		a.throughput = a.throughput[len(a.throughput)-2:]
		a.errorRates = a.errorRates[len(a.errorRates)-2:]
		a.saturated = a.saturated[len(a.saturated)-2:]
		a.saturationEnds = a.saturationEnds[len(a.saturationEnds)-2:]
	}
	a.counter = 0
}

func boundsOf(pid *TacticalPID) [2]int {
	bmin, bmax := pid.Boundaries()
	return [2]int{bmin, bmax}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// slope is the least-squares linear-regression slope of values over their
// indices.
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denominator
}
