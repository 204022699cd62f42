package domain

// MonitoringAlgorithm decides when a task is due for a new run. Tagged
// variant: PERIODIC repeats every Timeout seconds; SINGLE runs
// len(Timeouts)+1 times over its lifetime with cumulative intervals.
// TimeoutNoise widens either variant by uniform(-noise, +noise) seconds.
type MonitoringAlgorithm struct {
	ID           int64         `json:"id"`
	Type         AlgorithmType `json:"type"`
	Timeout      float64       `json:"timeout,omitempty"`
	Timeouts     []float64     `json:"timeouts,omitempty"`
	TimeoutNoise float64       `json:"timeout_noise,omitempty"`
}

// Periodic builds a PERIODIC algorithm.
func Periodic(timeout, noise float64) MonitoringAlgorithm {
	return MonitoringAlgorithm{Type: AlgorithmPeriodic, Timeout: timeout, TimeoutNoise: noise}
}

// Single builds a SINGLE algorithm over the given ordered timeouts.
func Single(timeouts []float64, noise float64) MonitoringAlgorithm {
	return MonitoringAlgorithm{Type: AlgorithmSingle, Timeouts: timeouts, TimeoutNoise: noise}
}
