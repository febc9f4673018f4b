package ecal

import "time"

// Strategy outcomes reported to Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics receives pipeline observations. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveStrategy(s Strategy, outcome string)
	ObserveRequest(status string)
	ObservePipeline(d time.Duration, events int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveStrategy(Strategy, string)   {}
func (noopMetrics) ObserveRequest(string)              {}
func (noopMetrics) ObservePipeline(time.Duration, int) {}
