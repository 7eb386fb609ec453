package allocator

// Metrics summarizes one allocation run for comparison purposes
type Metrics struct {
	UtilizationRate                float64
	RequestsSatisfied              int
	ObjectiveValue                 float64
	RoomsUtilized                  int
	AverageIdleProbabilityUtilized float64
	FairnessMetric                 float64
}

// MetricsDelta is the field-by-field difference between a simulated run and
// its baseline, computed as simulated minus baseline
type MetricsDelta struct {
	UtilizationRate                float64
	RequestsSatisfied              int
	ObjectiveValue                 float64
	RoomsUtilized                  int
	AverageIdleProbabilityUtilized float64
	FairnessMetric                 float64
}

// Delta computes simulated minus baseline for every metric
func Delta(baseline, simulated Metrics) MetricsDelta {
	return MetricsDelta{
		UtilizationRate:                simulated.UtilizationRate - baseline.UtilizationRate,
		RequestsSatisfied:              simulated.RequestsSatisfied - baseline.RequestsSatisfied,
		ObjectiveValue:                 simulated.ObjectiveValue - baseline.ObjectiveValue,
		RoomsUtilized:                  simulated.RoomsUtilized - baseline.RoomsUtilized,
		AverageIdleProbabilityUtilized: simulated.AverageIdleProbabilityUtilized - baseline.AverageIdleProbabilityUtilized,
		FairnessMetric:                 simulated.FairnessMetric - baseline.FairnessMetric,
	}
}
