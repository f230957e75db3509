package prediction

import "time"

// Log is one served prediction, kept for auditing model behaviour
type Log struct {
	Timestamp     time.Time `ch:"timestamp"`
	BundleVersion string    `ch:"bundle_version"`
	City          string    `ch:"city"`
	AgeGroup      string    `ch:"age_group"`
	Gender        string    `ch:"gender"`
	TimeOfDay     string    `ch:"time_of_day"`
	Month         string    `ch:"month"`
	DayOfWeek     string    `ch:"day_of_week"`
	Predicted     string    `ch:"predicted"`
	Confidence    float64   `ch:"confidence"`
	LatencyMicros uint32    `ch:"latency_us"`
}

// CityStat aggregates served predictions per city
type CityStat struct {
	City          string  `ch:"city"`
	Predictions   uint64  `ch:"predictions"`
	AvgConfidence float64 `ch:"avg_confidence"`
}
