package models

import "time"

// ProbeSample is one coordinator-side reachability measurement for a
// task. Samples are append-only; a loss sample has a nil ResponseTime.
type ProbeSample struct {
	ID             int64     `json:"id"`
	TaskID         string    `json:"task_id"`
	ResponseTimeMs *float64  `json:"response_time_ms"`
	Loss           bool      `json:"loss"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ProbeStats aggregates the persisted samples of one task. Latency
// figures cover successful samples only; LossRate counts every sample.
type ProbeStats struct {
	AvgResponseTime float64 `json:"avg_response_time"`
	MinResponseTime float64 `json:"min_response_time"`
	MaxResponseTime float64 `json:"max_response_time"`
	LossRate        float64 `json:"loss_rate"`
	SampleCount     int     `json:"sample_count"`
}
