package models

import "time"

// ResultRecord holds the metrics one worker reported for one task.
// Workers submit it incrementally; it is terminal once Status reaches
// completed, failed or stopped.
type ResultRecord struct {
	TaskID          string           `json:"task_id"`
	WorkerID        string           `json:"worker_id"`
	PacketsSent     int64            `json:"packets_sent"`
	PacketsReceived int64            `json:"packets_received"`
	PacketLossRate  float64          `json:"packet_loss_rate"`
	AvgResponseTime float64          `json:"avg_response_time"`
	MinResponseTime float64          `json:"min_response_time"`
	MaxResponseTime float64          `json:"max_response_time"`
	Status          AssignmentStatus `json:"status"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ResultUpdate is a sparse result submission: only non-nil fields are
// applied to the stored record.
type ResultUpdate struct {
	Status          *AssignmentStatus `json:"status,omitempty"`
	PacketsSent     *int64            `json:"packets_sent,omitempty"`
	PacketsReceived *int64            `json:"packets_received,omitempty"`
	PacketLossRate  *float64          `json:"packet_loss_rate,omitempty"`
	AvgResponseTime *float64          `json:"avg_response_time,omitempty"`
	MinResponseTime *float64          `json:"min_response_time,omitempty"`
	MaxResponseTime *float64          `json:"max_response_time,omitempty"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u ResultUpdate) Empty() bool {
	return u.Status == nil && u.PacketsSent == nil && u.PacketsReceived == nil &&
		u.PacketLossRate == nil && u.AvgResponseTime == nil && u.MinResponseTime == nil &&
		u.MaxResponseTime == nil && u.ErrorMessage == nil
}
