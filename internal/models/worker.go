package models

import "time"

type WorkerStatus string

const (
	WorkerStatusOnline  WorkerStatus = "online"
	WorkerStatusOffline WorkerStatus = "offline"
)

// Worker is a remote load-test agent known to the coordinator.
type Worker struct {
	ID            string       `json:"worker_id"`
	Address       string       `json:"address"`
	Label         string       `json:"label,omitempty"`
	Status        WorkerStatus `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	CreatedAt     time.Time    `json:"created_at"`
}
