package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusStopped   TaskStatus = "stopped"
)

type Protocol string

const (
	ProtocolTCP  Protocol = "TCP"
	ProtocolUDP  Protocol = "UDP"
	ProtocolICMP Protocol = "ICMP"
)

// ParseProtocol normalizes a protocol name, case-insensitively.
func ParseProtocol(s string) (Protocol, bool) {
	switch p := Protocol(strings.ToUpper(s)); p {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP:
		return p, true
	default:
		return "", false
	}
}

// Task is one network test fanned out to a fixed set of workers.
// The target descriptor and AssignedWorkers are immutable after creation;
// only Status and UpdatedAt change afterwards.
type Task struct {
	ID               string     `json:"task_id"`
	TargetAddress    string     `json:"target_address"`
	TargetPort       int        `json:"target_port"`
	Protocol         Protocol   `json:"protocol"`
	PayloadSize      int        `json:"payload_size"`
	ConcurrencyLevel int        `json:"concurrency_level"`
	DurationSeconds  int        `json:"duration_seconds"`
	AssignedWorkers  []string   `json:"assigned_workers"`
	Status           TaskStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TaskDescriptor is the subset of Task a worker needs to run the test.
type TaskDescriptor struct {
	TaskID           string   `json:"task_id"`
	TargetAddress    string   `json:"target_address"`
	TargetPort       int      `json:"target_port"`
	Protocol         Protocol `json:"protocol"`
	PayloadSize      int      `json:"payload_size"`
	ConcurrencyLevel int      `json:"concurrency_level"`
	DurationSeconds  int      `json:"duration_seconds"`
}

func (t *Task) Descriptor() TaskDescriptor {
	return TaskDescriptor{
		TaskID:           t.ID,
		TargetAddress:    t.TargetAddress,
		TargetPort:       t.TargetPort,
		Protocol:         t.Protocol,
		PayloadSize:      t.PayloadSize,
		ConcurrencyLevel: t.ConcurrencyLevel,
		DurationSeconds:  t.DurationSeconds,
	}
}

func NewTaskID() string {
	return uuid.New().String()
}

type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusRunning   AssignmentStatus = "running"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	AssignmentStatusFailed    AssignmentStatus = "failed"
	AssignmentStatusStopped   AssignmentStatus = "stopped"
)

// Terminal reports whether no further worker updates are expected.
func (s AssignmentStatus) Terminal() bool {
	switch s {
	case AssignmentStatusCompleted, AssignmentStatusFailed, AssignmentStatusStopped:
		return true
	}
	return false
}

// Assignment is the per-worker delivery record for a task.
type Assignment struct {
	TaskID    string           `json:"task_id"`
	WorkerID  string           `json:"worker_id"`
	Status    AssignmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
