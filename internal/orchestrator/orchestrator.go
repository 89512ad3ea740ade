package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/distnet/coordinator/internal/models"
)

// Defaults applied to task descriptors when the request leaves the
// field unset, matching the worker agents' expectations.
const (
	DefaultPayloadSize      = 64
	DefaultConcurrencyLevel = 100
	DefaultDurationSeconds  = 30
)

// TaskStore is the slice of the persistent store the orchestrator owns
// for task and assignment rows.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, taskID string) (*models.Task, error)
	List(ctx context.Context, limit, offset int) ([]*models.Task, error)
	PendingForWorker(ctx context.Context, workerID string) ([]models.TaskDescriptor, error)
	Assignments(ctx context.Context, taskID string) ([]models.Assignment, error)
	SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error
	Stop(ctx context.Context, taskID string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountCreatedToday(ctx context.Context) (int, error)
}

// ResultStore writes per-worker result records on the orchestrator's
// behalf; workers only ever submit deltas through SubmitResult.
type ResultStore interface {
	ApplyUpdate(ctx context.Context, taskID, workerID string, upd models.ResultUpdate) error
	ListForTask(ctx context.Context, taskID string) ([]models.ResultRecord, error)
}

// WorkerDirectory resolves the live fleet; implemented by the registry.
type WorkerDirectory interface {
	OnlineWorkerIDs(ctx context.Context) ([]string, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

// MonitorManager drives the coordinator-side probe loops.
type MonitorManager interface {
	Start(taskID, targetAddress string, targetPort int, protocol models.Protocol, duration time.Duration) bool
	Stop(taskID string)
	IsActive(taskID string) bool
}

// Publisher broadcasts task lifecycle events. May be nil.
type Publisher interface {
	TaskEvent(ctx context.Context, taskID string, status models.TaskStatus)
}

// Orchestrator owns the task lifecycle: creation and fan-out, pending
// delivery, result ingestion, aggregate completion and cancellation.
type Orchestrator struct {
	tasks     TaskStore
	results   ResultStore
	workers   WorkerDirectory
	monitors  MonitorManager
	publisher Publisher
	policy    CompletionPolicy
	log       *slog.Logger
}

func New(tasks TaskStore, results ResultStore, workers WorkerDirectory, monitors MonitorManager, publisher Publisher, policy CompletionPolicy, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		tasks:     tasks,
		results:   results,
		workers:   workers,
		monitors:  monitors,
		publisher: publisher,
		policy:    policy,
		log:       log,
	}
}

type CreateTaskRequest struct {
	TargetAddress    string   `json:"target_address"`
	TargetPort       int      `json:"target_port"`
	Protocol         string   `json:"protocol"`
	PayloadSize      int      `json:"payload_size"`
	ConcurrencyLevel int      `json:"concurrency_level"`
	DurationSeconds  int      `json:"duration_seconds"`
	AssignedWorkers  []string `json:"assigned_workers"`
}

// CreateTask validates the descriptor, resolves the worker set (the
// explicit list when given, otherwise a point-in-time snapshot of the
// online fleet), persists the task with its per-worker rows in one
// transaction and starts the task's probe monitor.
func (o *Orchestrator) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	protocol, ok := models.ParseProtocol(req.Protocol)
	if !ok {
		return nil, fmt.Errorf("protocol %q: %w", req.Protocol, models.ErrInvalidInput)
	}

	if req.TargetAddress == "" {
		return nil, fmt.Errorf("target_address is required: %w", models.ErrInvalidInput)
	}
	if req.TargetPort <= 0 || req.TargetPort > 65535 {
		return nil, fmt.Errorf("target_port must be in 1..65535: %w", models.ErrInvalidInput)
	}
	if req.PayloadSize < 0 || req.ConcurrencyLevel < 0 || req.DurationSeconds < 0 {
		return nil, fmt.Errorf("numeric fields must be positive: %w", models.ErrInvalidInput)
	}

	if req.PayloadSize == 0 {
		req.PayloadSize = DefaultPayloadSize
	}
	if req.ConcurrencyLevel == 0 {
		req.ConcurrencyLevel = DefaultConcurrencyLevel
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = DefaultDurationSeconds
	}

	assigned := req.AssignedWorkers
	if len(assigned) == 0 {
		online, err := o.workers.OnlineWorkerIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve online workers: %w", err)
		}
		assigned = online
	}

	if len(assigned) == 0 {
		return nil, models.ErrNoWorkersAvailable
	}

	now := time.Now()
	task := &models.Task{
		ID:               models.NewTaskID(),
		TargetAddress:    req.TargetAddress,
		TargetPort:       req.TargetPort,
		Protocol:         protocol,
		PayloadSize:      req.PayloadSize,
		ConcurrencyLevel: req.ConcurrencyLevel,
		DurationSeconds:  req.DurationSeconds,
		AssignedWorkers:  assigned,
		Status:           models.TaskStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := o.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	o.monitors.Start(task.ID, task.TargetAddress, task.TargetPort, task.Protocol,
		time.Duration(task.DurationSeconds)*time.Second)

	o.publish(ctx, task.ID, task.Status)

	o.log.Info("task created",
		"task_id", task.ID,
		"protocol", task.Protocol,
		"target", task.TargetAddress,
		"workers", len(assigned),
	)

	return task, nil
}

// FetchPending hands the worker its pending task descriptors, oldest
// first, marking them assigned so a repeated poll never redelivers.
func (o *Orchestrator) FetchPending(ctx context.Context, workerID string) ([]models.TaskDescriptor, error) {
	if workerID == "" {
		return nil, fmt.Errorf("worker_id is required: %w", models.ErrInvalidInput)
	}

	descriptors, err := o.tasks.PendingForWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}

	// An assignment leaving pending is the task's implicit start.
	for _, d := range descriptors {
		if err := o.reevaluate(ctx, d.TaskID); err != nil {
			o.log.Error("failed to re-evaluate task after fetch", "task_id", d.TaskID, "error", err)
		}
	}

	return descriptors, nil
}

// SubmitResult ingests one worker's sparse result update, then
// re-evaluates aggregate completion over all of the task's assignments.
func (o *Orchestrator) SubmitResult(ctx context.Context, taskID, workerID string, upd models.ResultUpdate) error {
	if taskID == "" || workerID == "" {
		return fmt.Errorf("task_id and worker_id are required: %w", models.ErrInvalidInput)
	}

	if upd.Empty() {
		return fmt.Errorf("result update carries no fields: %w", models.ErrInvalidInput)
	}

	if err := o.results.ApplyUpdate(ctx, taskID, workerID, upd); err != nil {
		return err
	}

	return o.reevaluate(ctx, taskID)
}

// reevaluate reads the full assignment set after the caller's own write
// is durable, derives the aggregate status and applies it. A task that
// reaches a terminal status has its probe monitor stopped.
func (o *Orchestrator) reevaluate(ctx context.Context, taskID string) error {
	task, err := o.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	switch task.Status {
	case models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusStopped:
		return nil
	}

	assignments, err := o.tasks.Assignments(ctx, taskID)
	if err != nil {
		return err
	}

	derived := DeriveTaskStatus(assignments, o.policy)
	if derived == task.Status {
		return nil
	}

	if err := o.tasks.SetStatus(ctx, taskID, derived); err != nil {
		return err
	}

	switch derived {
	case models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusStopped:
		o.monitors.Stop(taskID)
		o.log.Info("task finished", "task_id", taskID, "status", derived)
	}

	o.publish(ctx, taskID, derived)

	return nil
}

// TaskView is the status projection returned to clients: the task plus
// each worker's assignment state and the live monitoring flag.
type TaskView struct {
	Task          *models.Task        `json:"task"`
	WorkerStatus  []models.Assignment `json:"worker_status"`
	MonitorActive bool                `json:"monitor_active"`
}

func (o *Orchestrator) GetStatus(ctx context.Context, taskID string) (*TaskView, error) {
	task, err := o.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	assignments, err := o.tasks.Assignments(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return &TaskView{
		Task:          task,
		WorkerStatus:  assignments,
		MonitorActive: o.monitors.IsActive(taskID),
	}, nil
}

func (o *Orchestrator) ListResults(ctx context.Context, taskID string) ([]models.ResultRecord, error) {
	if _, err := o.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	return o.results.ListForTask(ctx, taskID)
}

func (o *Orchestrator) ListTasks(ctx context.Context, limit, offset int) ([]*models.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return o.tasks.List(ctx, limit, offset)
}

// StopTask cancels a pending or running task: the task and every
// assignment and result record go to stopped, and the probe monitor is
// shut down. Any other current status reports ErrInvalidState.
func (o *Orchestrator) StopTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task_id is required: %w", models.ErrInvalidInput)
	}

	if err := o.tasks.Stop(ctx, taskID); err != nil {
		return err
	}

	o.monitors.Stop(taskID)
	o.publish(ctx, taskID, models.TaskStatusStopped)

	o.log.Info("task stopped", "task_id", taskID)

	return nil
}

// SystemStats is the coordinator-wide counters projection.
type SystemStats struct {
	Workers      map[string]int `json:"workers"`
	Tasks        map[string]int `json:"tasks"`
	TodayTasks   int            `json:"today_tasks"`
	TotalWorkers int            `json:"total_workers"`
	TotalTasks   int            `json:"total_tasks"`
}

func (o *Orchestrator) Stats(ctx context.Context) (*SystemStats, error) {
	workerCounts, err := o.workers.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	taskCounts, err := o.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	today, err := o.tasks.CountCreatedToday(ctx)
	if err != nil {
		return nil, err
	}

	stats := &SystemStats{
		Workers:    workerCounts,
		Tasks:      taskCounts,
		TodayTasks: today,
	}

	for _, n := range workerCounts {
		stats.TotalWorkers += n
	}
	for _, n := range taskCounts {
		stats.TotalTasks += n
	}

	return stats, nil
}

func (o *Orchestrator) publish(ctx context.Context, taskID string, status models.TaskStatus) {
	if o.publisher == nil {
		return
	}

	o.publisher.TaskEvent(ctx, taskID, status)
}
