package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/distnet/coordinator/internal/models"
)

const TaskEventChannel = "coordinator:task_events"

// Publisher broadcasts task lifecycle transitions over Redis pub/sub so
// dashboards can follow tasks without polling. Publishing is best
// effort: a failed publish is logged, never surfaced to the caller.
type Publisher struct {
	client *redis.Client
	log    *slog.Logger
}

func NewPublisher(addr, password string, db int, log *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Publisher{client: client, log: log}, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

type taskEvent struct {
	TaskID    string            `json:"task_id"`
	Status    models.TaskStatus `json:"status"`
	Timestamp int64             `json:"timestamp"`
}

func (p *Publisher) TaskEvent(ctx context.Context, taskID string, status models.TaskStatus) {
	payload, err := json.Marshal(taskEvent{
		TaskID:    taskID,
		Status:    status,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		p.log.Error("failed to marshal task event", "task_id", taskID, "error", err)
		return
	}

	if err := p.client.Publish(ctx, TaskEventChannel, payload).Err(); err != nil {
		p.log.Error("failed to publish task event", "task_id", taskID, "error", err)
	}
}
