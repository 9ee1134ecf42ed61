package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"ki2go/internal/config"
	"ki2go/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueSuperpromptUsage(superpromptID string) error
	EnqueueChangeRequestNotify(requestID string) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &asynqClient{client: client}
}

func (c *asynqClient) EnqueueSuperpromptUsage(superpromptID string) error {
	payload, err := json.Marshal(tasks.SuperpromptUsagePayload{SuperpromptID: superpromptID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeSuperpromptUsage, payload)

	// 使用计数允许丢失，不重试
	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Second),
		asynq.Queue("usage"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) EnqueueChangeRequestNotify(requestID string) error {
	payload, err := json.Marshal(tasks.ChangeRequestNotifyPayload{RequestID: requestID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeChangeRequestNotify, payload)

	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Queue("notify"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
