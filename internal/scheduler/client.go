package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

type SummaryScheduler interface {
	ScheduleSummaryRefresh(ctx context.Context, payload SummaryRefreshPayload) error
}

func NewClient(redisURL, queue string) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleSummaryRefresh enqueues one refresh. The task id collapses
// repeated enqueues for the same lead while one is still pending.
func (c *Client) ScheduleSummaryRefresh(ctx context.Context, payload SummaryRefreshPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSummaryRefreshTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(TaskSummaryRefresh+":"+payload.LeadID),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		tlsConfig = opt.TLSConfig.Clone()
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
