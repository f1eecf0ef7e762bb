package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/timmy/leaflet/internal/logger"
)

const payloadField = "task"

// Handler processes one task. Its error is logged; the message is
// acknowledged either way.
type Handler func(ctx context.Context, task Task) error

// Config holds queue settings.
type Config struct {
	Stream string
	Group  string
	// Block bounds each read so Process notices cancellation.
	Block time.Duration
}

// Client enqueues and consumes tasks on a Redis Stream with a consumer
// group, so each message is delivered to one consumer.
type Client struct {
	rdb    *redis.Client
	stream string
	group  string
	block  time.Duration
	logger *logger.Logger
}

// NewClient creates a queue client on an existing Redis connection.
func NewClient(rdb *redis.Client, cfg Config, log *logger.Logger) *Client {
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	return &Client{
		rdb:    rdb,
		stream: cfg.Stream,
		group:  cfg.Group,
		block:  block,
		logger: log,
	}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *Client) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, c.logger)
}

// EnsureGroup creates the stream and consumer group if missing.
func (c *Client) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Enqueue appends a task to the stream.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: task to enqueue; EnqueuedAt is set when zero.
// Returns:
//   - string: stream message ID.
//   - error: non-nil if the task is invalid or the write fails.
func (c *Client) Enqueue(ctx context.Context, task Task) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	payload, err := encodeTask(task)
	if err != nil {
		return "", err
	}

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID: task.JobID,
		"message_id":      id,
	}).Debug("Enqueued ingestion task")
	return id, nil
}

// Process reads tasks as consumerID until ctx is cancelled, calling h for
// each one and acknowledging it afterwards. Failed tasks are not redelivered.
// Returns nil on cancellation.
func (c *Client) Process(ctx context.Context, consumerID string, h Handler) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	log := c.log(ctx).WithField("consumer", consumerID)

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: consumerID,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    c.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("Failed to read from stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.handle(ctx, log, msg, h)
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, log *logger.Logger, msg redis.XMessage, h Handler) {
	defer func() {
		// Ack even when the task failed; the job record carries the outcome.
		if err := c.rdb.XAck(context.WithoutCancel(ctx), c.stream, c.group, msg.ID).Err(); err != nil {
			log.WithError(err).WithField("message_id", msg.ID).Error("Failed to ack message")
		}
	}()

	task, err := decodeTask(msg.Values)
	if err != nil {
		log.WithError(err).WithField("message_id", msg.ID).Error("Dropping undecodable message")
		return
	}

	if err := h(ctx, task); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			logger.FieldJobID: task.JobID,
			"message_id":      msg.ID,
		}).Warn("Task failed")
	}
}

// Pending returns the number of delivered but unacknowledged messages.
func (c *Client) Pending(ctx context.Context) (int64, error) {
	res, err := c.rdb.XPending(ctx, c.stream, c.group).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read pending count: %w", err)
	}
	return res.Count, nil
}

// Len returns the stream length.
func (c *Client) Len(ctx context.Context) (int64, error) {
	return c.rdb.XLen(ctx, c.stream).Result()
}
