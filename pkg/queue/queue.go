// Package queue consumes run requests pushed onto a Redis list. It is the
// enqueue transport for deployments without Kafka: external systems LPUSH
// a JSON run request and a worker pops it off.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/fluxionhq/fluxion/pkg/events"
)

// Handler processes one dequeued run request.
type Handler func(ctx context.Context, request events.RunRequested) error

// Consumer pops run requests from a Redis list and hands them to the
// handler. Malformed payloads are logged and dropped; handler errors are
// logged and do not stop consumption.
type Consumer struct {
	queue   string
	client  redis.UniversalClient
	handler Handler
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Config holds the Redis connection settings. DB is a stringly-typed index
// to match how connection maps arrive from configuration.
type Config struct {
	Addr     string
	Password string
	DB       string
	Queue    string
}

func NewConsumer(ctx context.Context, config Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if config.Queue == "" {
		return nil, errors.New("queue name is required")
	}

	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if config.DB != "" {
		parsed, err := strconv.Atoi(config.DB)
		if err != nil {
			return nil, fmt.Errorf("invalid db value: %w", err)
		}

		db = parsed
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Consumer{
		queue:   config.Queue,
		client:  client,
		handler: handler,
		stopCh:  make(chan struct{}),
		logger: logger.With(
			"module", "queue",
			"queue", config.Queue,
		),
	}, nil
}

func (c *Consumer) Start(ctx context.Context) {
	c.logger.InfoContext(ctx, "Starting queue consumer")

	c.wg.Add(1)

	go c.consume(ctx)
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := c.processMessage(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, 1*time.Second, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var request events.RunRequested
	if err := json.Unmarshal([]byte(result[1]), &request); err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed run request", "error", err)

		return nil
	}

	if request.WorkflowID == "" {
		c.logger.WarnContext(ctx, "Dropping run request without workflow_id")

		return nil
	}

	if err := c.handler(ctx, request); err != nil {
		c.logger.ErrorContext(ctx, "Run request handler failed",
			"workflow_id", request.WorkflowID,
			"error", err)
	}

	return nil
}

func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping queue consumer")

	close(c.stopCh)
	c.wg.Wait()

	return c.client.Close()
}
