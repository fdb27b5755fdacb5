package codebase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IndexJob is the job envelope submitted to a Queue: enough to resume
// indexing for one project without carrying the project's own state.
type IndexJob struct {
	JobID         string
	ProjectID     string
	Owner         string
	Repo          string
	Branch        string
	AccessToken   string
	Incremental   bool
}

// Queue is the §6 Job Queue port: submit an indexing job for asynchronous
// execution. The handler registered with SetHandler is invoked at most once
// per submitted job by some worker, possibly on a different goroutine or
// process than Submit was called from.
type Queue interface {
	Submit(ctx context.Context, job IndexJob) error
	SetHandler(handler func(context.Context, IndexJob))
	Close() error
}

// WorkerPool is an in-process Queue bounded by a GOMAXPROCS-sized semaphore:
// each job runs on a background goroutine, at most GOMAXPROCS at a time.
type WorkerPool struct {
	sem     chan struct{}
	handler func(context.Context, IndexJob)
	log     *slog.Logger

	wg sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool sized to GOMAXPROCS.
func NewWorkerPool(log *slog.Logger) *WorkerPool {
	if log == nil {
		log = slog.Default()
	}
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return &WorkerPool{sem: make(chan struct{}, n), log: log}
}

// SetHandler registers the function invoked for each submitted job.
func (w *WorkerPool) SetHandler(handler func(context.Context, IndexJob)) {
	w.handler = handler
}

// Submit runs job asynchronously once a worker slot is free.
func (w *WorkerPool) Submit(ctx context.Context, job IndexJob) error {
	if w.handler == nil {
		return fmt.Errorf("worker pool has no handler registered")
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			w.log.Warn("index job dropped, context cancelled before a worker slot freed", "job_id", job.JobID)
			return
		}
		defer func() { <-w.sem }()
		w.handler(context.Background(), job)
	}()
	return nil
}

// Close waits for in-flight jobs to finish.
func (w *WorkerPool) Close() error {
	w.wg.Wait()
	return nil
}

// RedisQueue is a Redis Streams-backed Queue for multi-instance deployments,
// selected by INDEX_QUEUE_BACKEND=redis. One consumer goroutine reads the
// stream and dispatches to the registered handler serially per message,
// acknowledging each entry with XACK after the handler returns. Only new
// entries are read: an entry left pending by a consumer that stopped before
// acknowledging it is not re-read or claimed by another consumer.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	handler  func(context.Context, IndexJob)
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisQueue connects to addr and ensures the consumer group exists.
func NewRedisQueue(ctx context.Context, addr, password string, db int, log *slog.Logger) (*RedisQueue, error) {
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	const stream = "prdforge:index-jobs"
	const group = "prdforge-indexers"
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &RedisQueue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: fmt.Sprintf("worker-%d", time.Now().UnixNano()),
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists")
}

// SetHandler registers the function invoked for each dequeued job and starts
// the consumer loop.
func (q *RedisQueue) SetHandler(handler func(context.Context, IndexJob)) {
	q.handler = handler
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.consume(ctx)
}

// Submit publishes job to the stream.
func (q *RedisQueue) Submit(ctx context.Context, job IndexJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal index job: %w", err)
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"job": string(payload)},
	}).Err()
}

func (q *RedisQueue) consume(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				q.log.Warn("redis queue read failed", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				raw, _ := msg.Values["job"].(string)
				var job IndexJob
				if err := json.Unmarshal([]byte(raw), &job); err != nil {
					q.log.Warn("dropping malformed index job message", "id", msg.ID, "error", err)
					q.client.XAck(ctx, q.stream, q.group, msg.ID)
					continue
				}
				if q.handler != nil {
					q.handler(ctx, job)
				}
				q.client.XAck(ctx, q.stream, q.group, msg.ID)
			}
		}
	}
}

// Close stops the consumer loop and closes the Redis connection.
func (q *RedisQueue) Close() error {
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
	return q.client.Close()
}
