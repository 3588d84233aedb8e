// Command worker is a reference SDK consumer: it registers itself against
// a queue, then loops fetch -> execute -> report over pkg/client, the way
// an out-of-process executor is expected to integrate with the task queue
// service. It replaces the teacher's in-process worker.Pool (which drove
// Redis directly) with the wire protocol the server actually exposes.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/worker"
	"github.com/maumercado/task-queue-go/pkg/client"
)

func main() {
	addr := flag.String("addr", envOr("TASKQUEUE_ADDR", "http://localhost:8080"), "task queue API base URL")
	queueName := flag.String("queue", os.Getenv("TASKQUEUE_NAME"), "queue name")
	password := flag.String("password", os.Getenv("TASKQUEUE_PASSWORD"), "queue password")
	workerName := flag.String("worker-name", os.Getenv("TASKQUEUE_WORKER_NAME"), "worker display name")
	concurrency := flag.Int("concurrency", 4, "number of concurrent fetch/execute loops")
	pollInterval := flag.Duration("poll-interval", 500*time.Millisecond, "base delay between empty fetches")
	flag.Parse()

	logger.Init(envOr("TASKQUEUE_LOG_LEVEL", "info"), os.Getenv("ENV") != "production")
	log := logger.Get()

	if *queueName == "" || *password == "" {
		log.Fatal().Msg("queue name and password are required")
	}

	c := client.New(*addr, *queueName, *password)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := c.RegisterWorker(ctx, &worker.RegisterRequest{WorkerName: *workerName})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register worker")
	}
	log.Info().Str("worker_id", w.WorkerID).Msg("worker registered")

	executor := NewExecutor(map[string]TaskHandler{
		"echo":    echoHandler,
		"sleep":   sleepHandler,
		"compute": computeHandler,
		"fail":    failHandler,
	})

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLoop(ctx, c, executor, w.WorkerID, *pollInterval)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker...")
	cancel()
	wg.Wait()
	log.Info().Msg("worker stopped")
}

// runLoop is one fetch/execute/report cycle, repeated until ctx is
// cancelled. An empty fetch backs off with jitter instead of hammering
// the server (grounded on the teacher's worker pool's DequeueBlocking,
// generalized to polling since the wire API has no blocking fetch).
func runLoop(ctx context.Context, c *client.Client, executor *Executor, workerID string, basePoll time.Duration) {
	log := logger.WithWorker(workerID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := c.FetchTask(ctx, &client.FetchOptions{WorkerID: workerID, StartHeartbeat: true})
		if err != nil {
			log.Error().Err(err).Msg("fetch failed")
			sleepWithJitter(ctx, basePoll)
			continue
		}
		if !result.Found {
			sleepWithJitter(ctx, basePoll)
			continue
		}

		runTask(ctx, c, executor, log, result.Task)
	}
}

func runTask(ctx context.Context, c *client.Client, executor *Executor, log zerolog.Logger, t *task.Task) {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go heartbeatLoop(hbCtx, c, t)

	summary, err := executor.Execute(ctx, t)
	if err != nil {
		log.Error().Err(err).Str("task_id", t.TaskID).Str("task_name", t.TaskName).Msg("task execution failed")
		if _, reportErr := c.ReportStatus(ctx, t.TaskID, task.ReportFailed, map[string]interface{}{"error": err.Error()}); reportErr != nil {
			log.Error().Err(reportErr).Str("task_id", t.TaskID).Msg("failed to report failure")
		}
		return
	}

	if _, reportErr := c.ReportStatus(ctx, t.TaskID, task.ReportSuccess, summary); reportErr != nil {
		log.Error().Err(reportErr).Str("task_id", t.TaskID).Msg("failed to report success")
	}
}

// heartbeatLoop refreshes a claimed task's heartbeat at a third of its
// timeout until the context is cancelled (execution finished).
func heartbeatLoop(ctx context.Context, c *client.Client, t *task.Task) {
	interval := time.Duration(t.HeartbeatTimeout / 3 * float64(time.Second))
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.SendHeartbeat(ctx, t.TaskID)
		}
	}
}

func sleepWithJitter(ctx context.Context, base time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(base)))
	select {
	case <-ctx.Done():
	case <-time.After(base + jitter):
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
