package main

import (
	"context"
	"fmt"
	"time"

	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/task"
)

// Example task handlers, adapted from the teacher's cmd/worker/main.go
// (echo/sleep/compute/fail) onto the new Task.Args field in place of the
// old Payload field.

func echoHandler(ctx context.Context, t *task.Task) (map[string]interface{}, error) {
	logger.Info().
		Str("task_id", t.TaskID).
		Interface("args", t.Args).
		Msg("echo handler processing task")

	return map[string]interface{}{"echoed": t.Args}, nil
}

func sleepHandler(ctx context.Context, t *task.Task) (map[string]interface{}, error) {
	duration := 1 * time.Second
	if d, ok := t.Args["duration_ms"].(float64); ok {
		duration = time.Duration(d) * time.Millisecond
	}

	logger.Info().
		Str("task_id", t.TaskID).
		Dur("duration", duration).
		Msg("sleep handler processing task")

	select {
	case <-time.After(duration):
		return map[string]interface{}{"slept_for": duration.String()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func computeHandler(ctx context.Context, t *task.Task) (map[string]interface{}, error) {
	iterations := 1000000
	if i, ok := t.Args["iterations"].(float64); ok {
		iterations = int(i)
	}

	logger.Info().
		Str("task_id", t.TaskID).
		Int("iterations", iterations).
		Msg("compute handler processing task")

	sum := 0
	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			sum += i
		}
	}

	return map[string]interface{}{"result": sum}, nil
}

func failHandler(ctx context.Context, t *task.Task) (map[string]interface{}, error) {
	logger.Info().Str("task_id", t.TaskID).Msg("fail handler processing task")
	return nil, fmt.Errorf("intentional failure for testing")
}
