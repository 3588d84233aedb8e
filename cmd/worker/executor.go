package main

import (
	"context"
	"fmt"

	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/task"
)

// TaskHandler processes one claimed task and returns the summary to report
// back, adapted from the teacher's worker.Executor handler-registry idiom
// (internal/worker/executor.go, since deleted) but keyed by task_name
// instead of the teacher's task type field, and invoked through the HTTP
// client instead of a direct in-process pool.
type TaskHandler func(ctx context.Context, t *task.Task) (map[string]interface{}, error)

// Executor dispatches a claimed task to the handler registered for its
// task_name, recovering from a handler panic the same way the teacher's
// executor did: a panicking handler reports failure, it does not crash
// the worker process.
type Executor struct {
	handlers map[string]TaskHandler
}

func NewExecutor(handlers map[string]TaskHandler) *Executor {
	return &Executor{handlers: handlers}
}

// Execute runs the handler registered for t.TaskName. An unregistered
// name is itself a failure, not a panic.
func (e *Executor) Execute(ctx context.Context, t *task.Task) (result map[string]interface{}, err error) {
	handler, ok := e.handlers[t.TaskName]
	if !ok {
		return nil, fmt.Errorf("no handler registered for task_name %q", t.TaskName)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Str("task_id", t.TaskID).
				Str("task_name", t.TaskName).
				Interface("panic", rec).
				Msg("task handler panicked")
			result = nil
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()

	return handler(ctx, t)
}
