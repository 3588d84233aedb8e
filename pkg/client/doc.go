// Package client provides a Go SDK for the task queue API: a thin,
// hand-written HTTP client plus a WebSocket client for the live event
// stream, authenticating every call with the queue's own Basic-auth
// credentials instead of a bearer API key.
//
// # Basic usage
//
//	c := client.New("http://localhost:8080", "orders", "secret")
//
//	taskID, err := c.SubmitTask(ctx, &task.SubmitRequest{
//	    TaskName: "send-email",
//	    Args:     map[string]interface{}{"to": "user@example.com"},
//	})
//
//	result, err := c.FetchTask(ctx, &client.FetchOptions{WorkerID: workerID})
//	if result.Found {
//	    _, err = c.ReportStatus(ctx, result.Task.TaskID, task.ReportSuccess, nil)
//	}
//
// # Event stream
//
//	events, cancel, err := c.SubscribeEvents(ctx)
//	defer cancel()
//	for env := range events {
//	    fmt.Printf("seq=%d %s %s->%s\n", env.Sequence, env.Event.EntityID, env.Event.OldState, env.Event.NewState)
//	}
package client
