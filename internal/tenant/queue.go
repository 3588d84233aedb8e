// Package tenant implements queue lifecycle management (C9): the
// create/get/update/delete operations over the top-level multi-tenant
// namespace that scopes every task, worker, and event.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Queue is the persisted record for one named, password-protected
// namespace of tasks and workers (§3).
type Queue struct {
	QueueID      string                 `json:"queue_id"`
	QueueName    string                 `json:"queue_name"`
	PasswordHash string                 `json:"password_hash"`
	CreatedAt    time.Time              `json:"created_at"`
	LastModified time.Time              `json:"last_modified"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

func newQueue(name, passwordHash string, metadata map[string]interface{}) *Queue {
	now := time.Now().UTC()
	return &Queue{
		QueueID:      uuid.New().String(),
		QueueName:    name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastModified: now,
		Metadata:     metadata,
	}
}
