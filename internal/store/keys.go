package store

import "strconv"

// Index name builders shared by tenant/task/worker/dispatch/report/reaper/
// events so every package agrees on the same key shape without importing
// each other.

// QueueNameIndex is the hash index mapping a queue_name to its queue_id,
// used to enforce uniqueness (§4.8) and to resolve Basic-auth credentials.
const QueueNameIndex = "queue_name"

// QueueAllIndex names the set of every live queue_id, used by the reaper's
// per-tick enumeration (§4.4) since queues are otherwise only addressable
// by id or name.
const QueueAllIndex = "q:all"

// TaskAllIndex names the set of every task_id currently stored for a queue,
// used by the QUEUE_NOT_EMPTY check and cascade delete (§4.8).
func TaskAllIndex(queueID string) string { return "t:all:" + queueID }

// TaskPendingIndex names the sorted set of PENDING task_ids for a queue,
// scored by Task.DispatchScore (§4.3).
func TaskPendingIndex(queueID string) string { return "t:pending:" + queueID }

// TaskRunningIndex names the set of RUNNING task_ids for a queue, scanned
// by the reaper (§4.4) so a sweep never has to filter the full collection.
func TaskRunningIndex(queueID string) string { return "t:running:" + queueID }

// WorkerAllIndex names the set of every worker_id currently registered to a
// queue.
func WorkerAllIndex(queueID string) string { return "w:all:" + queueID }

// EventSeqCounter names the atomic per-queue event sequence counter
// (§4.7), allocated via Store.Incr.
func EventSeqCounter(queueID string) string { return "events:" + queueID }

// EventKey names the document key for one event record.
func EventKey(queueID string, sequence int64) string {
	return queueID + ":" + strconv.FormatInt(sequence, 10)
}
