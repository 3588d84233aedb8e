package reaper

import (
	"encoding/json"

	"github.com/maumercado/task-queue-go/internal/apperr"
)

// snapshotOf flattens a record into the generic document shape stored on
// each event (mirrors filter.ToDoc / report.snapshotOf for this
// package's own event appends).
func snapshotOf(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.StoreFatal("encode snapshot", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.StoreFatal("decode snapshot", err)
	}
	return doc, nil
}
