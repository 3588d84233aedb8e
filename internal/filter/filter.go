// Package filter implements the §6 "Filter language": a mapping-encoded
// document predicate evaluated against the JSON-flattened shape of a
// task/worker record. It is shared by the dispatcher's eligibility scan
// (§4.3 step 1, extra_filter) and the task list handler (§6
// `extra_filter` query parameter) so both accept exactly the same
// document-predicate surface. Worker listing takes no filter.
package filter

import "encoding/json"

// ToDoc flattens any JSON-serializable value into the generic
// map[string]interface{} shape Match operates over, so the filter can be
// applied uniformly regardless of the record's concrete Go type.
func ToDoc(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Match evaluates a mapping-encoded document predicate against doc. Each
// top-level key is a dotted path; its value is either a literal (equality)
// or a single-key operator map ($eq/$ne/$gt/$gte/$lt/$lte/$in/$exists).
// All top-level keys are ANDed.
func Match(doc map[string]interface{}, filter map[string]interface{}) bool {
	for path, want := range filter {
		actual, exists := lookup(doc, path)
		if !matchOne(actual, exists, want) {
			return false
		}
	}
	return true
}

func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	segments := splitPath(path)
	var cur interface{} = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

func matchOne(actual interface{}, exists bool, want interface{}) bool {
	op, ok := want.(map[string]interface{})
	if !ok {
		return exists && equal(actual, want)
	}

	for k, v := range op {
		switch k {
		case "$eq":
			if !exists || !equal(actual, v) {
				return false
			}
		case "$ne":
			if exists && equal(actual, v) {
				return false
			}
		case "$exists":
			want, _ := v.(bool)
			if exists != want {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !exists || !compareOp(k, actual, v) {
				return false
			}
		case "$in":
			items, ok := v.([]interface{})
			if !ok || !exists {
				return false
			}
			found := false
			for _, item := range items {
				if equal(actual, item) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func equal(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func compareOp(op string, a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case "$gt":
		return af > bf
	case "$gte":
		return af >= bf
	case "$lt":
		return af < bf
	case "$lte":
		return af <= bf
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
