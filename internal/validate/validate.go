// Package validate implements the key-legality, identifier, and duration
// validation rules shared by every component that accepts user input
// (queue/task/worker creation, updates, filters).
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/maumercado/task-queue-go/internal/apperr"
)

// identifierPattern matches queue/task/worker names: §4.9.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// Identifier validates a queue/task/worker name against the shared pattern.
func Identifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return apperr.Validationf("identifier %q must match %s", name, identifierPattern.String())
	}
	return nil
}

// durationUnit maps a single-letter suffix to its multiplier.
var durationUnit = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// Duration parses a `<int><unit>+` string (units s, m, h, d, summed), as used
// for `eta_max` (§4.9). "90m10s" parses as 90 minutes plus 10 seconds.
func Duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, apperr.Validation("duration string must not be empty")
	}

	var total time.Duration
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			unit, ok := durationUnit[c]
			if !ok {
				return 0, apperr.Validationf("invalid duration unit %q in %q", string(c), s)
			}
			if i == start {
				return 0, apperr.Validationf("missing number before unit in %q", s)
			}
			n, err := strconv.Atoi(s[start:i])
			if err != nil {
				return 0, apperr.Validationf("invalid number in duration %q: %v", s, err)
			}
			total += time.Duration(n) * unit
			start = i + 1
		}
	}
	if start != len(s) {
		return 0, apperr.Validationf("duration %q has a trailing number with no unit", s)
	}
	return total, nil
}

// Keys recursively rejects any mapping key containing '.' or '$', used for
// args/metadata/summary (§3 "Key legality").
func Keys(doc map[string]interface{}) error {
	for k, v := range doc {
		if strings.ContainsAny(k, ".$") {
			return apperr.Validationf("key %q must not contain '.' or '$'", k)
		}
		if nested, ok := v.(map[string]interface{}); ok {
			if err := Keys(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// NonNegative validates retry counts, priorities, and other integral budgets.
func NonNegative(field string, n int) error {
	if n < 0 {
		return apperr.Validationf("%s must be non-negative, got %d", field, n)
	}
	return nil
}

// DottedPathExists reports whether the dotted path (e.g. "a.b.c") resolves to
// a present key inside doc, used by the dispatcher's required_fields check
// (§4.3 step 1).
func DottedPathExists(doc map[string]interface{}, path string) bool {
	segments := strings.Split(path, ".")
	var cur interface{} = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		v, ok := m[seg]
		if !ok {
			return false
		}
		cur = v
	}
	return true
}
