package sched

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

// Key identifies a cacheable request: the operation name joined with the
// blake3 hash of the canonical key-sorted JSON form of its parameters.
// Parameter maps that differ only in key order produce the same key.
func Key(op string, params map[string]any) (string, error) {
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSchedKeyEncoding,
			fmt.Sprintf("cannot build cache key for operation %q", op), err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash request params: %w", err)
	}

	return op + ":" + fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Canonicalize returns a canonical JSON representation of request
// parameters with stable key ordering for consistent hashing
func Canonicalize(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	return json.Marshal(sortKeys(params))
}

// sortKeys recursively sorts map keys for stable JSON output
func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorted := make(map[string]any, len(val))
		for _, k := range keys {
			sorted[k] = sortKeys(val[k])
		}
		return sorted

	case []any:
		for i, item := range val {
			val[i] = sortKeys(item)
		}
		return val

	default:
		return v
	}
}
