// Package jsonpath reads a single value out of a decoded JSON document
// using the dotted subset understood by custom currency endpoints:
// "$.data.rates.eur", "items[0].price", "result.currencies.eur".
package jsonpath

import (
	"strconv"
	"strings"
)

// Extract walks data (as produced by encoding/json into any) along path.
// It returns nil when a segment is missing, hits a JSON null, or tries to
// descend into a scalar. An empty path, "$" or "$." returns data itself.
func Extract(data any, path string) any {
	segments := Split(path)
	current := data

	for _, seg := range segments {
		if current == nil {
			return nil
		}

		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			current = v
		case []any:
			idx, ok := index(seg)
			if !ok || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}

	return current
}

// Split normalises path into its key and index segments.
func Split(path string) []string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil
	}

	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
}

func index(seg string) (int, bool) {
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
