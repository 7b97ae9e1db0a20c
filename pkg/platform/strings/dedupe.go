// Package strings holds small helpers for normalizing configured string
// lists (origins, hosts, brokers) before they are handed to components.
package strings

import "strings"

// DedupeAndTrim trims every element, drops empties, and removes
// duplicates while preserving first-seen order.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		t := strings.TrimSpace(v)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DedupeAndTrimLower is DedupeAndTrim with case folding, for lists
// matched case-insensitively such as Host allow-lists.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		t := strings.ToLower(strings.TrimSpace(v))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
