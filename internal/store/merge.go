package store

import (
	"fmt"
	"strings"
)

// MergeFields applies an update to dst in place. Top-level keys replace the
// stored value; dotted keys such as "votedBy.up" replace a single entry of a
// nested map, creating intermediate maps as needed.
func MergeFields(dst map[string]any, fields map[string]any) error {
	for key, value := range fields {
		if key == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidPath)
		}
		parts := strings.Split(key, ".")
		target := dst
		for _, part := range parts[:len(parts)-1] {
			if part == "" {
				return fmt.Errorf("%w: field %q", ErrInvalidPath, key)
			}
			next, ok := target[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[part] = next
			}
			target = next
		}
		last := parts[len(parts)-1]
		if last == "" {
			return fmt.Errorf("%w: field %q", ErrInvalidPath, key)
		}
		target[last] = value
	}
	return nil
}
