package database

import (
	"sort"
	"strings"
)

// mergeOptions overlays user options on defaults and renders them as key=value
// pairs joined by sep, sorted by key for stable DSNs.
func mergeOptions(defaults, overrides map[string]string, sep string) string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+merged[key])
	}
	return strings.Join(parts, sep)
}
