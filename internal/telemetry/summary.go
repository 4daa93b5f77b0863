package telemetry

import (
	"fmt"
	"sort"
	"strings"
)

// Summarize renders an extracted subset as an indented, human-readable outline.
// Long sequences are abbreviated to their first three items.
func Summarize(extracted map[string]any) string {
	if len(extracted) == 0 {
		return "No relevant telemetry data found."
	}
	var b strings.Builder
	summarizeMap(&b, extracted, 0)
	return strings.TrimRight(b.String(), "\n")
}

func summarizeMap(b *strings.Builder, m map[string]any, level int) {
	indent := strings.Repeat("  ", level)
	for _, k := range sortedKeys(m) {
		if child, ok := m[k].(map[string]any); ok {
			fmt.Fprintf(b, "%s%s:\n", indent, k)
			summarizeMap(b, child, level+1)
			continue
		}
		fmt.Fprintf(b, "%s- %s: %s\n", indent, k, formatValue(m[k]))
	}
}

func formatValue(v any) string {
	switch typed := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", typed)
	case []any:
		if len(typed) > 0 {
			switch typed[0].(type) {
			case []any, map[string]any:
				return fmt.Sprintf("<%d records>", len(typed))
			}
		}
		limit := len(typed)
		if limit > 3 {
			limit = 3
		}
		parts := make([]string, 0, limit)
		for _, item := range typed[:limit] {
			parts = append(parts, fmt.Sprint(item))
		}
		suffix := ""
		if len(typed) > 3 {
			suffix = "..."
		}
		return "[" + strings.Join(parts, ", ") + suffix + "]"
	case nil:
		return "null"
	default:
		return fmt.Sprint(typed)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
