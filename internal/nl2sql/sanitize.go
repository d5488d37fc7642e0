package nl2sql

import "strings"

// Sanitize strips a raw provider response down to executable SQL:
// markdown fences are unwrapped, surrounding whitespace is trimmed and
// comment-only lines are dropped. Statement lines keep their order.
// It does not validate that what remains is a single statement.
func Sanitize(raw string) string {
	trimmed := stripMarkdownSQL(raw)
	lines := strings.Split(trimmed, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// unusable reports whether a sanitized response should trigger the
// next tier: nothing left, or the provider answered with an error
// sentence instead of SQL.
func unusable(sql string) bool {
	if sql == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(sql), "error")
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
