package security

import (
	"regexp"
	"strings"
)

// sensitiveKeywords are the substrings whose associated values must never
// reach a caller-visible error message. Matching is case-insensitive.
var sensitiveKeywords = []string{
	"password",
	"token",
	"secret",
	"key",
	"database",
	"connection",
}

// sensitiveValuePattern matches `keyword: value`, `keyword=value` and
// `keyword "value"` shapes so the value part can be masked while the keyword
// itself stays readable for debugging.
var sensitiveValuePattern = regexp.MustCompile(
	`(?i)(password|token|secret|key|database|connection)(s?\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s,;]+)`)

// RedactedPlaceholder replaces masked values in caller-visible text.
const RedactedPlaceholder = "[REDACTED]"

// Redact masks values attached to known-sensitive keywords in s. The input is
// returned unchanged when nothing matches.
func Redact(s string) string {
	if s == "" {
		return s
	}
	return sensitiveValuePattern.ReplaceAllString(s, "$1$2"+RedactedPlaceholder)
}

// ContainsSensitive reports whether s mentions any known-sensitive keyword.
// Handlers use this to drop error details entirely rather than risk a partial
// redaction leaking context.
func ContainsSensitive(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
