// Package redact strips credentials from strings before they reach
// logs or error responses. Job payloads reference working directories
// and sessions, errors bubble up from the database driver and the
// Gemini client, and both can carry connection strings or API keys.
package redact

import "regexp"

const (
	credentialPlaceholder = "[REDACTED_CREDENTIAL]"
	keyPlaceholder        = "[REDACTED_KEY]"
	jwtPlaceholder        = "[REDACTED_JWT]"
)

var replacements = []struct {
	pattern     *regexp.Regexp
	placeholder string
}{
	// Connection strings with inline credentials.
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|amqp|nsq)://[^@\s]+@`), credentialPlaceholder},

	// API keys, tokens, and secrets in key=value or key: value form.
	{regexp.MustCompile(`(?i)(api[_-]?key|secret|token|authorization)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), keyPlaceholder},

	// Bare JWTs (three dot-separated base64url segments).
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), jwtPlaceholder},

	// password=... fragments from driver errors.
	{regexp.MustCompile(`(?i)(password|passwd)([=:\s]['"]?)[^'"&\s]{3,}`), credentialPlaceholder},
}

// String returns input with recognized credential patterns replaced.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts an error's message. Returns "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
