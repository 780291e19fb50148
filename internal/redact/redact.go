// Package redact scrubs free text before it reaches the audit log or an
// HTTP response: probe evidence, subprocess output, error strings.
package redact

import (
	"os"
	"regexp"
	"strings"
	"sync"
)

var sensitivePatterns = []*regexp.Regexp{
	// Cloud credentials
	regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

	// GitHub
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),

	// Generic API keys and tokens
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),

	// Private keys
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_-]{20,}`),

	// Basic auth in URLs
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),

	// Passwords
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
}

const (
	redactedPlaceholder = "[REDACTED]"
	homePlaceholder     = "~"
)

var (
	homeOnce sync.Once
	homeDir  string
)

func home() string {
	homeOnce.Do(func() {
		if h, err := os.UserHomeDir(); err == nil && len(h) > 1 {
			homeDir = strings.TrimRight(h, "/")
		}
	})
	return homeDir
}

// Redact masks secrets and replaces the user's home directory with "~".
func Redact(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return redactHome(result, home())
}

func redactHome(input, home string) string {
	if home == "" {
		return input
	}
	return strings.ReplaceAll(input, home, homePlaceholder)
}

// RedactArgs redacts each element of an argument vector.
func RedactArgs(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = Redact(arg)
	}
	return result
}
