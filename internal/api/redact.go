package api

import "regexp"

var (
	urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)
	keyPattern = regexp.MustCompile(`\b(sk|pk|api|key|ghp|gho|github_pat)[-_][A-Za-z0-9_-]{8,}\b`)
	// bearer tokens and key=value credentials
	credPattern = regexp.MustCompile(`(?i)(bearer\s+|api[-_]?key[=:]\s*|token[=:]\s*)[^\s"',]+`)
)

// redact masks URLs and credential-like tokens in error details.
func redact(s string) string {
	s = urlPattern.ReplaceAllString(s, "[url]")
	s = credPattern.ReplaceAllString(s, "${1}[redacted]")
	return keyPattern.ReplaceAllString(s, "[redacted]")
}
