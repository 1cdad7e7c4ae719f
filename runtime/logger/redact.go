package logger

import (
	"regexp"
	"strings"
)

// apiKeyPatterns match the credential formats BlueStar handles.
var apiKeyPatterns = []*regexp.Regexp{
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	// OpenAI API keys
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{32,}`),
	// Google API keys
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`),
	// GitHub fine-grained tokens
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	// Notion integration tokens
	regexp.MustCompile(`(secret|ntn)_[a-zA-Z0-9]{40,}`),
	// Ghost admin API keys
	regexp.MustCompile(`[0-9a-f]{24}:[0-9a-f]{64}`),
	// Authorization header values
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.\-]+`),
	regexp.MustCompile(`Ghost\s+eyJ[a-zA-Z0-9_.\-]+`),
}

// RedactSensitiveData replaces credentials in input. Keys keep their first
// four characters for debugging; authorization header values keep only the
// scheme.
func RedactSensitiveData(input string) string {
	result := input
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			for _, scheme := range []string{"Bearer", "Ghost"} {
				if strings.HasPrefix(match, scheme) {
					return scheme + " [REDACTED]"
				}
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}
