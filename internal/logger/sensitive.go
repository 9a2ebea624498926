package logger

import (
	"net/url"
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// SensitiveDataPatterns match secrets that may appear inside free-form text
var SensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
	regexp.MustCompile(`(?i)(://[^:/\s@]+:)([^@\s]+)(@)`),
}

// SensitiveKeywords mark field keys whose values are never logged
var SensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "api_key",
	"apikey", "authorization", "cookie", "dsn",
}

// RedactSensitiveData replaces secrets in free-form text with [REDACTED]
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	input = SensitiveDataPatterns[0].ReplaceAllString(input, "${1}"+redactedValue)
	input = SensitiveDataPatterns[1].ReplaceAllString(input, "${1}"+redactedValue)
	input = SensitiveDataPatterns[2].ReplaceAllString(input, "${1}"+redactedValue+"${3}")
	return input
}

// RedactDSN hides the password of a database URL or go-sql-driver DSN
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
		return dsn
	}
	// user:password@tcp(host)/db
	if at := strings.Index(dsn, "@"); at > 0 {
		if colon := strings.Index(dsn[:at], ":"); colon >= 0 {
			return dsn[:colon+1] + "xxxxx" + dsn[at:]
		}
	}
	return dsn
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range SensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
