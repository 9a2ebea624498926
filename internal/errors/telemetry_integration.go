package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter sends server-side failures to Sentry. Events are grouped
// by component, category and operation so that one failing repository call
// is one Sentry issue regardless of the record ids involved.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a reporter; a disabled reporter drops everything
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError captures ee once, with secrets scrubbed from message and context
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}
	defer ee.MarkReported()

	title := issueTitle(ee)
	component := ee.GetComponent()
	level := sentryLevel(ee.Category)
	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(map[string]string{
			"error_title": title,
			"component":   component,
			"category":    string(ee.Category),
			"error_type":  fmt.Sprintf("%T", ee.Err),
		})
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, sentry.Context{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})
}

// issueTitle reads like "Datastore Database Error Create Plant"
func issueTitle(ee *EnhancedError) string {
	var parts []string
	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, titleWords(c))
	}
	if label, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, label)
	} else if ee.Category != "" {
		parts = append(parts, string(ee.Category))
	}
	if op := ee.ContextString(ContextOperation); op != "" {
		parts = append(parts, titleWords(strings.ReplaceAll(op, "_", " ")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

// titleWords capitalizes each word. Casers keep state, so one per call.
func titleWords(s string) string {
	return cases.Title(language.English).String(s)
}

var categoryTitles = map[ErrorCategory]string{
	CategoryNetwork:       "Network Error",
	CategoryDatabase:      "Database Error",
	CategoryFileIO:        "File I/O Error",
	CategoryConfiguration: "Configuration Error",
	CategoryProcessing:    "Processing Error",
}

// sentryLevel downgrades failures of remote services and the disk, which
// usually recover without a code change
func sentryLevel(category ErrorCategory) sentry.Level {
	if category == CategoryNetwork || category == CategoryFileIO {
		return sentry.LevelWarning
	}
	return sentry.LevelError
}

var (
	reporterMu              sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex   = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParamRegex = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)
	bearerRegex     = regexp.MustCompile(`(?i)bearer\s+\S+`)
	dsnPassword     = regexp.MustCompile(`(://[^:/\s]+:)[^@\s]+@`)
	secretPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)password[=:]\S+`),
		regexp.MustCompile(`[0-9a-zA-Z]{32,}`),
	}
)

// scrubMessage removes URL queries, credentials and API keys from a message
func scrubMessage(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = queryParamRegex.ReplaceAllString(scrubbed, "?[REDACTED]")
	scrubbed = bearerRegex.ReplaceAllString(scrubbed, "Bearer [REDACTED]")
	scrubbed = dsnPassword.ReplaceAllString(scrubbed, "${1}[REDACTED]@")
	for _, re := range secretPatterns {
		scrubbed = re.ReplaceAllString(scrubbed, "[API_KEY_REDACTED]")
	}
	return scrubbed
}
