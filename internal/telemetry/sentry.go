// Package telemetry initializes Sentry error reporting and connects it to
// the errors package.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
)

const flushTimeout = 2 * time.Second

// Option adjusts the Sentry client options before Init
type Option func(*sentry.ClientOptions)

// WithTransport replaces the network transport, used by tests
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// WithRelease tags events with the running release
func WithRelease(release string) Option {
	return func(o *sentry.ClientOptions) { o.Release = release }
}

// Init starts Sentry when a DSN is configured and installs the errors
// reporter. The returned function flushes pending events and uninstalls the
// reporter; it is safe to call when Sentry is disabled.
func Init(settings *conf.SentrySettings, log logger.Logger, opts ...Option) (func(), error) {
	if !settings.Enabled() {
		log.Debug("sentry disabled, no DSN configured")
		return func() {}, nil
	}

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		SampleRate:       settings.SampleRate,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       scrubEvent,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return func() {}, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context(errors.ContextOperation, "sentry_init").
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("sentry error reporting enabled", logger.String("environment", settings.Environment))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(flushTimeout)
	}, nil
}

// scrubEvent drops request data that could carry user content
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Data = ""
		event.Request.Headers = nil
	}
	event.User = sentry.User{}
	event.ServerName = ""
	return event
}
