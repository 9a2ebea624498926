package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
)

// mockTransport captures events instead of sending them
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

func (t *mockTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

func (t *mockTransport) last() *sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return nil
	}
	return t.events[len(t.events)-1]
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestInitDisabledWithoutDSN(t *testing.T) {
	flush, err := Init(&conf.SentrySettings{}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()

	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitReportsServerErrors(t *testing.T) {
	transport := &mockTransport{}
	settings := &conf.SentrySettings{
		DSN:         "https://public@example.com/1",
		Environment: "test",
		SampleRate:  1.0,
	}

	flush, err := Init(settings, testLogger(), WithTransport(transport), WithRelease("gardentracker@1.0.0"))
	require.NoError(t, err)
	t.Cleanup(flush)
	require.NotNil(t, errors.GetTelemetryReporter())

	_ = errors.New(fmt.Errorf("connection refused")).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context(errors.ContextOperation, "ping").
		Build()
	require.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 10*time.Millisecond)

	event := transport.last()
	assert.Equal(t, "datastore", event.Tags["component"])
	assert.Equal(t, "test", event.Environment)
	assert.Equal(t, "gardentracker@1.0.0", event.Release)

	_ = errors.NotFound("plant", 7)
	assert.Equal(t, 1, transport.count(), "not found errors are not reported")
}

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{
		ServerName: "garden-host",
		User:       sentry.User{Email: "grower@example.com"},
		Request: &sentry.Request{
			Cookies: "session=abc",
			Data:    "name=tomato",
			Headers: map[string]string{"Authorization": "Bearer x"},
		},
	}

	got := scrubEvent(event, nil)
	assert.Empty(t, got.ServerName)
	assert.Empty(t, got.User.Email)
	assert.Empty(t, got.Request.Cookies)
	assert.Empty(t, got.Request.Data)
	assert.Nil(t, got.Request.Headers)
}
