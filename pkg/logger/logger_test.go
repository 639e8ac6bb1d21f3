package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestUnstructuredLogsCheck tests the unstructuredLogs function
func TestUnstructuredLogsCheck(t *testing.T) { //nolint:paralleltest // mutates env
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"Default Case", "", true},
		{"Explicitly True", "true", true},
		{"Explicitly False", "false", false},
		{"Invalid Value", "not-a-bool", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UNSTRUCTURED_LOGS", tt.envValue)

			if got := unstructuredLogs(); got != tt.expected {
				t.Errorf("unstructuredLogs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// setSingletonForTest temporarily replaces the singleton logger and restores
// the original when the test completes.
func setSingletonForTest(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := singleton.Load()
	singleton.Store(l)
	t.Cleanup(func() { singleton.Store(prev) })
}

// TestLogLevels tests that each log function writes to the underlying handler.
func TestLogLevels(t *testing.T) { //nolint:paralleltest // mutates singleton
	tests := []struct {
		name     string
		logFn    func()
		contains string
	}{
		{"Debug", func() { Debug("debug msg") }, "debug msg"},
		{"Debugf", func() { Debugf("debug %s", "formatted") }, "debug formatted"},
		{"Debugw", func() { Debugw("debug kv", "key", "val") }, "debug kv"},
		{"Info", func() { Info("info msg") }, "info msg"},
		{"Infof", func() { Infof("info %s", "formatted") }, "info formatted"},
		{"Infow", func() { Infow("info kv", "key", "val") }, "info kv"},
		{"Warn", func() { Warn("warn msg") }, "warn msg"},
		{"Warnf", func() { Warnf("warn %s", "formatted") }, "warn formatted"},
		{"Warnw", func() { Warnw("warn kv", "key", "val") }, "warn kv"},
		{"Error", func() { Error("error msg") }, "error msg"},
		{"Errorf", func() { Errorf("error %s", "formatted") }, "error formatted"},
		{"Errorw", func() { Errorw("error kv", "key", "val") }, "error kv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			setSingletonForTest(t, slog.New(handler))

			tt.logFn()

			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}

// TestGetAndSet verifies that Set replaces the logger returned by Get.
func TestGetAndSet(t *testing.T) { //nolint:paralleltest // mutates singleton
	var buf bytes.Buffer
	replacement := slog.New(slog.NewJSONHandler(&buf, nil))

	prev := Get()
	t.Cleanup(func() { Set(prev) })

	Set(replacement)
	assert.Same(t, replacement, Get())

	Info("hello from test")
	assert.Contains(t, buf.String(), "hello from test")
}
