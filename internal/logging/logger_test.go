package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New(development)
		if err != nil {
			t.Fatalf("New(%v) error = %v", development, err)
		}
		if logger == nil {
			t.Fatalf("New(%v) returned nil logger", development)
		}
		logger.Info("logger ready")
		_ = logger.Sync() //nolint:errcheck // best-effort flush
	}
}

func TestNewNamesRootLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}

	ce := logger.Check(zapcore.InfoLevel, "name check")
	if ce == nil {
		t.Fatal("info level unexpectedly disabled")
	}
	if ce.Entry.LoggerName != "gateway" {
		t.Fatalf("root logger name = %q, want %q", ce.Entry.LoggerName, "gateway")
	}
	ce.Write()

	child := logger.Named("api")
	ce = child.Check(zapcore.InfoLevel, "child name check")
	if ce == nil {
		t.Fatal("info level unexpectedly disabled on child")
	}
	if ce.Entry.LoggerName != "gateway.api" {
		t.Fatalf("child logger name = %q, want %q", ce.Entry.LoggerName, "gateway.api")
	}
	ce.Write()
}
