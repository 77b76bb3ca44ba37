package core

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// Not parallel: mutates the package logger.
func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	if Logger() == nil {
		t.Fatal("Logger() returned nil")
	}

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, nil))
	SetLogger(custom)
	if Logger() != custom {
		t.Error("Logger() did not return the logger passed to SetLogger")
	}

	Logger().Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("custom logger output = %q", buf.String())
	}

	SetLogger(nil)
	if l := Logger(); l == nil || l == custom {
		t.Errorf("Logger() after SetLogger(nil) = %v, want the default logger", l)
	}
}
