package pkg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			if got := GetLogLevel(); got != tt.level {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("log output missing message: %s", buf.String())
	}
}

func TestLogComponent(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	level := GetLogLevel()
	defer func() {
		DefaultLogger = original
		SetLogLevel(level)
	}()

	SetLogLevel(slog.LevelDebug)
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogDebug(ComponentScan, "probe message", "path", "/dev/bus/usb/001/002")
	output := buf.String()
	if !strings.Contains(output, "probe message") {
		t.Errorf("debug log missing message: %s", output)
	}
	if !strings.Contains(output, "component=scan") {
		t.Errorf("debug log missing component: %s", output)
	}

	buf.Reset()
	LogWarn(ComponentRegistry, "claim failed", "error", "EBUSY")
	output = buf.String()
	if !strings.Contains(output, "component=registry") {
		t.Errorf("warn log missing component: %s", output)
	}
}

func TestSetLogFormat(t *testing.T) {
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	SetLogFormat(LogFormatJSON)
	if DefaultLogger == nil {
		t.Fatal("SetLogFormat(JSON) left DefaultLogger nil")
	}
	SetLogFormat(LogFormatText)
	if DefaultLogger == nil {
		t.Fatal("SetLogFormat(Text) left DefaultLogger nil")
	}
}
