package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, dev := range []bool{false, true} {
		logger, err := New("debug", dev)
		if err != nil {
			t.Fatalf("New(debug, %v): %v", dev, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("development=%v: debug not enabled", dev)
		}
		_ = logger.Sync()
	}

	logger, err := New("warn", false)
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}

	if _, err := New("nonsense", false); err == nil {
		t.Error("expected error for unknown level")
	}
}
