package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestSetup(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		log, err := Setup("warn", format)
		if err != nil {
			t.Fatalf("Setup(%q): %v", format, err)
		}
		if zap.L() != log {
			t.Fatalf("Setup(%q) did not replace the global logger", format)
		}
		if log.Core().Enabled(zap.InfoLevel) {
			t.Fatalf("info should be disabled at warn level")
		}
	}
	zap.ReplaceGlobals(zap.NewNop())
}

func TestSetupRejectsUnknown(t *testing.T) {
	if _, err := Setup("loud", "console"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := Setup("info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
