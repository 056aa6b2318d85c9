package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", "debug", true, true, true},
		{"info", "info", false, true, true},
		{"warn", "WARN", false, false, true},
		{"invalid falls back to info", "loud", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, tt.level)
			ctx := context.Background()

			log.Debug(ctx, "d")
			log.Info(ctx, "i")
			log.Warn(ctx, "w")
			log.Error(ctx, "e %d", 1)

			out := buf.String()
			if got := strings.Contains(out, "[DEBUG]"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "[INFO]"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(out, "[WARN]"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
			if !strings.Contains(out, "[ERROR] e 1") {
				t.Errorf("error line missing or unformatted: %q", out)
			}
		})
	}
}

func TestNopDiscards(t *testing.T) {
	// Should not panic
	Nop().Error(context.Background(), "dropped %s", "message")
}
