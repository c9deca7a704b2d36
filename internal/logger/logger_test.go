package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{
			name: "plain values pass through",
			in:   []interface{}{"order_id", "PB123456", "count", 3},
			want: []interface{}{"order_id", "PB123456", "count", 3},
		},
		{
			name: "secret keys are redacted",
			in:   []interface{}{"api_key", "sk-live", "Authorization", "Bearer x"},
			want: []interface{}{"api_key", "[REDACTED]", "Authorization", "[REDACTED]"},
		},
		{
			name: "dangling key kept",
			in:   []interface{}{"status", "ok", "orphan"},
			want: []interface{}{"status", "ok", "orphan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeKVs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	log, err := New("chatty", "console")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if log.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled when level falls back to info")
	}
}
