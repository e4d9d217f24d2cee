package utils

import "testing"

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"devices/esp32-01/telemetry", "esp32-01"},
		{"devices/esp32-01/status", "esp32-01"},
		{"device/pump-1/control", "pump-1"},
		{"malformed", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ParseDeviceID(tt.topic); got != tt.want {
			t.Errorf("ParseDeviceID(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
