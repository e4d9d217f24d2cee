package utils

import "strings"

// ParseDeviceID extracts the device id from a topic like
// "devices/<id>/telemetry".
func ParseDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 1 {
		return parts[1]
	}
	return ""
}
