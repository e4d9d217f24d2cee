package models

import (
	"strconv"
	"time"
)

// SnapshotFromPayload builds a SensorSnapshot from a decoded MQTT telemetry
// payload. Device firmwares are inconsistent about numeric encoding, so both
// JSON numbers and numeric strings are accepted; anything else leaves the
// metric unset.
func SnapshotFromPayload(deviceID string, payload map[string]any, now time.Time) *SensorSnapshot {
	snap := &SensorSnapshot{
		DeviceID:  deviceID,
		Timestamp: now,
	}
	snap.Temperature = payloadFloat(payload, "temperature")
	snap.Humidity = payloadFloat(payload, "humidity")
	snap.SoilMoisture = payloadFloat(payload, "soilMoisture", "soil_moisture")
	snap.LightIntensity = payloadFloat(payload, "lightIntensity", "light_intensity")
	snap.SoilPH = payloadFloat(payload, "soilPH", "soil_ph")
	return snap
}

func payloadFloat(payload map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return &v
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil
			}
			return &f
		case int:
			f := float64(v)
			return &f
		}
	}
	return nil
}
