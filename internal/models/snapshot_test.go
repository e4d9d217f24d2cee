package models

import (
	"testing"
	"time"
)

func TestSnapshotFromPayload(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload map[string]any
		check   func(t *testing.T, s *SensorSnapshot)
	}{
		{
			name: "json numbers",
			payload: map[string]any{
				"temperature": 26.5, "humidity": 70.0, "soilMoisture": 45.5,
				"lightIntensity": 12000.0, "soilPH": 6.4,
			},
			check: func(t *testing.T, s *SensorSnapshot) {
				if s.Temperature == nil || *s.Temperature != 26.5 {
					t.Errorf("temperature = %v", s.Temperature)
				}
				if s.SoilPH == nil || *s.SoilPH != 6.4 {
					t.Errorf("soil pH = %v", s.SoilPH)
				}
			},
		},
		{
			name:    "numeric strings",
			payload: map[string]any{"temperature": "31.2", "humidity": "55"},
			check: func(t *testing.T, s *SensorSnapshot) {
				if s.Temperature == nil || *s.Temperature != 31.2 {
					t.Errorf("temperature = %v", s.Temperature)
				}
				if s.Humidity == nil || *s.Humidity != 55 {
					t.Errorf("humidity = %v", s.Humidity)
				}
			},
		},
		{
			name:    "snake case aliases",
			payload: map[string]any{"soil_moisture": 33.0, "light_intensity": 800.0, "soil_ph": 5.5},
			check: func(t *testing.T, s *SensorSnapshot) {
				if s.SoilMoisture == nil || *s.SoilMoisture != 33.0 {
					t.Errorf("soil moisture = %v", s.SoilMoisture)
				}
				if s.LightIntensity == nil || *s.LightIntensity != 800.0 {
					t.Errorf("light intensity = %v", s.LightIntensity)
				}
				if s.SoilPH == nil || *s.SoilPH != 5.5 {
					t.Errorf("soil pH = %v", s.SoilPH)
				}
			},
		},
		{
			name:    "garbage values stay unset",
			payload: map[string]any{"temperature": "warm", "humidity": true, "soilMoisture": nil},
			check: func(t *testing.T, s *SensorSnapshot) {
				if s.Temperature != nil || s.Humidity != nil || s.SoilMoisture != nil {
					t.Errorf("unparseable metrics should be nil: %+v", s)
				}
			},
		},
		{
			name:    "missing metrics stay unset",
			payload: map[string]any{"temperature": 22.0},
			check: func(t *testing.T, s *SensorSnapshot) {
				if s.Humidity != nil || s.SoilMoisture != nil || s.LightIntensity != nil || s.SoilPH != nil {
					t.Errorf("unreported metrics should be nil: %+v", s)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SnapshotFromPayload("esp32-01", tt.payload, now)
			if s.DeviceID != "esp32-01" {
				t.Errorf("device id = %q", s.DeviceID)
			}
			if !s.Timestamp.Equal(now) {
				t.Errorf("timestamp = %v", s.Timestamp)
			}
			tt.check(t, s)
		})
	}
}
