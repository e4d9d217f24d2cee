package engine

import (
	"context"
	"testing"
	"time"

	"smartfarm/internal/models"
)

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		op       models.Operator
		expected float64
		want     bool
	}{
		{"equals within epsilon", 25.005, models.OpEquals, 25.000, true},
		{"equals outside epsilon", 25.02, models.OpEquals, 25.00, false},
		{"not equals within epsilon", 25.005, models.OpNotEquals, 25.000, false},
		{"not equals outside epsilon", 25.02, models.OpNotEquals, 25.00, true},
		{"greater than", 30.1, models.OpGreaterThan, 30.0, true},
		{"greater than equal boundary", 30.0, models.OpGreaterThan, 30.0, false},
		{"greater than or equal boundary", 30.0, models.OpGreaterThanOrEqual, 30.0, true},
		{"less than", 29.9, models.OpLessThan, 30.0, true},
		{"less than boundary", 30.0, models.OpLessThan, 30.0, false},
		{"less than or equal", 30.0, models.OpLessThanOrEqual, 30.0, true},
		{"reserved between", 5.0, models.OpBetween, 10.0, false},
		{"reserved in range", 5.0, models.OpInRange, 10.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareValues(tt.actual, tt.op, tt.expected); got != tt.want {
				t.Errorf("compareValues(%v, %s, %v) = %t, want %t", tt.actual, tt.op, tt.expected, got, tt.want)
			}
		})
	}
}

func TestEvaluateSensorCondition_SoilMoistureThreshold(t *testing.T) {
	tests := []struct {
		name     string
		moisture float64
		want     bool
	}{
		{"below threshold", 29.9, true},
		{"at threshold", 30.0, false},
		{"above threshold", 35.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _, telemetry, _, _, _, _ := newTestEngine()
			telemetry.snapshots["soil-1"] = &models.SensorSnapshot{
				DeviceID:     "soil-1",
				SoilMoisture: ptrFloat(tt.moisture),
				Timestamp:    time.Now(),
			}

			cond := models.Condition{
				Type:     models.ConditionSensorValue,
				Field:    "SOIL_MOISTURE",
				Operator: models.OpLessThan,
				Value:    "30",
				DeviceID: "soil-1",
			}

			snapshot := map[string]any{}
			if got := eng.evaluateSensorCondition(context.Background(), cond, snapshot); got != tt.want {
				t.Errorf("moisture %.1f: got %t, want %t", tt.moisture, got, tt.want)
			}
		})
	}
}

func TestEvaluateSensorCondition_NoRecentData(t *testing.T) {
	eng, _, telemetry, _, _, _, _ := newTestEngine()
	telemetry.snapshots["soil-1"] = &models.SensorSnapshot{
		DeviceID:     "soil-1",
		SoilMoisture: ptrFloat(10),
	}
	telemetry.stale["soil-1"] = true

	cond := models.Condition{
		Type:     models.ConditionSensorValue,
		Field:    "soil_moisture",
		Operator: models.OpLessThan,
		Value:    "30",
		DeviceID: "soil-1",
	}

	// Stale telemetry evaluates to false, it is not an error.
	if eng.evaluateSensorCondition(context.Background(), cond, map[string]any{}) {
		t.Error("stale device should evaluate to false")
	}
}

func TestEvaluateSensorCondition_FieldNormalization(t *testing.T) {
	for _, field := range []string{"soil_moisture", "SoilMoisture", "soilmoisture", "SOIL_MOISTURE"} {
		t.Run(field, func(t *testing.T) {
			eng, _, telemetry, _, _, _, _ := newTestEngine()
			telemetry.snapshots["d1"] = &models.SensorSnapshot{
				DeviceID:     "d1",
				SoilMoisture: ptrFloat(20),
				Timestamp:    time.Now(),
			}

			cond := models.Condition{
				Type:     models.ConditionSensorValue,
				Field:    field,
				Operator: models.OpLessThan,
				Value:    "30",
				DeviceID: "d1",
			}
			if !eng.evaluateSensorCondition(context.Background(), cond, map[string]any{}) {
				t.Errorf("field %q did not resolve to soil moisture", field)
			}
		})
	}
}

func TestEvaluateSensorCondition_Unresolvable(t *testing.T) {
	eng, _, telemetry, _, _, _, _ := newTestEngine()
	telemetry.snapshots["d1"] = &models.SensorSnapshot{
		DeviceID:    "d1",
		Temperature: ptrFloat(22),
		Timestamp:   time.Now(),
	}

	tests := []struct {
		name string
		cond models.Condition
	}{
		{"missing device id", models.Condition{Type: models.ConditionSensorValue, Field: "temperature", Operator: models.OpLessThan, Value: "30"}},
		{"unknown device", models.Condition{Type: models.ConditionSensorValue, Field: "temperature", Operator: models.OpLessThan, Value: "30", DeviceID: "ghost"}},
		{"unknown field", models.Condition{Type: models.ConditionSensorValue, Field: "co2", Operator: models.OpLessThan, Value: "30", DeviceID: "d1"}},
		{"unreported field", models.Condition{Type: models.ConditionSensorValue, Field: "soil_ph", Operator: models.OpLessThan, Value: "7", DeviceID: "d1"}},
		{"unparseable value", models.Condition{Type: models.ConditionSensorValue, Field: "temperature", Operator: models.OpLessThan, Value: "warm", DeviceID: "d1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if eng.evaluateSensorCondition(context.Background(), tt.cond, map[string]any{}) {
				t.Error("unresolvable condition should evaluate to false")
			}
		})
	}
}

func TestEvaluateSensorCondition_SnapshotValues(t *testing.T) {
	eng, _, telemetry, _, _, _, _ := newTestEngine()
	telemetry.snapshots["d1"] = &models.SensorSnapshot{
		DeviceID:    "d1",
		Temperature: ptrFloat(31.5),
		Timestamp:   time.Now(),
	}

	cond := models.Condition{
		Type:     models.ConditionSensorValue,
		Field:    "temperature",
		Operator: models.OpGreaterThan,
		Value:    "30",
		DeviceID: "d1",
	}

	snapshot := map[string]any{}
	eng.evaluateSensorCondition(context.Background(), cond, snapshot)

	if got := snapshot["temperature"]; got != 31.5 {
		t.Errorf("snapshot[temperature] = %v, want 31.5", got)
	}
	if got := snapshot["temperature_expected"]; got != 30.0 {
		t.Errorf("snapshot[temperature_expected] = %v, want 30", got)
	}
}

func clock(hour, minute int) time.Time {
	return time.Date(2026, time.March, 14, hour, minute, 0, 0, time.Local)
}

func TestEvaluateTimeCondition_SingleInstant(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		value string
		want  bool
	}{
		{"after", clock(10, 30), "09:00", true},
		{"exactly at", clock(10, 30), "10:30", true},
		{"before", clock(10, 30), "11:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := models.Condition{Type: models.ConditionTimeRange, Value: tt.value}
			if got := evaluateTimeCondition(cond, map[string]any{}, tt.now); got != tt.want {
				t.Errorf("at %s, value %q: got %t, want %t", tt.now.Format("15:04"), tt.value, got, tt.want)
			}
		})
	}
}

func TestEvaluateTimeCondition_Range(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		value string
		want  bool
	}{
		{"inside range", clock(10, 30), "09:00-17:00", true},
		{"at range start", clock(9, 0), "09:00-17:00", false},
		{"at range end", clock(17, 0), "09:00-17:00", false},
		{"outside range", clock(20, 0), "09:00-17:00", false},
		{"with spaces", clock(10, 30), "09:00 - 17:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := models.Condition{Type: models.ConditionTimeRange, Value: tt.value}
			if got := evaluateTimeCondition(cond, map[string]any{}, tt.now); got != tt.want {
				t.Errorf("at %s, range %q: got %t, want %t", tt.now.Format("15:04"), tt.value, got, tt.want)
			}
		})
	}
}

func TestEvaluateTimeCondition_MidnightCrossingUnsupported(t *testing.T) {
	// Ranges crossing midnight are documented as unsupported: they must be
	// false even at times a wraparound interpretation would accept.
	cond := models.Condition{Type: models.ConditionTimeRange, Value: "22:00-06:00"}
	for _, now := range []time.Time{clock(23, 0), clock(5, 0), clock(12, 0)} {
		if evaluateTimeCondition(cond, map[string]any{}, now) {
			t.Errorf("midnight-crossing range evaluated true at %s", now.Format("15:04"))
		}
	}
}

func TestEvaluateTimeCondition_Malformed(t *testing.T) {
	for _, value := range []string{"", "25:00", "9am", "09:00-25:00", "09:00-"} {
		cond := models.Condition{Type: models.ConditionTimeRange, Value: value}
		if evaluateTimeCondition(cond, map[string]any{}, clock(10, 0)) {
			t.Errorf("malformed value %q evaluated true", value)
		}
	}
}

func TestEvaluateTimeCondition_Snapshot(t *testing.T) {
	cond := models.Condition{Type: models.ConditionTimeRange, Value: "09:00-17:00"}
	snapshot := map[string]any{}
	evaluateTimeCondition(cond, snapshot, clock(10, 30))

	if snapshot["time_range"] != "09:00-17:00" {
		t.Errorf("snapshot[time_range] = %v", snapshot["time_range"])
	}
	if snapshot["in_time_range"] != true {
		t.Errorf("snapshot[in_time_range] = %v", snapshot["in_time_range"])
	}
	if _, ok := snapshot["current_time"]; !ok {
		t.Error("snapshot is missing current_time")
	}
}

func TestEvaluateDeviceStatusCondition(t *testing.T) {
	eng, _, _, devices, _, _, _ := newTestEngine()
	devices.statuses["pump-1"] = "ONLINE"

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"exact match", "ONLINE", true},
		{"case insensitive", "online", true},
		{"mismatch", "OFFLINE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := models.Condition{Type: models.ConditionDeviceStatus, DeviceID: "pump-1", Value: tt.value}
			snapshot := map[string]any{}
			if got := eng.evaluateDeviceStatusCondition(context.Background(), cond, snapshot); got != tt.want {
				t.Errorf("value %q: got %t, want %t", tt.value, got, tt.want)
			}
			if snapshot["device_pump-1_status"] != "ONLINE" {
				t.Errorf("snapshot status = %v", snapshot["device_pump-1_status"])
			}
		})
	}

	t.Run("unknown device", func(t *testing.T) {
		cond := models.Condition{Type: models.ConditionDeviceStatus, DeviceID: "ghost", Value: "ONLINE"}
		if eng.evaluateDeviceStatusCondition(context.Background(), cond, map[string]any{}) {
			t.Error("unknown device should evaluate to false")
		}
	})
}

func TestEvaluateWeatherCondition(t *testing.T) {
	eng, _, _, _, weather, _, _ := newTestEngine()
	weather.byFarm[7] = &models.Weather{
		FarmID:      7,
		Temperature: ptrFloat(28),
		Humidity:    ptrFloat(60),
		WindSpeed:   ptrFloat(12),
		RainAmount:  ptrFloat(4.5),
	}
	rule := &models.Rule{ID: 1, FarmID: 7}

	tests := []struct {
		name  string
		field string
		op    models.Operator
		value string
		want  bool
	}{
		{"rain amount", "rain_amount", models.OpGreaterThan, "2", true},
		{"rain alias", "rain", models.OpGreaterThan, "2", true},
		{"temperature", "temperature", models.OpLessThan, "30", true},
		{"humidity", "humidity", models.OpGreaterThan, "80", false},
		{"wind speed", "wind_speed", models.OpGreaterThanOrEqual, "12", true},
		{"unsupported field", "cloud_cover", models.OpGreaterThan, "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := models.Condition{Type: models.ConditionWeather, Field: tt.field, Operator: tt.op, Value: tt.value}
			if got := eng.evaluateWeatherCondition(context.Background(), rule, cond, map[string]any{}); got != tt.want {
				t.Errorf("field %q: got %t, want %t", tt.field, got, tt.want)
			}
		})
	}

	t.Run("no weather for farm", func(t *testing.T) {
		cond := models.Condition{Type: models.ConditionWeather, Field: "temperature", Operator: models.OpLessThan, Value: "30"}
		other := &models.Rule{ID: 2, FarmID: 99}
		if eng.evaluateWeatherCondition(context.Background(), other, cond, map[string]any{}) {
			t.Error("missing weather snapshot should evaluate to false")
		}
	})
}
