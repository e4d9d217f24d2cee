package engine

import (
	"context"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"smartfarm/internal/models"
)

const (
	// compareEpsilon tolerates floating-point noise in sensor readings for
	// EQUALS/NOT_EQUALS comparisons.
	compareEpsilon = 0.01

	// sensorFreshness is how far back a device's latest reading may lie
	// before SENSOR_VALUE conditions treat the device as silent.
	sensorFreshness = 24 * time.Hour
)

// evaluateCondition resolves and tests a single condition. It is total: any
// missing device, unknown field, or parse failure evaluates to false and is
// logged, never returned as an error. Resolved actual/expected values are
// written into snapshot for the audit log.
func (e *Engine) evaluateCondition(ctx context.Context, rule *models.Rule, cond models.Condition, snapshot map[string]any) bool {
	switch cond.Type {
	case models.ConditionSensorValue:
		return e.evaluateSensorCondition(ctx, cond, snapshot)
	case models.ConditionTimeRange:
		return evaluateTimeCondition(cond, snapshot, e.now())
	case models.ConditionDeviceStatus:
		return e.evaluateDeviceStatusCondition(ctx, cond, snapshot)
	case models.ConditionWeather:
		return e.evaluateWeatherCondition(ctx, rule, cond, snapshot)
	default:
		log.Printf("ENGINE: Unsupported condition type: %s", cond.Type)
		return false
	}
}

func (e *Engine) evaluateSensorCondition(ctx context.Context, cond models.Condition, snapshot map[string]any) bool {
	if cond.DeviceID == "" {
		log.Printf("ENGINE: Sensor condition is missing a device id")
		return false
	}

	recent, err := e.telemetry.HasRecentData(ctx, cond.DeviceID, sensorFreshness)
	if err != nil {
		log.Printf("ENGINE: Freshness check failed for device %s: %v", cond.DeviceID, err)
		return false
	}
	if !recent {
		log.Printf("ENGINE: No data in the last 24h for device %s", cond.DeviceID)
		return false
	}

	data, err := e.telemetry.LatestSensorData(ctx, cond.DeviceID)
	if err != nil || data == nil {
		log.Printf("ENGINE: No sensor data for device %s: %v", cond.DeviceID, err)
		return false
	}

	actual := resolveSensorField(data, cond.Field)
	if actual == nil {
		log.Printf("ENGINE: No value for sensor field %q on device %s", cond.Field, cond.DeviceID)
		return false
	}

	expected, err := strconv.ParseFloat(cond.Value, 64)
	if err != nil {
		log.Printf("ENGINE: Unparseable condition value %q: %v", cond.Value, err)
		return false
	}

	snapshot[cond.Field] = *actual
	snapshot[cond.Field+"_expected"] = expected

	return compareValues(*actual, cond.Operator, expected)
}

// resolveSensorField maps a condition field name onto one of the snapshot
// metrics. Matching ignores case and underscores, so soil_moisture,
// SoilMoisture and soilmoisture all resolve identically.
func resolveSensorField(data *models.SensorSnapshot, field string) *float64 {
	normalized := strings.ReplaceAll(strings.ToLower(field), "_", "")
	switch normalized {
	case "temperature":
		return data.Temperature
	case "humidity":
		return data.Humidity
	case "soilmoisture":
		return data.SoilMoisture
	case "lightintensity":
		return data.LightIntensity
	case "soilph":
		return data.SoilPH
	default:
		return nil
	}
}

// evaluateTimeCondition tests wall-clock time against either a single
// "HH:MM" instant (true at or after it) or a "HH:MM-HH:MM" range (true
// strictly between start and end). Ranges crossing midnight are not
// supported and evaluate to false.
func evaluateTimeCondition(cond models.Condition, snapshot map[string]any, now time.Time) bool {
	snapshot["current_time"] = now.Format("15:04:05")

	nowMinute := now.Hour()*60 + now.Minute()
	value := cond.Value

	if strings.Contains(value, "-") {
		parts := strings.SplitN(value, "-", 2)
		start, err := parseClock(parts[0])
		if err != nil {
			log.Printf("ENGINE: Bad time range start %q: %v", parts[0], err)
			return false
		}
		end, err := parseClock(parts[1])
		if err != nil {
			log.Printf("ENGINE: Bad time range end %q: %v", parts[1], err)
			return false
		}

		inRange := nowMinute > start && nowMinute < end
		snapshot["time_range"] = value
		snapshot["in_time_range"] = inRange
		return inRange
	}

	target, err := parseClock(value)
	if err != nil {
		log.Printf("ENGINE: Bad time value %q: %v", value, err)
		return false
	}
	return nowMinute >= target
}

// parseClock parses "HH:MM" into a minute-of-day offset.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (e *Engine) evaluateDeviceStatusCondition(ctx context.Context, cond models.Condition, snapshot map[string]any) bool {
	if cond.DeviceID == "" {
		return false
	}

	status, err := e.devices.DeviceStatus(ctx, cond.DeviceID)
	if err != nil {
		log.Printf("ENGINE: Status lookup failed for device %s: %v", cond.DeviceID, err)
		return false
	}

	snapshot["device_"+cond.DeviceID+"_status"] = status
	return strings.EqualFold(status, cond.Value)
}

func (e *Engine) evaluateWeatherCondition(ctx context.Context, rule *models.Rule, cond models.Condition, snapshot map[string]any) bool {
	weather, err := e.weather.CurrentWeather(ctx, rule.FarmID)
	if err != nil || weather == nil {
		log.Printf("ENGINE: No weather data for farm %d: %v", rule.FarmID, err)
		return false
	}

	field := strings.ToLower(cond.Field)
	var actual *float64
	switch field {
	case "rain_amount", "rain":
		actual = weather.RainAmount
	case "temperature":
		actual = weather.Temperature
	case "humidity":
		actual = weather.Humidity
	case "wind_speed":
		actual = weather.WindSpeed
	default:
		log.Printf("ENGINE: Unsupported weather field: %s", cond.Field)
		return false
	}
	if actual == nil {
		return false
	}

	expected, err := strconv.ParseFloat(cond.Value, 64)
	if err != nil {
		log.Printf("ENGINE: Unparseable weather condition value %q: %v", cond.Value, err)
		return false
	}

	snapshot["weather_"+field] = *actual
	snapshot["weather_"+field+"_expected"] = expected

	return compareValues(*actual, cond.Operator, expected)
}

// compareValues applies a numeric comparison operator. EQUALS and NOT_EQUALS
// use compareEpsilon; the reserved BETWEEN/IN_RANGE operators fall through
// to false.
func compareValues(actual float64, op models.Operator, expected float64) bool {
	switch op {
	case models.OpEquals:
		return math.Abs(actual-expected) < compareEpsilon
	case models.OpNotEquals:
		return math.Abs(actual-expected) >= compareEpsilon
	case models.OpGreaterThan:
		return actual > expected
	case models.OpGreaterThanOrEqual:
		return actual >= expected
	case models.OpLessThan:
		return actual < expected
	case models.OpLessThanOrEqual:
		return actual <= expected
	default:
		return false
	}
}
