package engine

import (
	"context"
	"time"

	"smartfarm/internal/models"
)

// TelemetryProvider reads already-materialized sensor snapshots. The engine
// never queries time-series storage directly.
type TelemetryProvider interface {
	// LatestSensorData returns the most recent snapshot for a device, or
	// nil when the device never reported.
	LatestSensorData(ctx context.Context, deviceID string) (*models.SensorSnapshot, error)
	// HasRecentData reports whether the device produced any reading within
	// the given window.
	HasRecentData(ctx context.Context, deviceID string, within time.Duration) (bool, error)
}

// DeviceProvider exposes the device registry and the command channel.
type DeviceProvider interface {
	DeviceStatus(ctx context.Context, deviceID string) (string, error)
	// SendCommand is fire-and-forget from the rule's point of view; an
	// error means the command could not be handed to the transport.
	SendCommand(ctx context.Context, deviceID, action string, params map[string]any) error
}

// WeatherProvider serves the farm's cached current weather. A nil snapshot
// means no weather data is available for the farm.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, farmID int64) (*models.Weather, error)
}

// AlertPublisher pushes in-app alerts to live farm subscribers.
type AlertPublisher interface {
	PublishFarmAlert(ctx context.Context, farmID int64, payload map[string]any) error
}

// EmailSender delivers a single message. Implementations are best-effort;
// the dispatcher converts any error into a per-action outcome string.
type EmailSender interface {
	Send(to, subject, body string) error
}

// RuleStore is the persistence surface the engine needs: rule reads, farm
// owner lookup, and the combined audit-log append plus stats update.
type RuleStore interface {
	EnabledRules(ctx context.Context) ([]models.Rule, error)
	EnabledRulesForFarm(ctx context.Context, farmID int64) ([]models.Rule, error)
	RuleByID(ctx context.Context, ruleID int64) (*models.Rule, error)
	FarmByID(ctx context.Context, farmID int64) (*models.Farm, error)
	// RecordExecution appends the audit entry and, when updateStats is
	// true, bumps the rule's execution_count and last_executed_at in the
	// same transaction.
	RecordExecution(ctx context.Context, entry *models.ExecutionLogEntry, updateStats bool) error
}
