// Package notify delivers alerts to farm owners: in-app notifications over
// a Redis pub/sub channel per farm, and email for conditions that warrant
// attention. Automatic alerts are rate-limited through a cooldown window;
// rule-triggered notifications go out unconditionally.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"smartfarm/internal/models"
)

// Alert thresholds for immediate sensor anomaly warnings.
const (
	highTempThreshold        = 38.0
	lowSoilMoistureThreshold = 20.0
	highHumidityThreshold    = 90.0
)

// Sender is the mail transport. Satisfied by Mailer.
type Sender interface {
	Send(to, subject, body string) error
}

// Notifier is the single outbound alert path.
type Notifier struct {
	rdb      *redis.Client
	mailer   Sender
	cooldown *Cooldown
	now      func() time.Time
}

func NewNotifier(rdb *redis.Client, mailer Sender) *Notifier {
	return &Notifier{
		rdb:      rdb,
		mailer:   mailer,
		cooldown: NewCooldown(rdb),
		now:      time.Now,
	}
}

func alertChannel(farmID int64) string {
	return fmt.Sprintf("farm:%d:alerts", farmID)
}

// PublishFarmAlert pushes an in-app alert onto the farm's channel.
func (n *Notifier) PublishFarmAlert(ctx context.Context, farmID int64, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return n.rdb.Publish(ctx, alertChannel(farmID), raw).Err()
}

// NotifyDeviceOffline alerts the owner that a device lost its connection.
// Repeat alerts for the same device are suppressed by the cooldown.
func (n *Notifier) NotifyDeviceOffline(ctx context.Context, farm *models.Farm, device *models.Device) {
	if !n.cooldown.Allow(ctx, farm.ID, "DEVICE_OFFLINE", device.DeviceID) {
		log.Printf("NOTIFY: Offline alert for %s suppressed by cooldown", device.DeviceID)
		return
	}

	n.publish(ctx, farm.ID, map[string]any{
		"type":      "DEVICE_OFFLINE",
		"deviceId":  device.DeviceID,
		"message":   fmt.Sprintf("Device %q (ID: %s) lost its connection.", device.Name, device.DeviceID),
		"timestamp": n.now().Format(time.RFC3339),
	})

	if farm.OwnerEmail == "" {
		return
	}
	subject := fmt.Sprintf("[SmartFarm Alert] Device %q is offline", device.Name)
	body := fmt.Sprintf(
		"Device %q (ID: %s) at farm %q has lost its connection.\n\n"+
			"Please check the device's power supply and network connection.",
		device.Name, device.DeviceID, farm.Name)
	n.send(farm.OwnerEmail, subject, body)
}

// NotifyPlantHealthAlert emails the owner about a detected plant-health
// problem. LOW severity stays in-app only; MEDIUM and above also mail,
// gated by a per-alert-type cooldown.
func (n *Notifier) NotifyPlantHealthAlert(ctx context.Context, farm *models.Farm, alert *models.PlantHealthAlert) {
	n.publish(ctx, farm.ID, map[string]any{
		"type":        "PLANT_HEALTH",
		"alertType":   alert.AlertType,
		"severity":    alert.Severity,
		"description": alert.Description,
		"suggestion":  alert.Suggestion,
		"timestamp":   n.now().Format(time.RFC3339),
	})

	if alert.Severity == models.SeverityLow {
		return
	}
	if !n.cooldown.Allow(ctx, farm.ID, "PLANT_HEALTH_"+string(alert.AlertType), "") {
		log.Printf("NOTIFY: Health alert %s for farm %d suppressed by cooldown", alert.AlertType, farm.ID)
		return
	}
	if farm.OwnerEmail == "" {
		return
	}

	subject := fmt.Sprintf("[SmartFarm Alert - %s] %s at %s", alert.Severity, alert.AlertType, farm.Name)
	body := fmt.Sprintf(
		"The system detected a plant health alert at farm %q.\n\n"+
			"Alert type: %s\n"+
			"Severity: %s\n"+
			"Description: %s\n"+
			"Suggestion: %s\n\n"+
			"Please sign in to the system for details.",
		farm.Name, alert.AlertType, alert.Severity, alert.Description, alert.Suggestion)
	n.send(farm.OwnerEmail, subject, body)
}

// NotifySensorAnomalies checks one reading against the hard thresholds and
// alerts immediately on a breach, without waiting for a rule pass.
func (n *Notifier) NotifySensorAnomalies(ctx context.Context, farm *models.Farm, device *models.Device, data *models.SensorSnapshot) {
	if data.Temperature != nil && *data.Temperature > highTempThreshold {
		n.sensorAnomaly(ctx, farm, device, "SENSOR_HIGH_TEMP",
			fmt.Sprintf("[SmartFarm Alert] High temperature at %s", farm.Name),
			"Temperature", *data.Temperature, "°C",
			"abnormally high", "Check the cooling system or shade netting.")
	}
	if data.SoilMoisture != nil && *data.SoilMoisture < lowSoilMoistureThreshold {
		n.sensorAnomaly(ctx, farm, device, "SENSOR_LOW_SOIL",
			fmt.Sprintf("[SmartFarm Alert] Low soil moisture at %s", farm.Name),
			"Soil moisture", *data.SoilMoisture, "%",
			"critically low", "Check the irrigation system immediately.")
	}
	if data.Humidity != nil && *data.Humidity > highHumidityThreshold {
		n.sensorAnomaly(ctx, farm, device, "SENSOR_HIGH_HUMIDITY",
			fmt.Sprintf("[SmartFarm Alert] High air humidity at %s", farm.Name),
			"Air humidity", *data.Humidity, "%",
			"high, risking fungal disease", "Increase ventilation and check the fans.")
	}
}

func (n *Notifier) sensorAnomaly(ctx context.Context, farm *models.Farm, device *models.Device,
	kind, subject, metric string, value float64, unit, issue, suggestion string) {

	if !n.cooldown.Allow(ctx, farm.ID, kind, device.DeviceID) {
		return
	}

	n.publish(ctx, farm.ID, map[string]any{
		"type":      kind,
		"deviceId":  device.DeviceID,
		"metric":    metric,
		"value":     value,
		"message":   fmt.Sprintf("%s is %s: %.1f %s", metric, issue, value, unit),
		"timestamp": n.now().Format(time.RFC3339),
	})

	if farm.OwnerEmail == "" {
		return
	}
	body := fmt.Sprintf(
		"Hello,\n\n"+
			"The SmartFarm system recorded an abnormal sensor reading at farm %q.\n\n"+
			"--- ALERT DETAILS ---\n"+
			"Device: %s (ID: %s)\n"+
			"Metric: %s\n"+
			"Measured value: %.1f %s\n"+
			"Problem: %s.\n"+
			"Suggestion: %s\n\n"+
			"Please sign in to the system to follow up.\n\n"+
			"Regards,\nThe SmartFarm team",
		farm.Name, device.Name, device.DeviceID, metric, value, unit, issue, suggestion)
	n.send(farm.OwnerEmail, subject, body)
	log.Printf("NOTIFY: Sent %s alert for farm %d", kind, farm.ID)
}

func (n *Notifier) publish(ctx context.Context, farmID int64, payload map[string]any) {
	if err := n.PublishFarmAlert(ctx, farmID, payload); err != nil {
		log.Printf("NOTIFY: Failed to publish alert for farm %d: %v", farmID, err)
	}
}

func (n *Notifier) send(to, subject, body string) {
	if err := n.mailer.Send(to, subject, body); err != nil {
		log.Printf("NOTIFY: Failed to send email to %s: %v", to, err)
	}
}
