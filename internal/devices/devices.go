// Package devices tracks registered devices and pushes actuator commands
// over MQTT.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"smartfarm/internal/db"
	"smartfarm/internal/models"
)

// Devices unseen for this long are considered gone.
const staleAfter = 5 * time.Minute

const commandTopic = "device/%s/control"

// Registry answers device lookups and sends control commands.
type Registry struct {
	db   *db.DB
	mqtt MQTT.Client
	now  func() time.Time
}

func NewRegistry(database *db.DB, client MQTT.Client) *Registry {
	return &Registry{db: database, mqtt: client, now: time.Now}
}

// DeviceStatus returns the connectivity status of a device.
func (r *Registry) DeviceStatus(ctx context.Context, deviceID string) (string, error) {
	device, err := r.db.GetDeviceByDeviceID(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("lookup device %s: %w", deviceID, err)
	}
	return device.Status, nil
}

// SendCommand publishes a control command to one device. Only actuators
// accept commands; commanding a sensor is an error.
func (r *Registry) SendCommand(ctx context.Context, deviceID, action string, params map[string]any) error {
	device, err := r.db.GetDeviceByDeviceID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("lookup device %s: %w", deviceID, err)
	}
	if !isActuator(device.Type) {
		return fmt.Errorf("device %s is a %s, not an actuator", deviceID, device.Type)
	}

	payload := map[string]any{
		"deviceId":  deviceID,
		"action":    action,
		"timestamp": r.now().Format(time.RFC3339),
	}
	for k, v := range params {
		payload[k] = v
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	topic := fmt.Sprintf(commandTopic, deviceID)
	token := r.mqtt.Publish(topic, 1, false, raw)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}

	log.Printf("DEVICES: Sent %s to %s", action, deviceID)
	return nil
}

// MarkStaleDevicesOffline flips devices that stopped reporting to OFFLINE
// and returns the ones it changed so callers can notify.
func (r *Registry) MarkStaleDevicesOffline(ctx context.Context) ([]models.Device, error) {
	cutoff := r.now().Add(-staleAfter)
	changed, err := r.db.MarkDevicesOfflineBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, device := range changed {
		log.Printf("DEVICES: %s stopped reporting, marked OFFLINE", device.DeviceID)
	}
	return changed, nil
}

// Touch records that a device was heard from and updates its status.
func (r *Registry) Touch(ctx context.Context, deviceID, status string) error {
	return r.db.TouchDevice(ctx, deviceID, status, r.now())
}

// Lookup returns the full device record.
func (r *Registry) Lookup(ctx context.Context, deviceID string) (*models.Device, error) {
	return r.db.GetDeviceByDeviceID(ctx, deviceID)
}

func isActuator(deviceType string) bool {
	switch strings.ToUpper(deviceType) {
	case "PUMP", "FAN", "LIGHT", "VALVE", "HEATER", "ACTUATOR":
		return true
	default:
		return false
	}
}
