// Package ingest consumes device MQTT traffic: telemetry readings and
// connectivity status. A telemetry message updates the stores, checks for
// anomalies, and queues a rule pass for the device's farm.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"smartfarm/internal/db"
	"smartfarm/internal/devices"
	"smartfarm/internal/health"
	"smartfarm/internal/models"
	"smartfarm/internal/notify"
	"smartfarm/internal/taskqueue"
	"smartfarm/internal/telemetry"
	"smartfarm/internal/utils"
)

const (
	telemetryTopic = "devices/+/telemetry"
	statusTopic    = "devices/+/status"
)

// Handler processes inbound device messages.
type Handler struct {
	db        *db.DB
	telemetry *telemetry.Store
	devices   *devices.Registry
	notifier  *notify.Notifier
	analyzer  *health.Analyzer
}

func NewHandler(database *db.DB, store *telemetry.Store, registry *devices.Registry,
	notifier *notify.Notifier, analyzer *health.Analyzer) *Handler {
	return &Handler{
		db:        database,
		telemetry: store,
		devices:   registry,
		notifier:  notifier,
		analyzer:  analyzer,
	}
}

// Subscribe attaches the handler to the device topics.
func (h *Handler) Subscribe(client MQTT.Client) error {
	if token := client.Subscribe(telemetryTopic, 1, h.handleTelemetry); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := client.Subscribe(statusTopic, 1, h.handleStatus); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("INGEST: Subscribed to %s and %s", telemetryTopic, statusTopic)
	return nil
}

func (h *Handler) handleTelemetry(_ MQTT.Client, msg MQTT.Message) {
	ctx := context.Background()
	deviceID := utils.ParseDeviceID(msg.Topic())
	if deviceID == "" {
		log.Printf("INGEST: Dropping message with unparseable topic %s", msg.Topic())
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		log.Printf("INGEST: Dropping malformed telemetry from %s: %v", deviceID, err)
		return
	}

	device, err := h.devices.Lookup(ctx, deviceID)
	if err != nil {
		log.Printf("INGEST: Dropping telemetry from unregistered device %s: %v", deviceID, err)
		return
	}

	snapshot := models.SnapshotFromPayload(deviceID, payload, time.Now())
	snapshot.FarmID = device.FarmID

	if err := h.telemetry.Record(ctx, snapshot); err != nil {
		log.Printf("INGEST: Failed to record reading from %s: %v", deviceID, err)
	}
	if err := h.devices.Touch(ctx, deviceID, models.DeviceOnline); err != nil {
		log.Printf("INGEST: Failed to touch device %s: %v", deviceID, err)
	}

	if err := h.notifier.PublishFarmAlert(ctx, device.FarmID, map[string]any{
		"type":     "SENSOR_DATA",
		"deviceId": deviceID,
		"data":     payload,
	}); err != nil {
		log.Printf("INGEST: Failed to publish live data for farm %d: %v", device.FarmID, err)
	}

	farm, err := h.db.GetFarmByID(ctx, device.FarmID)
	if err != nil {
		log.Printf("INGEST: Farm %d lookup failed: %v", device.FarmID, err)
	} else {
		h.notifier.NotifySensorAnomalies(ctx, farm, device, snapshot)
	}

	// A fresh reading may flip rule verdicts and health checks, so both
	// re-run off the hot path.
	if err := taskqueue.EnqueueFarmEvaluation(device.FarmID); err != nil {
		log.Printf("INGEST: Failed to queue rule pass for farm %d: %v", device.FarmID, err)
	}
	go func() {
		if _, err := h.analyzer.Analyze(context.Background(), device.FarmID); err != nil {
			log.Printf("INGEST: Health analysis for farm %d failed: %v", device.FarmID, err)
		}
	}()
}

func (h *Handler) handleStatus(_ MQTT.Client, msg MQTT.Message) {
	ctx := context.Background()
	deviceID := utils.ParseDeviceID(msg.Topic())
	if deviceID == "" {
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		log.Printf("INGEST: Dropping malformed status from %s: %v", deviceID, err)
		return
	}
	if payload.Status != models.DeviceOnline && payload.Status != models.DeviceOffline {
		log.Printf("INGEST: Ignoring unknown status %q from %s", payload.Status, deviceID)
		return
	}

	if err := h.devices.Touch(ctx, deviceID, payload.Status); err != nil {
		log.Printf("INGEST: Failed to update status for %s: %v", deviceID, err)
		return
	}
	log.Printf("INGEST: Device %s reported %s", deviceID, payload.Status)

	if payload.Status == models.DeviceOffline {
		device, err := h.devices.Lookup(ctx, deviceID)
		if err != nil {
			return
		}
		farm, err := h.db.GetFarmByID(ctx, device.FarmID)
		if err != nil {
			return
		}
		h.notifier.NotifyDeviceOffline(ctx, farm, device)
	}
}
