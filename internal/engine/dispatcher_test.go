package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"smartfarm/internal/models"
)

func TestPerformActions_TurnOnWithDuration(t *testing.T) {
	eng, _, _, devices, _, _, _ := newTestEngine()
	rule := &models.Rule{ID: 1, Name: "irrigate", FarmID: 7, Actions: []models.Action{
		{Type: models.ActionTurnOnDevice, DeviceID: "pump-1", DurationSeconds: ptrInt(300)},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if len(outcomes) != 1 || outcomes[0] != "Turned on device pump-1 for 300 seconds" {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	if len(devices.commands) != 1 {
		t.Fatalf("expected one command, got %d", len(devices.commands))
	}
	cmd := devices.commands[0]
	if cmd.deviceID != "pump-1" || cmd.action != "turn_on" {
		t.Errorf("unexpected command: %+v", cmd)
	}
	if cmd.params["action"] != "turn_on" || cmd.params["duration"] != 300 {
		t.Errorf("unexpected command params: %v", cmd.params)
	}
}

func TestPerformActions_TurnOnWithoutDuration(t *testing.T) {
	eng, _, _, devices, _, _, _ := newTestEngine()
	rule := &models.Rule{ID: 1, Name: "fan on", Actions: []models.Action{
		{Type: models.ActionTurnOnDevice, DeviceID: "fan-2"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if outcomes[0] != "Turned on device fan-2 for 0 seconds" {
		t.Errorf("unexpected outcome: %q", outcomes[0])
	}
	if _, ok := devices.commands[0].params["duration"]; ok {
		t.Error("duration param should be omitted when unset")
	}
}

func TestPerformActions_TurnOff(t *testing.T) {
	eng, _, _, devices, _, _, _ := newTestEngine()
	rule := &models.Rule{ID: 1, Name: "fan off", Actions: []models.Action{
		{Type: models.ActionTurnOffDevice, DeviceID: "fan-2"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if outcomes[0] != "Turned off device fan-2" {
		t.Errorf("unexpected outcome: %q", outcomes[0])
	}
	if devices.commands[0].action != "turn_off" {
		t.Errorf("unexpected command action: %q", devices.commands[0].action)
	}
}

func TestPerformActions_SendNotification(t *testing.T) {
	eng, _, _, _, _, alerts, _ := newTestEngine()
	eng.now = func() time.Time { return time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC) }
	rule := &models.Rule{ID: 1, Name: "soil dry", FarmID: 7, Actions: []models.Action{
		{Type: models.ActionSendNotification, Message: "Soil moisture is low"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if outcomes[0] != "Sent notification: Soil moisture is low" {
		t.Errorf("unexpected outcome: %q", outcomes[0])
	}
	if len(alerts.published) != 1 {
		t.Fatalf("expected one published alert, got %d", len(alerts.published))
	}
	alert := alerts.published[0]
	if alert.farmID != 7 {
		t.Errorf("alert went to farm %d, want 7", alert.farmID)
	}
	if alert.payload["type"] != "RULE_TRIGGERED" || alert.payload["ruleName"] != "soil dry" {
		t.Errorf("unexpected alert payload: %v", alert.payload)
	}
	if alert.payload["timestamp"] != "2026-04-01T09:30:00Z" {
		t.Errorf("unexpected alert timestamp: %v", alert.payload["timestamp"])
	}
}

func TestPerformActions_SendEmail(t *testing.T) {
	eng, store, _, _, _, _, email := newTestEngine()
	store.farms[7] = &models.Farm{ID: 7, Name: "Green Valley", OwnerEmail: "owner@example.com"}
	rule := &models.Rule{ID: 1, Name: "frost warning", FarmID: 7, Actions: []models.Action{
		{Type: models.ActionSendEmail, Message: "Temperature dropped below 2C"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if outcomes[0] != "Sent rule alert email to: owner@example.com" {
		t.Errorf("unexpected outcome: %q", outcomes[0])
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(email.sent))
	}
	msg := email.sent[0]
	if msg.to != "owner@example.com" {
		t.Errorf("email sent to %q", msg.to)
	}
	if msg.subject != "[SmartFarm] Automation rule triggered: frost warning" {
		t.Errorf("unexpected subject: %q", msg.subject)
	}
	if !strings.Contains(msg.body, "Green Valley") || !strings.Contains(msg.body, "Temperature dropped below 2C") {
		t.Errorf("body missing farm or message: %q", msg.body)
	}
}

func TestPerformActions_EmailWithoutOwnerAddressIsSoftFailure(t *testing.T) {
	eng, store, _, devices, _, _, email := newTestEngine()
	store.farms[7] = &models.Farm{ID: 7, Name: "Green Valley"}
	rule := &models.Rule{ID: 1, Name: "mixed", FarmID: 7, Actions: []models.Action{
		{Type: models.ActionTurnOnDevice, DeviceID: "pump-1"},
		{Type: models.ActionSendEmail, Message: "water started"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	want := []string{
		"Turned on device pump-1 for 0 seconds",
		"Error: no email address found for the farm owner.",
	}
	for i, w := range want {
		if outcomes[i] != w {
			t.Errorf("outcome %d = %q, want %q", i, outcomes[i], w)
		}
	}
	if len(devices.commands) != 1 {
		t.Errorf("device command should still be sent, got %d", len(devices.commands))
	}
	if len(email.sent) != 0 {
		t.Errorf("no email should be sent without an owner address")
	}
}

func TestPerformActions_FailureDoesNotStopList(t *testing.T) {
	eng, _, _, devices, _, alerts, _ := newTestEngine()
	devices.sendErr = errors.New("broker unreachable")
	rule := &models.Rule{ID: 1, Name: "resilient", FarmID: 7, Actions: []models.Action{
		{Type: models.ActionTurnOnDevice, DeviceID: "pump-1"},
		{Type: models.ActionSendNotification, Message: "still here"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if outcomes[0] != "Error performing action: broker unreachable" {
		t.Errorf("unexpected error outcome: %q", outcomes[0])
	}
	if outcomes[1] != "Sent notification: still here" {
		t.Errorf("second action should still run, got %q", outcomes[1])
	}
	if len(alerts.published) != 1 {
		t.Errorf("notification should be published despite earlier failure")
	}
}

func TestPerformActions_UnknownFarmBecomesErrorOutcome(t *testing.T) {
	eng, _, _, _, _, _, _ := newTestEngine()
	rule := &models.Rule{ID: 1, Name: "orphan", FarmID: 99, Actions: []models.Action{
		{Type: models.ActionSendEmail, Message: "hello"},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if !strings.HasPrefix(outcomes[0], "Error performing action: ") {
		t.Errorf("expected error outcome, got %q", outcomes[0])
	}
}

func TestPerformActions_UnsupportedType(t *testing.T) {
	eng, _, _, _, _, _, _ := newTestEngine()
	rule := &models.Rule{ID: 1, Name: "odd", Actions: []models.Action{
		{Type: models.ActionType("PLAY_SOUND")},
	}}

	outcomes := eng.performActions(context.Background(), rule)

	if outcomes[0] != "Unsupported action type: PLAY_SOUND" {
		t.Errorf("unexpected outcome: %q", outcomes[0])
	}
}
