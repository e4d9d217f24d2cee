package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"smartfarm/internal/models"
)

// performActions runs a fired rule's actions in list order. Each action is
// isolated: a failure becomes an error-outcome string and the remaining
// actions still run. The returned outcomes preserve action order.
func (e *Engine) performActions(ctx context.Context, rule *models.Rule) []string {
	performed := make([]string, 0, len(rule.Actions))

	for _, action := range rule.Actions {
		outcome, err := e.performAction(ctx, rule, action)
		if err != nil {
			outcome = "Error performing action: " + err.Error()
			log.Printf("ENGINE:   action failed: %s", outcome)
		} else {
			log.Printf("ENGINE:   performed: %s", outcome)
		}
		performed = append(performed, outcome)
	}

	return performed
}

func (e *Engine) performAction(ctx context.Context, rule *models.Rule, action models.Action) (string, error) {
	switch action.Type {
	case models.ActionTurnOnDevice:
		return e.turnOnDevice(ctx, action)
	case models.ActionTurnOffDevice:
		return e.turnOffDevice(ctx, action)
	case models.ActionSendNotification:
		return e.sendNotification(ctx, rule, action)
	case models.ActionSendEmail:
		return e.sendEmailForRule(ctx, rule, action)
	default:
		return "Unsupported action type: " + string(action.Type), nil
	}
}

func (e *Engine) turnOnDevice(ctx context.Context, action models.Action) (string, error) {
	params := map[string]any{"action": "turn_on"}
	if action.DurationSeconds != nil {
		params["duration"] = *action.DurationSeconds
	}

	if err := e.devices.SendCommand(ctx, action.DeviceID, "turn_on", params); err != nil {
		return "", err
	}

	duration := 0
	if action.DurationSeconds != nil {
		duration = *action.DurationSeconds
	}
	return fmt.Sprintf("Turned on device %s for %d seconds", action.DeviceID, duration), nil
}

func (e *Engine) turnOffDevice(ctx context.Context, action models.Action) (string, error) {
	params := map[string]any{"action": "turn_off"}

	if err := e.devices.SendCommand(ctx, action.DeviceID, "turn_off", params); err != nil {
		return "", err
	}

	return fmt.Sprintf("Turned off device %s", action.DeviceID), nil
}

// sendNotification publishes an in-app alert to the rule's farm. Rule
// firings always notify; the cooldown cache used by the plant-health alert
// path does not apply here.
func (e *Engine) sendNotification(ctx context.Context, rule *models.Rule, action models.Action) (string, error) {
	payload := map[string]any{
		"type":      "RULE_TRIGGERED",
		"ruleName":  rule.Name,
		"message":   action.Message,
		"timestamp": e.now().Format(time.RFC3339),
	}

	if err := e.alerts.PublishFarmAlert(ctx, rule.FarmID, payload); err != nil {
		return "", err
	}

	return "Sent notification: " + action.Message, nil
}

func (e *Engine) sendEmailForRule(ctx context.Context, rule *models.Rule, action models.Action) (string, error) {
	farm, err := e.store.FarmByID(ctx, rule.FarmID)
	if err != nil {
		return "", err
	}
	if farm.OwnerEmail == "" {
		// Soft failure: recorded as an outcome, not raised.
		return "Error: no email address found for the farm owner.", nil
	}

	subject := "[SmartFarm] Automation rule triggered: " + rule.Name
	body := fmt.Sprintf("Hello,\n\n"+
		"Your automation rule fired at farm %q.\n\n"+
		"Rule: %s\n"+
		"Message: %s\n\n"+
		"The system has performed the configured actions.\n\n"+
		"Regards,\nThe SmartFarm team",
		farm.Name, rule.Name, action.Message)

	if err := e.email.Send(farm.OwnerEmail, subject, body); err != nil {
		return "", err
	}

	return "Sent rule alert email to: " + farm.OwnerEmail, nil
}
