// Package health runs the plant-health heuristics over each farm's latest
// sensor readings. Seven checks produce alerts; the active alert set rolls
// up into a 0-100 health score.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"smartfarm/internal/models"
)

// Check thresholds.
const (
	fungusHumidityThreshold = 85.0
	fungusTempMin           = 20.0
	fungusTempMax           = 28.0

	heatStressThreshold = 38.0
	droughtThreshold    = 30.0
	coldThreshold       = 12.0

	moistureChangeThreshold = 30.0
	moistureChangeWindow    = 6 * time.Hour

	lightThreshold = 1000.0

	phMin = 5.0
	phMax = 7.5
)

// TelemetrySource supplies the readings the checks run against.
type TelemetrySource interface {
	LatestFarmSnapshot(ctx context.Context, farmID int64) (*models.SensorSnapshot, error)
	FarmSnapshotAt(ctx context.Context, farmID int64, at time.Time) (*models.SensorSnapshot, error)
}

// AlertStore persists alerts and resolves farms.
type AlertStore interface {
	GetUnresolvedAlerts(ctx context.Context, farmID int64) ([]models.PlantHealthAlert, error)
	InsertHealthAlert(ctx context.Context, alert *models.PlantHealthAlert) error
	GetFarmByID(ctx context.Context, id int64) (*models.Farm, error)
	GetFarmIDs(ctx context.Context) ([]int64, error)
}

// Notifier delivers new alerts to the farm owner.
type Notifier interface {
	NotifyPlantHealthAlert(ctx context.Context, farm *models.Farm, alert *models.PlantHealthAlert)
}

// SeverityStats counts active alerts by severity.
type SeverityStats struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Report is one farm's health analysis result.
type Report struct {
	FarmID            int64                     `json:"farm_id"`
	HealthScore       int                       `json:"health_score"`
	Status            string                    `json:"status"`
	ActiveAlerts      []models.PlantHealthAlert `json:"active_alerts"`
	Conditions        map[string]any            `json:"conditions"`
	OverallSuggestion string                    `json:"overall_suggestion"`
	AnalyzedAt        time.Time                 `json:"analyzed_at"`
	SeverityStats     SeverityStats             `json:"severity_stats"`
}

// Analyzer evaluates the health checks.
type Analyzer struct {
	telemetry TelemetrySource
	store     AlertStore
	notifier  Notifier
	now       func() time.Time
}

func NewAnalyzer(telemetry TelemetrySource, store AlertStore, notifier Notifier) *Analyzer {
	return &Analyzer{telemetry: telemetry, store: store, notifier: notifier, now: time.Now}
}

// Analyze runs every check against a farm's latest reading, persists and
// notifies any new alerts, and returns the health report. A check whose
// alert type is already active stays suppressed until that alert resolves.
func (a *Analyzer) Analyze(ctx context.Context, farmID int64) (*Report, error) {
	latest, err := a.telemetry.LatestFarmSnapshot(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("load farm %d readings: %w", farmID, err)
	}
	if latest == nil {
		log.Printf("HEALTH: No sensor data for farm %d", farmID)
		return a.emptyReport(farmID), nil
	}

	existing, err := a.store.GetUnresolvedAlerts(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("load active alerts for farm %d: %w", farmID, err)
	}
	activeTypes := make(map[models.AlertType]bool, len(existing))
	for _, alert := range existing {
		activeTypes[alert.AlertType] = true
	}

	newAlerts := a.runChecks(ctx, farmID, latest, activeTypes)
	for i := range newAlerts {
		if err := a.store.InsertHealthAlert(ctx, &newAlerts[i]); err != nil {
			log.Printf("HEALTH: Failed to save %s alert for farm %d: %v", newAlerts[i].AlertType, farmID, err)
		}
	}
	if len(newAlerts) > 0 {
		log.Printf("HEALTH: Created %d new alerts for farm %d", len(newAlerts), farmID)
		a.notifyNewAlerts(ctx, farmID, newAlerts)
	}

	active := append(existing, newAlerts...)
	score := healthScore(active)

	return &Report{
		FarmID:            farmID,
		HealthScore:       score,
		Status:            statusFromScore(score),
		ActiveAlerts:      active,
		Conditions:        conditionsMap(latest),
		OverallSuggestion: overallSuggestion(active),
		AnalyzedAt:        a.now(),
		SeverityStats:     severityStats(active),
	}, nil
}

// AnalyzeAll sweeps every farm. One farm's failure never stops the sweep.
func (a *Analyzer) AnalyzeAll(ctx context.Context) {
	farmIDs, err := a.store.GetFarmIDs(ctx)
	if err != nil {
		log.Printf("HEALTH: Failed to list farms: %v", err)
		return
	}
	for _, farmID := range farmIDs {
		if _, err := a.Analyze(ctx, farmID); err != nil {
			log.Printf("HEALTH: Analysis of farm %d failed: %v", farmID, err)
		}
	}
}

func (a *Analyzer) runChecks(ctx context.Context, farmID int64, data *models.SensorSnapshot, activeTypes map[models.AlertType]bool) []models.PlantHealthAlert {
	checks := []struct {
		alertType models.AlertType
		run       func(context.Context, int64, *models.SensorSnapshot) *models.PlantHealthAlert
	}{
		{models.AlertFungus, a.checkFungusRisk},
		{models.AlertHeatStress, a.checkHeatStress},
		{models.AlertDrought, a.checkDrought},
		{models.AlertCold, a.checkColdRisk},
		{models.AlertUnstableMoisture, a.checkUnstableMoisture},
		{models.AlertLowLight, a.checkLowLight},
		{models.AlertPHAbnormal, a.checkPHAbnormal},
	}

	var alerts []models.PlantHealthAlert
	for _, check := range checks {
		if activeTypes[check.alertType] {
			continue
		}
		if alert := check.run(ctx, farmID, data); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// Humidity above 85% with temperature in the 20-28°C band favors fungal
// growth.
func (a *Analyzer) checkFungusRisk(_ context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.Humidity == nil || data.Temperature == nil {
		return nil
	}
	if *data.Humidity <= fungusHumidityThreshold || *data.Temperature < fungusTempMin || *data.Temperature > fungusTempMax {
		return nil
	}

	severity := models.SeverityMedium
	if *data.Humidity > 90 {
		severity = models.SeverityHigh
	}
	return a.newAlert(farmID, models.AlertFungus, severity,
		fmt.Sprintf("High fungus risk: humidity %.1f%% and temperature %.1f°C favor fungal growth",
			*data.Humidity, *data.Temperature),
		"Increase ventilation, water less, consider a preventive fungicide treatment.",
		data)
}

func (a *Analyzer) checkHeatStress(_ context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.Temperature == nil || *data.Temperature <= heatStressThreshold {
		return nil
	}

	severity := models.SeverityHigh
	if *data.Temperature > 42 {
		severity = models.SeverityCritical
	}
	return a.newAlert(farmID, models.AlertHeatStress, severity,
		fmt.Sprintf("Plants under heat stress: temperature %.1f°C exceeds the safe limit", *data.Temperature),
		"Mist to cool down, provide shade, water lightly in the evening.",
		data)
}

func (a *Analyzer) checkDrought(_ context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.SoilMoisture == nil || *data.SoilMoisture >= droughtThreshold {
		return nil
	}

	severity := models.SeverityHigh
	if *data.SoilMoisture < 20 {
		severity = models.SeverityCritical
	}
	return a.newAlert(farmID, models.AlertDrought, severity,
		fmt.Sprintf("Plants severely short of water: soil moisture down to %.1f%%", *data.SoilMoisture),
		"Water immediately, check the irrigation system, consider drip irrigation.",
		data)
}

// Temperature below 12°C only counts at night (22:00-06:00).
func (a *Analyzer) checkColdRisk(_ context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.Temperature == nil || *data.Temperature >= coldThreshold {
		return nil
	}
	hour := a.now().Hour()
	if hour < 22 && hour >= 6 {
		return nil
	}

	severity := models.SeverityMedium
	if *data.Temperature < 8 {
		severity = models.SeverityHigh
	}
	return a.newAlert(farmID, models.AlertCold, severity,
		fmt.Sprintf("Cold risk: night temperature %.1f°C is too low", *data.Temperature),
		"Cover the plants, stop watering at night, consider heating lamps if available.",
		data)
}

// Soil moisture swinging more than 30 points over six hours points at an
// irrigation or drainage problem.
func (a *Analyzer) checkUnstableMoisture(ctx context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.SoilMoisture == nil {
		return nil
	}
	old, err := a.telemetry.FarmSnapshotAt(ctx, farmID, a.now().Add(-moistureChangeWindow))
	if err != nil {
		log.Printf("HEALTH: Failed to load past reading for farm %d: %v", farmID, err)
		return nil
	}
	if old == nil || old.SoilMoisture == nil {
		return nil
	}

	change := *data.SoilMoisture - *old.SoilMoisture
	if change < 0 {
		change = -change
	}
	if change <= moistureChangeThreshold {
		return nil
	}

	return a.newAlert(farmID, models.AlertUnstableMoisture, models.SeverityMedium,
		fmt.Sprintf("Soil moisture swinging hard: changed %.1f%% within 6 hours (from %.1f%% to %.1f%%)",
			change, *old.SoilMoisture, *data.SoilMoisture),
		"Even out the watering schedule, check the drainage system.",
		data)
}

// Light below 1000 lux only counts during daytime (08:00-18:00).
func (a *Analyzer) checkLowLight(_ context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.LightIntensity == nil || *data.LightIntensity >= lightThreshold {
		return nil
	}
	hour := a.now().Hour()
	if hour < 8 || hour >= 18 {
		return nil
	}

	return a.newAlert(farmID, models.AlertLowLight, models.SeverityMedium,
		fmt.Sprintf("Plants short of light: only %.0f lux during daytime", *data.LightIntensity),
		"Turn on supplemental lighting, prune shading plants, move plants to a brighter spot.",
		data)
}

func (a *Analyzer) checkPHAbnormal(_ context.Context, farmID int64, data *models.SensorSnapshot) *models.PlantHealthAlert {
	if data.SoilPH == nil {
		return nil
	}
	ph := *data.SoilPH
	if ph >= phMin && ph <= phMax {
		return nil
	}

	var description, suggestion string
	if ph < phMin {
		description = fmt.Sprintf("Soil too acidic: pH %.1f is below the safe range", ph)
		suggestion = "Apply lime to raise the pH, use organic fertilizer, avoid chemical fertilizer."
	} else {
		description = fmt.Sprintf("Soil too alkaline: pH %.1f is above the safe range", ph)
		suggestion = "Apply sulfur or acidic fertilizer to lower the pH, avoid lime."
	}
	return a.newAlert(farmID, models.AlertPHAbnormal, models.SeverityMedium, description, suggestion, data)
}

func (a *Analyzer) newAlert(farmID int64, alertType models.AlertType, severity models.Severity,
	description, suggestion string, data *models.SensorSnapshot) *models.PlantHealthAlert {

	log.Printf("HEALTH: %s detected for farm %d (%s)", alertType, farmID, severity)
	return &models.PlantHealthAlert{
		FarmID:      farmID,
		AlertType:   alertType,
		Severity:    severity,
		Description: description,
		Suggestion:  suggestion,
		Conditions:  conditionsJSON(data),
		DetectedAt:  a.now(),
	}
}

func (a *Analyzer) notifyNewAlerts(ctx context.Context, farmID int64, alerts []models.PlantHealthAlert) {
	farm, err := a.store.GetFarmByID(ctx, farmID)
	if err != nil {
		log.Printf("HEALTH: Cannot notify farm %d, lookup failed: %v", farmID, err)
		return
	}
	for i := range alerts {
		a.notifier.NotifyPlantHealthAlert(ctx, farm, &alerts[i])
	}
}

// healthScore rolls active alerts into a score:
// 100 - 25 per CRITICAL - 15 per HIGH - 8 per MEDIUM - 3 per LOW, floor 0.
func healthScore(alerts []models.PlantHealthAlert) int {
	score := 100
	for _, alert := range alerts {
		switch alert.Severity {
		case models.SeverityCritical:
			score -= 25
		case models.SeverityHigh:
			score -= 15
		case models.SeverityMedium:
			score -= 8
		case models.SeverityLow:
			score -= 3
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func statusFromScore(score int) string {
	switch {
	case score >= 80:
		return "GOOD"
	case score >= 60:
		return "FAIR"
	case score >= 40:
		return "POOR"
	default:
		return "CRITICAL"
	}
}

func severityStats(alerts []models.PlantHealthAlert) SeverityStats {
	stats := SeverityStats{Total: len(alerts)}
	for _, alert := range alerts {
		switch alert.Severity {
		case models.SeverityCritical:
			stats.Critical++
		case models.SeverityHigh:
			stats.High++
		case models.SeverityMedium:
			stats.Medium++
		case models.SeverityLow:
			stats.Low++
		}
	}
	return stats
}

func overallSuggestion(alerts []models.PlantHealthAlert) string {
	if len(alerts) == 0 {
		return "Plants are healthy. Keep up the current care routine."
	}
	stats := severityStats(alerts)
	if stats.Critical > 0 {
		return fmt.Sprintf("ACT NOW! Found %d critical problems. Check and handle the CRITICAL alerts immediately.", stats.Critical)
	}
	if stats.High > 0 {
		return fmt.Sprintf("Attention needed: found %d high-severity problems. Handle them within 24 hours to protect the plants.", stats.High)
	}
	return fmt.Sprintf("Found %d minor problems. Monitor and adjust gradually.", len(alerts))
}

func conditionsMap(data *models.SensorSnapshot) map[string]any {
	conditions := make(map[string]any)
	if data.Temperature != nil {
		conditions["temperature"] = *data.Temperature
	}
	if data.Humidity != nil {
		conditions["humidity"] = *data.Humidity
	}
	if data.SoilMoisture != nil {
		conditions["soilMoisture"] = *data.SoilMoisture
	}
	if data.LightIntensity != nil {
		conditions["lightIntensity"] = *data.LightIntensity
	}
	if data.SoilPH != nil {
		conditions["soilPH"] = *data.SoilPH
	}
	return conditions
}

func conditionsJSON(data *models.SensorSnapshot) string {
	raw, err := json.Marshal(conditionsMap(data))
	if err != nil {
		return ""
	}
	return string(raw)
}

func (a *Analyzer) emptyReport(farmID int64) *Report {
	return &Report{
		FarmID:            farmID,
		HealthScore:       0,
		Status:            "CRITICAL",
		ActiveAlerts:      nil,
		Conditions:        map[string]any{},
		OverallSuggestion: "No sensor data available. Check the device connections.",
		AnalyzedAt:        a.now(),
	}
}
