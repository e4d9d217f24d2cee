package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"smartfarm/internal/models"
)

// GetEnabledRules fetches all enabled rules, highest priority first.
// Conditions and actions are stored as JSONB and decoded in the scan.
func (d *DB) GetEnabledRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, name, description, farm_id, enabled, priority, conditions, actions,
		        last_executed_at, execution_count, created_at, updated_at
		 FROM rules WHERE enabled = true ORDER BY priority DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetEnabledRulesForFarm fetches one farm's enabled rules, highest priority first
func (d *DB) GetEnabledRulesForFarm(ctx context.Context, farmID int64) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, name, description, farm_id, enabled, priority, conditions, actions,
		        last_executed_at, execution_count, created_at, updated_at
		 FROM rules WHERE enabled = true AND farm_id = $1 ORDER BY priority DESC, id`, farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetRuleByID fetches a rule
func (d *DB) GetRuleByID(ctx context.Context, id int64) (*models.Rule, error) {
	var r models.Rule
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, description, farm_id, enabled, priority, conditions, actions,
		        last_executed_at, execution_count, created_at, updated_at
		 FROM rules WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Description, &r.FarmID, &r.Enabled, &r.Priority,
			&r.Conditions, &r.Actions, &r.LastExecutedAt, &r.ExecutionCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRules(rows pgx.Rows) ([]models.Rule, error) {
	var rules []models.Rule
	for rows.Next() {
		var r models.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.FarmID, &r.Enabled, &r.Priority,
			&r.Conditions, &r.Actions, &r.LastExecutedAt, &r.ExecutionCount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// RecordExecution inserts one execution-log row. When updateStats is set the
// rule's counters move in the same transaction, so the audit trail and the
// stats can never disagree.
func (d *DB) RecordExecution(ctx context.Context, entry *models.ExecutionLogEntry, updateStats bool) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO rule_execution_logs
		   (rule_id, executed_at, status, conditions_met, condition_details, actions_performed, error_message, execution_time_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		entry.RuleID, entry.ExecutedAt, entry.Status, entry.ConditionsMet,
		entry.ConditionDetails, entry.ActionsPerformed, entry.ErrorMessage, entry.ExecutionTimeMs).
		Scan(&entry.ID)
	if err != nil {
		return err
	}

	if updateStats {
		_, err = tx.Exec(ctx,
			`UPDATE rules SET last_executed_at = $1, execution_count = execution_count + 1, updated_at = NOW()
			 WHERE id = $2`,
			entry.ExecutedAt, entry.RuleID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetExecutionLogs fetches the most recent execution logs for a rule
func (d *DB) GetExecutionLogs(ctx context.Context, ruleID int64, limit int) ([]models.ExecutionLogEntry, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, rule_id, executed_at, status, conditions_met, condition_details,
		        actions_performed, error_message, execution_time_ms
		 FROM rule_execution_logs WHERE rule_id = $1 ORDER BY executed_at DESC LIMIT $2`,
		ruleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ExecutionLogEntry
	for rows.Next() {
		var e models.ExecutionLogEntry
		var conditionDetails, actionsPerformed, errorMessage *string
		if err := rows.Scan(&e.ID, &e.RuleID, &e.ExecutedAt, &e.Status, &e.ConditionsMet,
			&conditionDetails, &actionsPerformed, &errorMessage, &e.ExecutionTimeMs); err != nil {
			return nil, err
		}
		if conditionDetails != nil {
			e.ConditionDetails = *conditionDetails
		}
		if actionsPerformed != nil {
			e.ActionsPerformed = *actionsPerformed
		}
		if errorMessage != nil {
			e.ErrorMessage = *errorMessage
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetFarmByID fetches a farm
func (d *DB) GetFarmByID(ctx context.Context, id int64) (*models.Farm, error) {
	var f models.Farm
	var ownerEmail *string
	err := d.pool.QueryRow(ctx, "SELECT id, name, owner_email FROM farms WHERE id = $1", id).
		Scan(&f.ID, &f.Name, &ownerEmail)
	if err != nil {
		return nil, err
	}
	if ownerEmail != nil {
		f.OwnerEmail = *ownerEmail
	}
	return &f, nil
}

// GetFarmIDs fetches the ids of all farms
func (d *DB) GetFarmIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.pool.Query(ctx, "SELECT id FROM farms ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetDeviceByDeviceID fetches a device by its hardware id
func (d *DB) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	err := d.pool.QueryRow(ctx,
		"SELECT id, device_id, name, type, status, farm_id, last_seen FROM devices WHERE device_id = $1",
		deviceID).
		Scan(&device.ID, &device.DeviceID, &device.Name, &device.Type, &device.Status, &device.FarmID, &device.LastSeen)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// TouchDevice updates a device's status and last-seen time
func (d *DB) TouchDevice(ctx context.Context, deviceID, status string, seenAt time.Time) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE devices SET status = $1, last_seen = $2 WHERE device_id = $3",
		status, seenAt, deviceID)
	return err
}

// MarkDevicesOfflineBefore flips devices unseen since the cutoff to OFFLINE
// and returns the devices it changed.
func (d *DB) MarkDevicesOfflineBefore(ctx context.Context, cutoff time.Time) ([]models.Device, error) {
	rows, err := d.pool.Query(ctx,
		`UPDATE devices SET status = $1
		 WHERE status = $2 AND (last_seen IS NULL OR last_seen < $3)
		 RETURNING id, device_id, name, type, status, farm_id, last_seen`,
		models.DeviceOffline, models.DeviceOnline, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var device models.Device
		if err := rows.Scan(&device.ID, &device.DeviceID, &device.Name, &device.Type, &device.Status, &device.FarmID, &device.LastSeen); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// InsertSensorReading appends one telemetry row
func (d *DB) InsertSensorReading(ctx context.Context, s *models.SensorSnapshot) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO sensor_readings
		   (device_id, farm_id, temperature, humidity, soil_moisture, light_intensity, soil_ph, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.DeviceID, s.FarmID, s.Temperature, s.Humidity, s.SoilMoisture, s.LightIntensity, s.SoilPH, s.Timestamp)
	return err
}

// GetLatestDeviceSnapshot fetches a device's newest reading
func (d *DB) GetLatestDeviceSnapshot(ctx context.Context, deviceID string) (*models.SensorSnapshot, error) {
	return d.scanSnapshot(ctx,
		`SELECT device_id, farm_id, temperature, humidity, soil_moisture, light_intensity, soil_ph, recorded_at
		 FROM sensor_readings WHERE device_id = $1 ORDER BY recorded_at DESC LIMIT 1`, deviceID)
}

// GetLatestFarmSnapshot fetches the newest reading across a farm's devices
func (d *DB) GetLatestFarmSnapshot(ctx context.Context, farmID int64) (*models.SensorSnapshot, error) {
	return d.scanSnapshot(ctx,
		`SELECT device_id, farm_id, temperature, humidity, soil_moisture, light_intensity, soil_ph, recorded_at
		 FROM sensor_readings WHERE farm_id = $1 ORDER BY recorded_at DESC LIMIT 1`, farmID)
}

// GetFarmSnapshotAt fetches the newest farm reading at or before the given
// time; used to compare soil moisture against a past value.
func (d *DB) GetFarmSnapshotAt(ctx context.Context, farmID int64, at time.Time) (*models.SensorSnapshot, error) {
	return d.scanSnapshot(ctx,
		`SELECT device_id, farm_id, temperature, humidity, soil_moisture, light_intensity, soil_ph, recorded_at
		 FROM sensor_readings WHERE farm_id = $1 AND recorded_at <= $2 ORDER BY recorded_at DESC LIMIT 1`,
		farmID, at)
}

func (d *DB) scanSnapshot(ctx context.Context, query string, args ...any) (*models.SensorSnapshot, error) {
	var s models.SensorSnapshot
	err := d.pool.QueryRow(ctx, query, args...).
		Scan(&s.DeviceID, &s.FarmID, &s.Temperature, &s.Humidity, &s.SoilMoisture, &s.LightIntensity, &s.SoilPH, &s.Timestamp)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUnresolvedAlerts fetches a farm's open plant-health alerts
func (d *DB) GetUnresolvedAlerts(ctx context.Context, farmID int64) ([]models.PlantHealthAlert, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, farm_id, alert_type, severity, description, suggestion, conditions, detected_at, resolved
		 FROM plant_health_alerts WHERE farm_id = $1 AND resolved = false ORDER BY detected_at DESC`,
		farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.PlantHealthAlert
	for rows.Next() {
		var a models.PlantHealthAlert
		var conditions *string
		if err := rows.Scan(&a.ID, &a.FarmID, &a.AlertType, &a.Severity, &a.Description,
			&a.Suggestion, &conditions, &a.DetectedAt, &a.Resolved); err != nil {
			return nil, err
		}
		if conditions != nil {
			a.Conditions = *conditions
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// InsertHealthAlert creates a plant-health alert and fills in its id
func (d *DB) InsertHealthAlert(ctx context.Context, a *models.PlantHealthAlert) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO plant_health_alerts
		   (farm_id, alert_type, severity, description, suggestion, conditions, detected_at, resolved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		 RETURNING id`,
		a.FarmID, a.AlertType, a.Severity, a.Description, a.Suggestion, a.Conditions, a.DetectedAt).
		Scan(&a.ID)
}

// ResolveAlert marks one plant-health alert as handled
func (d *DB) ResolveAlert(ctx context.Context, alertID int64) error {
	_, err := d.pool.Exec(ctx, "UPDATE plant_health_alerts SET resolved = true WHERE id = $1", alertID)
	return err
}
