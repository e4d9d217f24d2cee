package models

import "time"

// ConditionType classifies what a rule condition tests against.
type ConditionType string

const (
	ConditionSensorValue  ConditionType = "SENSOR_VALUE"
	ConditionTimeRange    ConditionType = "TIME_RANGE"
	ConditionDeviceStatus ConditionType = "DEVICE_STATUS"
	ConditionWeather      ConditionType = "WEATHER"
)

// Operator is the comparison applied between a condition's resolved value
// and its stored expected value.
type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpNotEquals          Operator = "NOT_EQUALS"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThan           Operator = "LESS_THAN"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"

	// Reserved for range conditions. Stored rules may carry them but no
	// evaluator implements them, so they always evaluate to false.
	OpBetween Operator = "BETWEEN"
	OpInRange Operator = "IN_RANGE"
)

// LogicalOperator states how a condition combines with the NEXT condition
// in evaluation order, not how it was combined itself.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// ActionType classifies a rule action.
type ActionType string

const (
	ActionTurnOnDevice     ActionType = "TURN_ON_DEVICE"
	ActionTurnOffDevice    ActionType = "TURN_OFF_DEVICE"
	ActionSendNotification ActionType = "SEND_NOTIFICATION"
	ActionSendEmail        ActionType = "SEND_EMAIL"
)

// ExecutionStatus is the terminal state of one rule evaluation.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "SUCCESS"
	StatusFailed  ExecutionStatus = "FAILED"
	StatusSkipped ExecutionStatus = "SKIPPED"
	// StatusPartial is declared for forward compatibility with per-action
	// statuses; the engine currently records SUCCESS even when individual
	// actions report error outcomes.
	StatusPartial ExecutionStatus = "PARTIAL"
)

// Condition is a single testable predicate belonging to a rule.
type Condition struct {
	ID              int64           `json:"id"`
	RuleID          int64           `json:"rule_id"`
	Type            ConditionType   `json:"type"`
	Field           string          `json:"field"`
	Operator        Operator        `json:"operator"`
	Value           string          `json:"value"`
	DeviceID        string          `json:"device_id,omitempty"`
	LogicalOperator LogicalOperator `json:"logical_operator"`
	OrderIndex      int             `json:"order_index"`
}

// Action is a side effect performed when a rule fires. Actions run in list
// order and one action's failure never stops the following ones.
type Action struct {
	Type            ActionType `json:"type"`
	DeviceID        string     `json:"device_id,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	Message         string     `json:"message,omitempty"`
}

// Rule is a user-defined automation unit: conditions plus actions plus
// running statistics maintained by the engine.
type Rule struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	FarmID         int64       `json:"farm_id"`
	Enabled        bool        `json:"enabled"`
	Priority       int         `json:"priority"`
	Conditions     []Condition `json:"conditions"`
	Actions        []Action    `json:"actions"`
	LastExecutedAt *time.Time  `json:"last_executed_at,omitempty"`
	ExecutionCount int64       `json:"execution_count"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ExecutionLogEntry is one immutable audit record per rule evaluation.
// ConditionDetails and ActionsPerformed hold JSON snapshots.
type ExecutionLogEntry struct {
	ID               int64           `json:"id"`
	RuleID           int64           `json:"rule_id"`
	ExecutedAt       time.Time       `json:"executed_at"`
	Status           ExecutionStatus `json:"status"`
	ConditionsMet    *bool           `json:"conditions_met,omitempty"`
	ConditionDetails string          `json:"condition_details,omitempty"`
	ActionsPerformed string          `json:"actions_performed,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	ExecutionTimeMs  int64           `json:"execution_time_ms"`
}

// SensorSnapshot is the latest known reading set for one device. Nil fields
// mean the device never reported that metric.
type SensorSnapshot struct {
	DeviceID       string    `json:"device_id"`
	FarmID         int64     `json:"farm_id"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	SoilMoisture   *float64  `json:"soil_moisture,omitempty"`
	LightIntensity *float64  `json:"light_intensity,omitempty"`
	SoilPH         *float64  `json:"soil_ph,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Weather is the cached current-weather snapshot for a farm.
type Weather struct {
	FarmID      int64     `json:"farm_id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	WindSpeed   *float64  `json:"wind_speed,omitempty"`
	RainAmount  *float64  `json:"rain_amount,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Device is a registered sensor or actuator.
type Device struct {
	ID       int64      `json:"id"`
	DeviceID string     `json:"device_id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Status   string     `json:"status"`
	FarmID   int64      `json:"farm_id"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// Device connectivity statuses as reported over MQTT.
const (
	DeviceOnline  = "ONLINE"
	DeviceOffline = "OFFLINE"
)

// Farm groups devices and rules under one owner.
type Farm struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	OwnerEmail string `json:"owner_email,omitempty"`
}

// AlertType names one of the plant-health heuristics.
type AlertType string

const (
	AlertFungus           AlertType = "FUNGUS"
	AlertHeatStress       AlertType = "HEAT_STRESS"
	AlertDrought          AlertType = "DROUGHT"
	AlertCold             AlertType = "COLD"
	AlertUnstableMoisture AlertType = "UNSTABLE_MOISTURE"
	AlertLowLight         AlertType = "LOW_LIGHT"
	AlertPHAbnormal       AlertType = "PH_ABNORMAL"
)

// Severity ranks a plant-health alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// PlantHealthAlert is one detected plant-health problem. Conditions holds a
// JSON snapshot of the sensor readings that triggered it.
type PlantHealthAlert struct {
	ID          int64     `json:"id"`
	FarmID      int64     `json:"farm_id"`
	AlertType   AlertType `json:"alert_type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion"`
	Conditions  string    `json:"conditions,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
	Resolved    bool      `json:"resolved"`
}
