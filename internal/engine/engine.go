// Package engine implements the automation rule engine: condition
// evaluation, the ordered logical fold, action dispatch, and the execution
// audit trail. It talks to telemetry, devices, weather, notifications and
// persistence only through the narrow interfaces in providers.go.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"smartfarm/internal/models"
)

// Engine evaluates automation rules against live farm state and performs
// their actions. One evaluation per rule runs at a time; a keyed mutex
// serializes concurrent triggers of the same rule so the stats update and
// audit write cannot race.
type Engine struct {
	store     RuleStore
	telemetry TelemetryProvider
	devices   DeviceProvider
	weather   WeatherProvider
	alerts    AlertPublisher
	email     EmailSender

	now func() time.Time

	mu        sync.Mutex
	ruleLocks map[int64]*sync.Mutex
	lastPass  PassStats
}

// PassStats summarizes one "evaluate all rules" sweep.
type PassStats struct {
	StartedAt time.Time     `json:"started_at"`
	Evaluated int           `json:"evaluated"`
	Fired     int           `json:"fired"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// New creates an engine over the given collaborators.
func New(store RuleStore, telemetry TelemetryProvider, devices DeviceProvider, weather WeatherProvider, alerts AlertPublisher, email EmailSender) *Engine {
	return &Engine{
		store:     store,
		telemetry: telemetry,
		devices:   devices,
		weather:   weather,
		alerts:    alerts,
		email:     email,
		now:       time.Now,
		ruleLocks: make(map[int64]*sync.Mutex),
	}
}

// ExecuteAllRules runs one evaluation pass over every enabled rule. Rules
// are visited sequentially; a failing rule is tallied and never aborts the
// pass.
func (e *Engine) ExecuteAllRules(ctx context.Context) PassStats {
	rules, err := e.store.EnabledRules(ctx)
	if err != nil {
		log.Printf("ENGINE: Failed to load enabled rules: %v", err)
		return PassStats{StartedAt: e.now()}
	}
	return e.runPass(ctx, rules)
}

// ExecuteFarmRules runs an evaluation pass over one farm's enabled rules.
// Used by the telemetry-arrival trigger so a sensor event only re-evaluates
// the farm it belongs to.
func (e *Engine) ExecuteFarmRules(ctx context.Context, farmID int64) PassStats {
	rules, err := e.store.EnabledRulesForFarm(ctx, farmID)
	if err != nil {
		log.Printf("ENGINE: Failed to load enabled rules for farm %d: %v", farmID, err)
		return PassStats{StartedAt: e.now()}
	}
	return e.runPass(ctx, rules)
}

func (e *Engine) runPass(ctx context.Context, rules []models.Rule) PassStats {
	start := e.now()
	stats := PassStats{StartedAt: start, Evaluated: len(rules)}

	for i := range rules {
		rule := &rules[i]
		fired, err := e.ExecuteRule(ctx, rule)
		switch {
		case err != nil:
			stats.Failed++
			log.Printf("ENGINE: Rule %q failed: %v", rule.Name, err)
		case fired:
			stats.Fired++
		default:
			stats.Skipped++
		}
	}

	stats.Duration = e.now().Sub(start)
	log.Printf("ENGINE: Rule pass complete: %d fired, %d skipped, %d failed (%s)",
		stats.Fired, stats.Skipped, stats.Failed, stats.Duration)

	e.mu.Lock()
	e.lastPass = stats
	e.mu.Unlock()

	return stats
}

// LastPass returns the stats of the most recent evaluation pass.
func (e *Engine) LastPass() PassStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPass
}

// ExecuteRuleByID loads and evaluates a single rule; used by the manual
// trigger endpoint and the task queue. Disabled rules are not evaluated.
func (e *Engine) ExecuteRuleByID(ctx context.Context, ruleID int64) (bool, error) {
	rule, err := e.store.RuleByID(ctx, ruleID)
	if err != nil {
		return false, fmt.Errorf("load rule %d: %w", ruleID, err)
	}
	if !rule.Enabled {
		log.Printf("ENGINE: Rule %q is disabled, skipping", rule.Name)
		return false, nil
	}
	return e.ExecuteRule(ctx, rule)
}

// ExecuteRule evaluates one rule and records exactly one execution-log
// entry. It returns whether the rule fired, and an error only for
// unexpected evaluation failures (which are also recorded as FAILED).
func (e *Engine) ExecuteRule(ctx context.Context, rule *models.Rule) (bool, error) {
	lock := e.ruleLock(rule.ID)
	lock.Lock()
	defer lock.Unlock()

	start := e.now()
	snapshot := make(map[string]any)

	met, evalErr := e.safeEvaluate(ctx, rule, snapshot)
	if evalErr != nil {
		entry := &models.ExecutionLogEntry{
			RuleID:          rule.ID,
			ExecutedAt:      e.now(),
			Status:          models.StatusFailed,
			ErrorMessage:    evalErr.Error(),
			ExecutionTimeMs: e.now().Sub(start).Milliseconds(),
		}
		e.record(ctx, entry, false)
		return false, evalErr
	}

	details := marshalSnapshot(snapshot)

	if !met {
		log.Printf("ENGINE: Rule %q conditions not met", rule.Name)
		conditionsMet := false
		entry := &models.ExecutionLogEntry{
			RuleID:           rule.ID,
			ExecutedAt:       e.now(),
			Status:           models.StatusSkipped,
			ConditionsMet:    &conditionsMet,
			ConditionDetails: details,
			ActionsPerformed: "[]",
			ExecutionTimeMs:  e.now().Sub(start).Milliseconds(),
		}
		e.record(ctx, entry, false)
		return false, nil
	}

	log.Printf("ENGINE: Rule %q conditions met, performing %d actions", rule.Name, len(rule.Actions))
	performed := e.performActions(ctx, rule)

	executedAt := e.now()
	conditionsMet := true
	entry := &models.ExecutionLogEntry{
		RuleID:           rule.ID,
		ExecutedAt:       executedAt,
		Status:           models.StatusSuccess,
		ConditionsMet:    &conditionsMet,
		ConditionDetails: details,
		ActionsPerformed: marshalOutcomes(performed),
		ExecutionTimeMs:  executedAt.Sub(start).Milliseconds(),
	}
	e.record(ctx, entry, true)

	// Keep the in-memory rule consistent with the stats update so callers
	// observe the new count immediately after the pass.
	rule.LastExecutedAt = &executedAt
	rule.ExecutionCount++

	return true, nil
}

// safeEvaluate runs the condition fold and converts panics from misbehaving
// providers into an error so one rule cannot take down the pass.
func (e *Engine) safeEvaluate(ctx context.Context, rule *models.Rule, snapshot map[string]any) (met bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule evaluation panicked: %v", r)
		}
	}()
	return e.evaluateConditions(ctx, rule, snapshot), nil
}

// record persists the audit entry. Persistence failures are logged and
// swallowed: audit writes are best-effort and must never block the pass.
func (e *Engine) record(ctx context.Context, entry *models.ExecutionLogEntry, updateStats bool) {
	if err := e.store.RecordExecution(ctx, entry, updateStats); err != nil {
		log.Printf("ENGINE: Failed to persist execution log for rule %d: %v", entry.RuleID, err)
	}
}

func (e *Engine) ruleLock(ruleID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.ruleLocks[ruleID]
	if !ok {
		lock = &sync.Mutex{}
		e.ruleLocks[ruleID] = lock
	}
	return lock
}

func marshalSnapshot(snapshot map[string]any) string {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("ENGINE: Failed to marshal condition snapshot: %v", err)
		return ""
	}
	return string(raw)
}

func marshalOutcomes(outcomes []string) string {
	raw, err := json.Marshal(outcomes)
	if err != nil {
		log.Printf("ENGINE: Failed to marshal action outcomes: %v", err)
		return ""
	}
	return string(raw)
}
