package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"smartfarm/internal/engine"
)

// Task types.
const (
	TypeEvaluateRule = "rule:evaluate"
	TypeEvaluateFarm = "rule:evaluate_all"
)

// Global engine instance - initialized by the main application before the
// workers start.
var eng *engine.Engine

// SetEngine sets the engine the task handlers evaluate against
func SetEngine(e *engine.Engine) {
	eng = e
}

// EvaluateRulePayload carries one rule evaluation request
type EvaluateRulePayload struct {
	RuleID int64 `json:"rule_id"`
}

// EvaluateFarmPayload carries a farm-wide evaluation request. FarmID 0
// means every farm.
type EvaluateFarmPayload struct {
	FarmID int64 `json:"farm_id"`
}

// EnqueueEvaluation enqueues a single-rule evaluation task
func EnqueueEvaluation(ruleID int64) error {
	payload, _ := json.Marshal(EvaluateRulePayload{RuleID: ruleID})
	task := asynq.NewTask(TypeEvaluateRule, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
	if err != nil {
		log.Printf("TASKQUEUE: Failed to enqueue evaluation for rule %d: %v", ruleID, err)
		return err
	}
	log.Printf("TASKQUEUE: Enqueued task %s for rule %d", info.ID, ruleID)
	return nil
}

// EnqueueFarmEvaluation enqueues an evaluation pass over a farm's rules
func EnqueueFarmEvaluation(farmID int64) error {
	payload, _ := json.Marshal(EvaluateFarmPayload{FarmID: farmID})
	task := asynq.NewTask(TypeEvaluateFarm, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(1), asynq.Timeout(2*time.Minute))
	if err != nil {
		log.Printf("TASKQUEUE: Failed to enqueue farm %d evaluation: %v", farmID, err)
		return err
	}
	log.Printf("TASKQUEUE: Enqueued task %s for farm %d", info.ID, farmID)
	return nil
}

// evaluateRuleTask handles single-rule evaluation
func evaluateRuleTask(ctx context.Context, t *asynq.Task) error {
	if eng == nil {
		return fmt.Errorf("engine not initialized")
	}
	var payload EvaluateRulePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Printf("TASKQUEUE: Failed to unmarshal task payload: %v", err)
		return err
	}

	fired, err := eng.ExecuteRuleByID(ctx, payload.RuleID)
	if err != nil {
		log.Printf("TASKQUEUE: Rule %d evaluation failed: %v", payload.RuleID, err)
		return err
	}
	log.Printf("TASKQUEUE: Rule %d evaluated, fired: %t", payload.RuleID, fired)
	return nil
}

// evaluateFarmTask handles farm-wide evaluation passes
func evaluateFarmTask(ctx context.Context, t *asynq.Task) error {
	if eng == nil {
		return fmt.Errorf("engine not initialized")
	}
	var payload EvaluateFarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Printf("TASKQUEUE: Failed to unmarshal task payload: %v", err)
		return err
	}

	if payload.FarmID == 0 {
		eng.ExecuteAllRules(ctx)
	} else {
		eng.ExecuteFarmRules(ctx, payload.FarmID)
	}
	return nil
}
