package engine

import (
	"context"
	"log"
	"sort"

	"smartfarm/internal/models"
)

// evaluateConditions folds a rule's conditions into one verdict.
//
// Conditions are evaluated in ascending orderIndex. The fold is strictly
// left-to-right with no precedence: the logical operator stored on condition
// i-1 decides how condition i is combined in. Stored rules were authored
// against exactly this convention, so it must not be changed to the more
// common "operator precedes its condition" form.
//
// Every condition is evaluated even when the running result is already
// decided, so the audit snapshot always carries all resolved values. A rule
// with no conditions never fires.
func (e *Engine) evaluateConditions(ctx context.Context, rule *models.Rule, snapshot map[string]any) bool {
	if len(rule.Conditions) == 0 {
		log.Printf("ENGINE: Rule %q has no conditions", rule.Name)
		return false
	}

	sorted := make([]models.Condition, len(rule.Conditions))
	copy(sorted, rule.Conditions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	var result bool
	next := models.LogicalAnd

	for i, cond := range sorted {
		met := e.evaluateCondition(ctx, rule, cond, snapshot)

		switch {
		case i == 0:
			result = met
		case next == models.LogicalOr:
			result = result || met
		default:
			result = result && met
		}

		next = cond.LogicalOperator
		log.Printf("ENGINE:   condition %d: %s %s %s = %t", i+1, cond.Field, cond.Operator, cond.Value, met)
	}

	return result
}
