package main

import (
	"context"

	"smartfarm/internal/db"
	"smartfarm/internal/models"
)

// ruleStore adapts the database layer to the engine's persistence
// interface.
type ruleStore struct {
	db *db.DB
}

func (s ruleStore) EnabledRules(ctx context.Context) ([]models.Rule, error) {
	return s.db.GetEnabledRules(ctx)
}

func (s ruleStore) EnabledRulesForFarm(ctx context.Context, farmID int64) ([]models.Rule, error) {
	return s.db.GetEnabledRulesForFarm(ctx, farmID)
}

func (s ruleStore) RuleByID(ctx context.Context, ruleID int64) (*models.Rule, error) {
	return s.db.GetRuleByID(ctx, ruleID)
}

func (s ruleStore) FarmByID(ctx context.Context, farmID int64) (*models.Farm, error) {
	return s.db.GetFarmByID(ctx, farmID)
}

func (s ruleStore) RecordExecution(ctx context.Context, entry *models.ExecutionLogEntry, updateStats bool) error {
	return s.db.RecordExecution(ctx, entry, updateStats)
}
