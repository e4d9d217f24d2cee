// Package scheduler drives the periodic work: rule evaluation passes,
// plant-health sweeps and the stale-device check.
package scheduler

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"smartfarm/internal/taskqueue"
)

// Scheduler manages time-based triggers
type Scheduler struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID // Maps job name to cron entry ID
	jobMapMux sync.RWMutex            // Protects jobMap
}

// NewScheduler creates a scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobMap: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("SCHEDULER: Cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("SCHEDULER: Cron scheduler stopped")
}

// AddJob registers a named cron job, replacing any earlier job with the
// same name.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	s.RemoveJob(name)

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		log.Printf("SCHEDULER: Failed to schedule %s with cron '%s': %v", name, spec, err)
		return err
	}

	s.jobMapMux.Lock()
	s.jobMap[name] = entryID
	s.jobMapMux.Unlock()

	log.Printf("SCHEDULER: Scheduled %s with cron '%s' (entry ID: %d)", name, spec, entryID)
	return nil
}

// RemoveJob removes a named job if it exists
func (s *Scheduler) RemoveJob(name string) {
	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()

	if entryID, exists := s.jobMap[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobMap, name)
		log.Printf("SCHEDULER: Removed job %s (entry ID: %d)", name, entryID)
	}
}

// ScheduleRulePass queues a full evaluation pass on the given cron spec.
// The pass itself runs on the task queue workers, not in the cron goroutine.
func (s *Scheduler) ScheduleRulePass(spec string) error {
	return s.AddJob("rule-pass", spec, func() {
		log.Println("SCHEDULER: Triggering scheduled rule pass")
		if err := taskqueue.EnqueueFarmEvaluation(0); err != nil {
			log.Printf("SCHEDULER: Failed to enqueue rule pass: %v", err)
		}
	})
}

// JobCount returns the number of currently scheduled jobs
func (s *Scheduler) JobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}
