package api

import (
	"log"
	"sort"
	"sync"
)

// OutcomeCounter tallies request outcomes by code ("claimed",
// "cooldown_active", ...).
type OutcomeCounter struct {
	counts map[string]int
	mu     sync.Mutex
}

func NewOutcomeCounter() *OutcomeCounter {
	return &OutcomeCounter{
		counts: make(map[string]int),
	}
}

func (oc *OutcomeCounter) Count(outcome string) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.counts[outcome]++
}

func (oc *OutcomeCounter) Snapshot() map[string]int {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	out := make(map[string]int, len(oc.counts))
	for outcome, count := range oc.counts {
		out[outcome] = count
	}
	return out
}

func (oc *OutcomeCounter) PrintCounts(logger *log.Logger) {
	snapshot := oc.Snapshot()
	outcomes := make([]string, 0, len(snapshot))
	for outcome := range snapshot {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)

	for _, outcome := range outcomes {
		logger.Printf("Outcome: %s, Count: %d", outcome, snapshot[outcome])
	}
}
