package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// EmbeddedTrigger drives the refresh loop in-process for deployments
// without an external periodic caller. It fires on the tier-1 cadence
// and invokes every slice; the time-bucketed rotation math decides
// what each invocation actually refreshes, exactly as it does for
// HTTP-triggered runs.
type EmbeddedTrigger struct {
	cron      *gocron.Scheduler
	scheduler *RotatingScheduler
}

// NewEmbeddedTrigger creates an embedded trigger over the scheduler.
func NewEmbeddedTrigger(s *RotatingScheduler) *EmbeddedTrigger {
	return &EmbeddedTrigger{
		cron:      gocron.NewScheduler(time.UTC),
		scheduler: s,
	}
}

// Start starts the trigger loop.
func (t *EmbeddedTrigger) Start() {
	cadence := t.scheduler.Config().CadenceMinutesTier[Tier1]
	if cadence < 1 {
		cadence = 5
	}

	t.cron.Every(cadence).Minutes().Do(func() {
		t.runAllSlices()
	})

	t.cron.StartAsync()
	log.Printf("Embedded refresh trigger started (every %d minutes)", cadence)
}

// Stop stops the trigger loop.
func (t *EmbeddedTrigger) Stop() {
	t.cron.Stop()
	log.Println("Embedded refresh trigger stopped")
}

// runAllSlices invokes every slice sequentially. Slices are disjoint,
// so ordering does not matter for correctness; sequential keeps the
// provider call rate flat.
func (t *EmbeddedTrigger) runAllSlices() {
	total := t.scheduler.Config().TotalSlices
	for i := 0; i < total; i++ {
		result, err := t.scheduler.RunSlice(context.Background(), i, false)
		if err != nil {
			log.Printf("Embedded refresh slice %d failed: %v", i, err)
			continue
		}
		if result.Skipped {
			log.Println("Embedded refresh skipped: market closed")
			return
		}
		log.Printf("Embedded refresh slice %d: updated=%d failed=%d", i, result.Updated, result.Failed)
	}
}
