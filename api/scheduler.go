/*
scheduler.go - Automated recognition scheduler

PURPOSE:
  Periodically runs rent recognition so monthly postings happen without
  an operator calling /api/accruals/generate. Each tick covers the
  previous and current periods; generation is idempotent, so re-running
  a period that is already posted only produces skips.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Relies on the idempotency key (one posting per tenant+period+kind);
    the store's unique constraint backstops concurrent runs

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAccrualScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateAccruals endpoint (manual runs)
  - accrual/generator.go: The generation algorithm
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hearthstay/rentledger/ledger"
)

// AccrualScheduler handles automated periodic recognition.
type AccrualScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(handler *Handler) *AccrualScheduler {
	return &AccrualScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AccrualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AccrualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AccrualScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.generate()

	for {
		select {
		case <-as.ticker.C:
			as.generate()
		case <-as.stop:
			return
		}
	}
}

// generate runs recognition for the previous and current periods. The
// previous period is included so a scheduler that was down across a
// month boundary catches up on restart.
func (as *AccrualScheduler) generate() {
	ctx := context.Background()
	current := ledger.PeriodOf(ledger.Today())

	for _, period := range []ledger.PeriodKey{current.Prev(), current} {
		result, err := as.Handler.Accruals.GenerateForPeriod(ctx, period)
		if err != nil {
			log.Printf("[Scheduler] Error generating accruals for %s: %v", period, err)
			continue
		}
		if len(result.Created) > 0 {
			log.Printf("[Scheduler] Period %s: %d created, %d skipped",
				period, len(result.Created), len(result.Skipped))
		}
	}
}

// RunNow triggers an immediate run (for testing/admin).
func (as *AccrualScheduler) RunNow() {
	as.generate()
}
