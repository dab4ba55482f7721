/*
scheduler.go - Automated monthly statement calculations

PURPOSE:
  Periodically closes the previous calendar month for every account:
  aggregates that month's spend, allocates it under the default program
  and stores the calculation, so statement rewards exist without anyone
  calling the API.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only months that have fully ended are processed
  - An account whose month is already stored under the same program is
    skipped, so repeated runs never produce duplicates
  - Accounts without purchases in the month are skipped

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewStatementScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreateCalculation endpoint (manual calculation)
  - rewards/statement.go: Calendar month periods
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/store/sqlite"
)

// StatementScheduler stores last month's calculation for every account.
type StatementScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock; tests pin it.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStatementScheduler creates a new scheduler.
func NewStatementScheduler(handler *Handler) *StatementScheduler {
	return &StatementScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *StatementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler.
func (s *StatementScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (s *StatementScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndProcess()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

func (s *StatementScheduler) checkAndProcess() {
	processed, err := s.RunNow(context.Background())
	if err != nil {
		log.Printf("[Scheduler] Error: %v", err)
		return
	}
	if processed > 0 {
		log.Printf("[Scheduler] Stored %d statement calculations", processed)
	}
}

// RunNow closes the previous month for every account and returns how many
// calculations were stored.
func (s *StatementScheduler) RunNow(ctx context.Context) (int, error) {
	h := s.Handler
	now := generic.TimePointOf(s.Now())
	last := generic.StartOfMonth(now.Year(), now.Month()).AddMonths(-1)
	period := generic.MonthPeriod(last.Year(), last.Month())

	program, ids, err := h.resolveRules(nil, "")
	if err != nil {
		return 0, err
	}

	accounts, err := h.Store.Accounts(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, account := range accounts {
		done, err := s.alreadyStored(ctx, account, program, period)
		if err != nil {
			return processed, err
		}
		if done {
			continue
		}

		spend, err := h.Ledger.SpendFor(ctx, account, period)
		if err != nil {
			return processed, err
		}
		if spend.IsEmpty() {
			continue
		}

		alloc, err := h.calculate(ctx, generic.StrategyOptimal, ids, spend)
		if err != nil {
			log.Printf("[Scheduler] Failed %s %s: %v", account, period, err)
			continue
		}

		rec := sqlite.NewCalculationRecord(account, program, ids, period, alloc)
		if err := h.Store.SaveCalculation(ctx, &rec); err != nil {
			return processed, err
		}
		processed++

		log.Printf("[Scheduler] %s %s: %d points", account, period, alloc.Total)
	}
	return processed, nil
}

func (s *StatementScheduler) alreadyStored(ctx context.Context, account generic.AccountID, program string, period generic.Period) (bool, error) {
	records, err := s.Handler.Store.ListCalculations(ctx, account)
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Program == program && rec.Period.Start.Equal(period.Start) && rec.Period.End.Equal(period.End) {
			return true, nil
		}
	}
	return false, nil
}

// NextRunTime returns when the next scheduled check will occur.
func (s *StatementScheduler) NextRunTime() time.Time {
	return s.Now().Add(s.CheckInterval)
}
