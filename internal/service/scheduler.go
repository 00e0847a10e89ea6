package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// DailyScheduler runs the reminder and expiry scan once a day at a fixed
// hour on the offset-adjusted clock. Jobs run to completion before the next
// invocation is scheduled, so runs never overlap.
type DailyScheduler struct {
	expiry *ExpiryService
	hour   int
	offset time.Duration

	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewDailyScheduler creates a scheduler firing at hour (0-23) on the clock
// shifted by offsetHours.
func NewDailyScheduler(expiry *ExpiryService, hour, offsetHours int) *DailyScheduler {
	if hour < 0 || hour > 23 {
		hour = 9
	}
	return &DailyScheduler{
		expiry: expiry,
		hour:   hour,
		offset: time.Duration(offsetHours) * time.Hour,
		stopCh: make(chan struct{}),
	}
}

// Start begins the daily loop.
func (s *DailyScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	log.Printf("[DailyScheduler] Started - firing daily at %02d:00 (offset %v)", s.hour, s.offset)
	go s.run()
}

func (s *DailyScheduler) run() {
	for {
		wait := s.untilNextRun(time.Now())
		log.Printf("[DailyScheduler] Next run in %v", wait.Round(time.Second))

		select {
		case <-time.After(wait):
			s.RunNow()
		case <-s.stopCh:
			log.Printf("[DailyScheduler] Stopped")
			return
		}
	}
}

// untilNextRun computes the duration until the next fire time on the
// offset-adjusted clock.
func (s *DailyScheduler) untilNextRun(now time.Time) time.Duration {
	shifted := now.UTC().Add(s.offset)
	next := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), s.hour, 0, 0, 0, time.UTC)
	if !next.After(shifted) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(shifted)
}

// RunNow executes the reminder then the expiry scan, sequentially.
func (s *DailyScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if report, err := s.expiry.RunReminder(ctx); err != nil {
		log.Printf("[DailyScheduler] Reminder run failed: %v", err)
	} else {
		log.Printf("[DailyScheduler] Reminder run: %+v", *report)
	}

	if report, err := s.expiry.RunExpiryScan(ctx); err != nil {
		log.Printf("[DailyScheduler] Expiry scan failed: %v", err)
	} else {
		log.Printf("[DailyScheduler] Expiry scan: %+v", *report)
	}
}

// Stop stops the scheduler.
func (s *DailyScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		close(s.stopCh)
		s.isRunning = false
	})
}
