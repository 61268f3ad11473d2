package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// Scheduler fires a scheduled report dispatch at a fixed interval. The
// interval doubles as the dispatcher's lookback window, so consecutive
// firings cover adjacent windows.
type Scheduler struct {
	dispatcher *Dispatcher
	interval   time.Duration
	stopChan   chan struct{}
}

// NewScheduler creates a report scheduler around the dispatcher.
func NewScheduler(dispatcher *Dispatcher, interval time.Duration) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the interval loop in a background goroutine.
func (s *Scheduler) Start() {
	utils.SafeGo(s.run, nil)
	logger.Log.Info("Report scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the interval loop. A dispatch already in flight completes.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	logger.Log.Info("Report scheduler stopped")
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.dispatcher.DispatchScheduled(ctx); err != nil {
				logger.Log.Error("Scheduled report dispatch failed", zap.Error(err))
			}
			cancel()
		case <-s.stopChan:
			return
		}
	}
}
