package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/factory"
)

// Scheduler fires sync runs on an interval and serves manual triggers. Runs
// are mutually exclusive per (channel, operation): a trigger that finds a run
// already in flight fails with ErrRunInProgress instead of queuing behind it.
type Scheduler struct {
	engine   *SyncEngine
	interval time.Duration
	logger   logrus.FieldLogger

	mu      sync.Mutex
	running map[string]bool
}

func NewScheduler(engine *SyncEngine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   factory.NewModuleLogger("scheduler"),
		running:  make(map[string]bool),
	}
}

// Start ticks until ctx is cancelled. Each tick kicks off both operations
// for every registered channel; operations still running from a previous
// tick are skipped, not stacked.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, channelID := range s.engine.ChannelIDs() {
		for _, operation := range []string{entity.SyncOperationCatalogPush, entity.SyncOperationOrderPull} {
			go func(channelID, operation string) {
				if _, err := s.Trigger(ctx, channelID, operation); err != nil {
					if errors.Is(err, ErrRunInProgress) {
						s.logger.WithFields(logrus.Fields{
							"channel":   channelID,
							"operation": operation,
						}).Debug("previous run still in flight, skipping tick")
						return
					}
					s.logger.WithError(err).WithFields(logrus.Fields{
						"channel":   channelID,
						"operation": operation,
					}).Error("scheduled sync run failed")
				}
			}(channelID, operation)
		}
	}
}

// Trigger runs one operation for one channel synchronously and returns its
// SyncLog. Scheduled ticks and manual triggers share the same exclusion map.
func (s *Scheduler) Trigger(ctx context.Context, channelID, operation string) (*entity.SyncLog, error) {
	if operation != entity.SyncOperationCatalogPush && operation != entity.SyncOperationOrderPull {
		return nil, ErrUnknownOperation
	}

	key := channelID + "/" + operation
	if !s.tryAcquire(key) {
		return nil, ErrRunInProgress
	}
	defer s.release(key)

	switch operation {
	case entity.SyncOperationCatalogPush:
		return s.engine.PushCatalog(ctx, channelID)
	default:
		return s.engine.PullOrders(ctx, channelID)
	}
}

func (s *Scheduler) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] {
		return false
	}
	s.running[key] = true
	return true
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	delete(s.running, key)
	s.mu.Unlock()
}
