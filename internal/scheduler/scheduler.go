package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Compactor purges tombstones older than a cutoff.
type Compactor interface {
	Compact(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs tombstone compaction on a cron schedule (UTC).
type Scheduler struct {
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	store     Compactor
	schedule  string
	retention time.Duration
	now       func() time.Time
}

func New(store Compactor, schedule string, retention time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		ctx:       ctx,
		cancel:    cancel,
		store:     store,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.retention <= 0 {
		log.Println("Tombstone retention not set, compaction disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			log.Printf("Compaction failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid compaction schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Printf("Scheduler started, compaction at %q UTC, retention %s", s.schedule, s.retention)
	return nil
}

// RunOnce purges tombstones older than the retention window.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.retention)
	n, err := s.store.Compact(ctx, before)
	if err != nil {
		return 0, err
	}
	log.Printf("Compaction removed %d tombstones older than %s", n, before.UTC().Format(time.RFC3339))
	return n, nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
