package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/sunflux/internal/logging"
)

// Syncer refreshes every stale feed.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Scheduler periodically syncs the feed caches. The first run happens as
// soon as the scheduler starts, which warms empty caches.
type Scheduler struct {
	scheduler *gocron.Scheduler
	syncer    Syncer
	interval  time.Duration
	timeout   time.Duration
	log       *slog.Logger
}

// New creates a new Scheduler. timeout bounds a single sync run.
func New(syncer Syncer, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		syncer:    syncer,
		interval:  interval,
		timeout:   timeout,
		log:       logging.Component("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.run)
	if err != nil {
		return err
	}

	s.log.Info("scheduler started", "every_minutes", minutes)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	log := s.log.With("job", uuid.NewString())
	log.Debug("running feed sync job")

	timeout := s.timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := s.syncer.Sync(ctx); err != nil {
		log.Warn("feed sync finished with errors", "error", err, "took", time.Since(start))
		return
	}
	log.Info("feed sync completed", "took", time.Since(start))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
