package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically re-drives jobs with due pending recipients. It is the
// correctness path for delivery: the queue wake-up is only a latency
// shortcut, and anything dropped there is retried here after restart.
type Sweeper struct {
	engine    *Engine
	interval  time.Duration
	batchSize int
	isRunning bool
	stopCh    chan struct{}
}

func NewSweeper(engine *Engine, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Sweeper{
		engine:    engine,
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	if s.isRunning {
		logrus.Warn("Notification sweeper is already running")
		return
	}

	s.isRunning = true
	logrus.Info("Starting notification sweeper...")
	go s.processLoop()
}

func (s *Sweeper) Stop() {
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopCh)
}

func (s *Sweeper) processLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			logrus.Info("Stopping notification sweeper...")
			return
		}
	}
}

// Sweep runs one pass: fetch due jobs, process each. Exposed so tests and
// the shutdown path can drain without the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	jobs, err := s.engine.DueJobs(ctx, s.batchSize)
	if err != nil {
		logrus.Errorf("Failed to fetch due notification jobs: %v", err)
		return
	}
	for _, id := range jobs {
		if err := s.engine.ProcessJob(ctx, id); err != nil {
			logrus.WithError(err).WithField("job_id", id).Error("Failed to process notification job")
		}
	}
}
