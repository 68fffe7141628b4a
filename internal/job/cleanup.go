package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/repository"
)

// Cleanup periodically purges REJECTED batches past their retention
// window. Committed data is never touched.
type Cleanup struct {
	batches repository.BatchRepository
	ttl     time.Duration
	spec    string
	logger  *slog.Logger
	cron    *cron.Cron
}

func NewCleanup(batches repository.BatchRepository, ttl time.Duration, spec string, logger *slog.Logger) *Cleanup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleanup{batches: batches, ttl: ttl, spec: spec, logger: logger}
}

// Start schedules the purge and returns. Call Stop on shutdown.
func (j *Cleanup) Start() error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.spec, j.runOnce)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("cleanup.scheduled", "spec", j.spec, "rejected_ttl", j.ttl.String())
	return nil
}

func (j *Cleanup) Stop() {
	if j.cron != nil {
		ctx := j.cron.Stop()
		<-ctx.Done()
	}
}

func (j *Cleanup) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.ttl)
	purged, err := j.batches.PurgeRejectedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("cleanup.failed", "error", err)
		return
	}
	if purged > 0 {
		j.logger.Info("cleanup.purged", "batches", purged, "cutoff", cutoff.Format(time.RFC3339))
	}
}
