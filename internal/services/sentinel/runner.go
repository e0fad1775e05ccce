package sentinel

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/pulsekeep/pulsekeep/internal/config/sentinel"
)

var (
	mFlipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_checks_flipped_total", Help: "Overdue checks flipped to down",
	})
	mSweepErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_errors_total", Help: "Errors in sentinel sweep",
	})
	mSweepDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "sentinel_loop_duration_seconds", Help: "Sweep duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Runner drives the overdue sweep on a fixed tick.
type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.SweepCfg
}

func New(log *zap.Logger, uc *Usecase, cfg *config.SweepCfg) *Runner {
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

// Run sweeps once immediately, then on every tick until ctx is done. An
// immediate first sweep means a restart does not wait a full interval
// to notice checks that went overdue while the process was down.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	for {
		r.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	start := time.Now()
	defer func() { mSweepDur.Observe(time.Since(start).Seconds()) }()

	flipped, err := r.UC.Tick(ctx, r.Cfg.BatchLimit)
	if err != nil {
		mSweepErr.Inc()
		r.Log.Warn("sweep error", zap.Error(err))
	}
	if flipped > 0 {
		mFlipped.Add(float64(flipped))
		r.Log.Debug("swept batch", zap.Int("flipped", flipped))
	}
}
