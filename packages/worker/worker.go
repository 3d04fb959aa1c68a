// Package worker runs the scrape cycles: shuffled, paced, one fetch at a time,
// with a consecutive-block breaker that switches scraping off.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"scrapemonitor/packages/domain"
	"scrapemonitor/packages/metrics"
	"scrapemonitor/packages/toggle"

	"github.com/google/uuid"
)

const bodyPreviewChars = 200

var ErrAlreadyStarted = errors.New("scrape loop already started")

const (
	outcomeCompleted   = "completed"
	outcomeAborted     = "aborted"
	outcomeAutoStopped = "auto_stopped"
	outcomeCancelled   = "cancelled"
	outcomeError       = "error"
)

type Fetcher interface {
	Fetch(ctx context.Context, target domain.Target) domain.FetchResult
	ProbeEgressIP(ctx context.Context) string
}

type TargetSource interface {
	ListTargets(ctx context.Context) ([]domain.Target, error)
}

// Resetter is implemented by target sources that hold connections worth
// dropping after a failed cycle.
type Resetter interface {
	Reset()
}

type Config struct {
	ProxyConfigured bool
	BaseDelayMs     int
	JitterMs        int
	// BlockThreshold <= 0 trips on the first block.
	BlockThreshold int
	IdleInterval   time.Duration
	ErrorBackoff   time.Duration
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithRand(rng *rand.Rand) Option {
	return func(w *Worker) { w.rng = rng }
}

type Worker struct {
	cfg     Config
	source  TargetSource
	fetcher Fetcher
	toggle  toggle.Toggle
	logger  *slog.Logger
	rng     *rand.Rand
	started atomic.Bool
	cycles  int
}

func New(cfg Config, source TargetSource, fetcher Fetcher, tg toggle.Toggle, opts ...Option) *Worker {
	w := &Worker{
		cfg:     cfg,
		source:  source,
		fetcher: fetcher,
		toggle:  tg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.rng == nil {
		w.rng = newRand()
	}
	return w
}

// Start runs the scrape loop until ctx is cancelled. It may be called once.
// Without a proxy configuration it logs the skip and returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if !w.cfg.ProxyConfigured {
		w.logger.Info("Proxy not configured, scrape loop not started",
			"event", "scrape_loop_skipped",
			"reason", "proxy host/port not configured",
		)
		return nil
	}

	egressIP := w.fetcher.ProbeEgressIP(ctx)
	targetCount := 0
	if targets, err := w.source.ListTargets(ctx); err != nil {
		w.logger.Warn("Could not count targets at startup", "error", err)
	} else {
		targetCount = len(targets)
	}
	minMs, maxMs := DelayBand(w.cfg.BaseDelayMs, w.cfg.JitterMs)
	w.logger.Info("Scrape monitor started",
		"event", "monitor_start",
		"egress_ip", egressIP,
		"target_count", targetCount,
		"delay_min_ms", minMs,
		"delay_max_ms", maxMs,
		"block_threshold", w.cfg.BlockThreshold,
		"enabled", w.toggle.IsEnabled(),
	)

	w.loop(ctx)
	w.logger.Info("Scrape loop stopped", "cycles", w.cycles)
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		if !w.toggle.IsEnabled() {
			if !sleepCtx(ctx, w.cfg.IdleInterval) {
				return
			}
			continue
		}

		cycle := w.cycles + 1
		pause, err := w.runCycleSafely(ctx, cycle)
		w.cycles++
		if err != nil {
			w.logger.Error("Scrape cycle failed",
				"event", "cycle_error",
				"cycle", cycle,
				"error", err,
			)
			metrics.CyclesTotal.WithLabelValues(outcomeError).Inc()
			if r, ok := w.source.(Resetter); ok {
				r.Reset()
			}
			pause = w.cfg.ErrorBackoff
		}
		if pause > 0 && !sleepCtx(ctx, pause) {
			return
		}
	}
}

func (w *Worker) runCycleSafely(ctx context.Context, cycle int) (pause time.Duration, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in cycle: %v", p)
		}
	}()
	return w.runCycle(ctx, cycle)
}

// runCycle makes one pass over the shuffled catalog. The returned pause is how
// long the loop should wait before the next cycle.
func (w *Worker) runCycle(ctx context.Context, cycle int) (time.Duration, error) {
	start := time.Now()
	log := w.logger.With("cycle_id", uuid.NewString(), "cycle", cycle)

	targets, err := w.source.ListTargets(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing targets: %w", err)
	}
	order := Shuffle(targets, w.rng)
	stats := domain.NewCycleStats(len(order))
	tripAt := max(w.cfg.BlockThreshold, 1)
	outcome := outcomeCompleted

	for i, target := range order {
		if !w.toggle.IsEnabled() {
			log.Info("Scraping disabled mid-cycle, aborting",
				"event", "cycle_aborted",
				"reason", "scraping disabled",
				"processed", i,
				"remaining", len(order)-i,
			)
			outcome = outcomeAborted
			break
		}
		if ctx.Err() != nil {
			outcome = outcomeCancelled
			break
		}

		res := w.fetcher.Fetch(ctx, target)
		run := stats.Record(res)
		metrics.ObserveFetch(res.HTTPStatus, res.ResponseTime.Seconds(), string(res.BlockType))
		metrics.ConsecutiveBlocks.Set(float64(run))

		log.Info("Scrape result",
			"event", "scrape_result",
			"target", int64(res.Target),
			"status_code", res.HTTPStatus,
			"response_time_ms", res.ResponseTimeMs(),
			"blocked", res.Blocked,
			"block_type", nullable(string(res.BlockType)),
			"error", nullable(res.Error),
			"body_preview", res.BodyPreview(bodyPreviewChars),
		)

		if run >= tripAt {
			log.Warn("Consecutive blocks reached threshold, disabling scraping",
				"event", "scraping_auto_stopped",
				"consecutive_blocks", run,
				"threshold", w.cfg.BlockThreshold,
				"last_block_type", string(res.BlockType),
				"target", int64(res.Target),
			)
			w.disable()
			metrics.AutoStopsTotal.Inc()
			outcome = outcomeAutoStopped
			break
		}

		if i < len(order)-1 && !sleepCtx(ctx, JitterDelay(w.cfg.BaseDelayMs, w.cfg.JitterMs, w.rng)) {
			outcome = outcomeCancelled
			break
		}
	}

	stats.Finish(time.Since(start))
	metrics.ConsecutiveBlocks.Set(0)
	log.Info("Scrape cycle complete",
		"event", "cycle_complete",
		"outcome", outcome,
		"total_targets", stats.TotalTargets,
		"attempted_targets", stats.AttemptedTargets,
		"success_count", stats.SuccessCount,
		"error_count", stats.ErrorCount,
		"blocked_count", stats.BlockedCount,
		"consecutive_blocks", stats.ConsecutiveBlocks,
		"error_breakdown", stats.ErrorBreakdown,
		"total_response_time_ms", stats.TotalResponseTime.Milliseconds(),
		"avg_response_time_ms", stats.AvgResponseTimeMs,
		"cycle_duration_min", stats.CycleDurationMin,
	)
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()

	if len(order) == 0 {
		return w.cfg.IdleInterval, nil
	}
	return 0, nil
}

func (w *Worker) disable() {
	if s, ok := w.toggle.(interface{ SetEnabledBy(bool, string) }); ok {
		s.SetEnabledBy(false, toggle.SourceCircuitBreaker)
		return
	}
	w.toggle.SetEnabled(false)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
