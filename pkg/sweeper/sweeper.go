// Package sweeper ages execution records through their availability facets.
// Two independent periodic passes do the work: the mark pass flips elapsed
// AVAILABLE facets to TIME_OUT_PENDING, and the purge pass clears the content
// of pending facets (deleting the whole record when its record facet is
// pending). Splitting the two keeps each pass cheap and makes an interrupted
// purge harmless; pending facets are simply picked up again.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tracelab/opexec/internal/metrics"
	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/execstore"
)

// Config controls sweep cadence and pacing.
type Config struct {
	// MarkInterval is the period of the mark pass.
	MarkInterval time.Duration

	// PurgeInterval is the period of the purge pass.
	PurgeInterval time.Duration

	// PurgePerSecond rate-limits destructive purge work so a large backlog
	// of expired executions does not monopolize the store. Zero means
	// unlimited.
	PurgePerSecond float64
}

const (
	defaultMarkInterval  = time.Minute
	defaultPurgeInterval = 5 * time.Minute
)

// Sweeper runs the two maintenance passes against the execution and detail
// stores.
type Sweeper struct {
	store   execstore.Store
	details detailstore.Store
	log     *zap.Logger
	limiter *rate.Limiter
	now     func() time.Time

	markInterval  time.Duration
	purgeInterval time.Duration
}

func New(cfg Config, store execstore.Store, details detailstore.Store, log *zap.Logger) *Sweeper {
	if cfg.MarkInterval <= 0 {
		cfg.MarkInterval = defaultMarkInterval
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = defaultPurgeInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PurgePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PurgePerSecond), 1)
	}

	return &Sweeper{
		store:         store,
		details:       details,
		log:           log,
		limiter:       limiter,
		now:           time.Now,
		markInterval:  cfg.MarkInterval,
		purgeInterval: cfg.PurgeInterval,
	}
}

// Run drives both passes on their intervals until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	markTicker := time.NewTicker(s.markInterval)
	defer markTicker.Stop()
	purgeTicker := time.NewTicker(s.purgeInterval)
	defer purgeTicker.Stop()

	s.log.Info("sweeper started",
		zap.Duration("mark_interval", s.markInterval),
		zap.Duration("purge_interval", s.purgeInterval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-markTicker.C:
			if n, err := s.MarkPending(ctx); err != nil {
				s.log.Error("mark sweep failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("mark sweep", zap.Int("marked", n))
			}
		case <-purgeTicker.C:
			if n, err := s.Purge(ctx); err != nil {
				s.log.Error("purge sweep failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("purge sweep", zap.Int("purged", n))
			}
		}
	}
}

// MarkPending flips every elapsed AVAILABLE facet to TIME_OUT_PENDING and
// returns the number of facets marked. Facets whose clock has not started
// (the execution is still running) are never touched.
func (s *Sweeper) MarkPending(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.DueTimeOutPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("scan for elapsed facets: %w", err)
	}

	marked := 0
	for _, rec := range due {
		for _, kind := range []execstore.FacetKind{execstore.FacetRecord, execstore.FacetSummary, execstore.FacetDetails} {
			f := rec.Facet(kind)
			if f.Availability != execstore.Available || !f.Due(now) {
				continue
			}
			if err := s.store.SetAvailability(ctx, rec.ID, kind, execstore.TimeOutPending); err != nil {
				if errors.Is(err, execstore.ErrNotFound) {
					break
				}
				s.log.Warn("mark facet pending failed",
					zap.String("execution_id", rec.ID),
					zap.String("facet", string(kind)),
					zap.Error(err))
				continue
			}
			metrics.SweepMarked.WithLabelValues(string(kind)).Inc()
			marked++
		}
	}
	return marked, nil
}

// Purge clears every TIME_OUT_PENDING facet and returns the number of facets
// purged. A pending record facet deletes the whole record together with its
// details; pending summary and details facets only drop their own content.
func (s *Sweeper) Purge(ctx context.Context) (int, error) {
	due, err := s.store.DuePurge(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan for pending facets: %w", err)
	}

	purged := 0
	for _, rec := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return purged, fmt.Errorf("purge pacing: %w", err)
		}

		if rec.RecordFacet.Availability == execstore.TimeOutPending {
			if err := s.purgeRecord(ctx, rec.ID); err != nil {
				s.log.Warn("purge execution failed", zap.String("execution_id", rec.ID), zap.Error(err))
				continue
			}
			metrics.SweepPurged.WithLabelValues(string(execstore.FacetRecord)).Inc()
			purged++
			continue
		}

		if rec.SummaryFacet.Availability == execstore.TimeOutPending {
			if err := s.store.SetAvailability(ctx, rec.ID, execstore.FacetSummary, execstore.TimedOut); err != nil {
				s.log.Warn("purge summary failed", zap.String("execution_id", rec.ID), zap.Error(err))
			} else {
				metrics.SweepPurged.WithLabelValues(string(execstore.FacetSummary)).Inc()
				purged++
			}
		}
		if rec.DetailsFacet.Availability == execstore.TimeOutPending {
			if err := s.purgeDetails(ctx, rec); err != nil {
				s.log.Warn("purge details failed", zap.String("execution_id", rec.ID), zap.Error(err))
			} else {
				metrics.SweepPurged.WithLabelValues(string(execstore.FacetDetails)).Inc()
				purged++
			}
		}
	}
	return purged, nil
}

// purgeRecord removes the whole execution: detail documents first, then the
// record itself. Losing the race against another purge is fine.
func (s *Sweeper) purgeRecord(ctx context.Context, id string) error {
	if err := s.details.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete details: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, execstore.ErrNotFound) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// purgeDetails drops the detail documents, then marks the facet timed out so
// a crash between the two steps re-runs the (idempotent) delete.
func (s *Sweeper) purgeDetails(ctx context.Context, rec *execstore.Record) error {
	if rec.DetailsRef != "" {
		if err := s.details.Delete(ctx, rec.DetailsRef); err != nil {
			return fmt.Errorf("delete details: %w", err)
		}
	}
	if err := s.store.SetAvailability(ctx, rec.ID, execstore.FacetDetails, execstore.TimedOut); err != nil {
		return fmt.Errorf("mark details timed out: %w", err)
	}
	return nil
}
