// Package reclaimer runs the periodic sweep returning expired leases to the
// pool.
package reclaimer

import (
	"context"
	"errors"
	"time"

	"github.com/sharenet/packetpool/internal/clock"
	"github.com/sharenet/packetpool/internal/config"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("reclaimer: missing dependency")

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	PoolSvc pooldomain.Service
}

type Reclaimer struct {
	log      *zap.Logger
	clock    clock.Clock
	ttl      time.Duration
	interval time.Duration
	poolSvc  pooldomain.Service
}

func New(p Params) (*Reclaimer, error) {
	if p.Log == nil || p.Clock == nil || p.PoolSvc == nil {
		return nil, ErrInvalidConfig
	}
	ttl := p.Config.Pool.AllocationTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	interval := p.Config.Pool.ReclaimInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reclaimer{
		log:      p.Log.Named("reclaimer").With(zap.String("component", "reclaimer")),
		clock:    p.Clock,
		ttl:      ttl,
		interval: interval,
		poolSvc:  p.PoolSvc,
	}, nil
}

// RunForever sweeps on a fixed interval until the context is cancelled.
// Each sweep is independent and idempotent, so an error only skips the
// current tick.
func (r *Reclaimer) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reclaimer started",
		zap.Duration("interval", r.interval),
		zap.Duration("ttl", r.ttl),
	)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reclaimer stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Error("reclaim sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep.
func (r *Reclaimer) RunOnce(ctx context.Context) error {
	sweepCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	start := r.clock.Now()
	count, err := r.poolSvc.ReclaimStale(sweepCtx, r.ttl)
	if err != nil {
		if errors.Is(err, pooldomain.ErrStoreBusy) {
			// Contention with live claims; the next tick retries.
			r.log.Warn("reclaim sweep deferred", zap.Error(err))
			return nil
		}
		return err
	}
	if count > 0 {
		r.log.Info("reclaim sweep done",
			zap.Int("reclaimed", count),
			zap.Duration("took", r.clock.Now().Sub(start)),
		)
	}
	return nil
}
