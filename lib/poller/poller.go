// Package poller drives the update cycle: poll every tracked source,
// detect new items, render them, and fan them out to every subscribed
// channel on a fixed interval.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kavrel/chirpwatch/config"
	"github.com/kavrel/chirpwatch/discord"
	"github.com/kavrel/chirpwatch/lib/dispatch"
	"github.com/kavrel/chirpwatch/lib/feed"
	"github.com/kavrel/chirpwatch/lib/reconcile"
	"github.com/kavrel/chirpwatch/lib/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var mu sync.Mutex

const (
	concurrency  = 5
	cycleTimeout = 3 * time.Minute
)

// ReadinessProber confirms the delivery platform connection is up
// before the first cycle is allowed to run.
type ReadinessProber interface {
	Me(ctx context.Context) error
}

func NewPoller(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	client *discord.Client,
	fetcher feed.Fetcher,
	renderer *render.Renderer,
	dispatcher *dispatch.Dispatcher,
	reconciler *reconcile.Reconciler,
) *Poller {
	p := &Poller{
		log:        log,
		db:         db,
		client:     client,
		fetcher:    fetcher,
		renderer:   renderer,
		dispatcher: dispatcher,
		reconciler: reconciler,
		alarm:      newAlarmClock(cfg.UpdateInterval()),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go p.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop poller")
			p.Stop()
			return nil
		},
	})

	return p
}

type Poller struct {
	log        *zap.Logger
	db         *gorm.DB
	client     ReadinessProber
	fetcher    feed.Fetcher
	renderer   *render.Renderer
	dispatcher *dispatch.Dispatcher
	reconciler *reconcile.Reconciler
	alarm      *alarmClock
}

// Start blocks until the delivery platform is reachable, runs the
// startup reconciliation, then serves cycle events until Stop.
func (p *Poller) Start(ctx context.Context) {
	if err := p.waitUntilReady(ctx); err != nil {
		p.log.Sugar().Infow("Poller startup aborted", "err", err)
		return
	}
	p.log.Sugar().Info("Delivery platform ready")

	if _, err := p.reconciler.Run(ctx); err != nil {
		p.log.Sugar().Errorw("Reconciliation failed, continuing with existing records", "err", err)
	}

	for evt := range p.alarm.Start(ctx) {
		p.handleEvent(evt)
	}
}

// Stop waits for the in-flight cycle to finish its current pass before
// releasing the alarm clock.
func (p *Poller) Stop() {
	mu.Lock()
	defer mu.Unlock()
	p.alarm.Stop()
	p.log.Sugar().Info("Poller stopped")
}

// waitUntilReady retries until the delivery platform accepts the bot's
// identity. The backoff never gives up on its own; only ctx cancellation
// ends the wait, so a long platform outage at boot delays the first
// cycle instead of disabling the poller.
func (p *Poller) waitUntilReady(ctx context.Context) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(0),
	), ctx)

	return backoff.Retry(func() error {
		return p.client.Me(ctx)
	}, policy)
}

func (p *Poller) handleEvent(evt cycleEvent) {
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	p.runCycle(ctx, evt.timestamp)
}
