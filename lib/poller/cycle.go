package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kavrel/chirpwatch/lib/dispatch"
	"github.com/kavrel/chirpwatch/lib/feed"
	"github.com/kavrel/chirpwatch/lib/models"
	"gorm.io/gorm"
)

// runCycle executes one poll→detect→render→dispatch pass over every
// tracked source. Sources are independent and polled concurrently; all
// persistence within the pass shares one session scope, released when
// the cycle returns.
func (p *Poller) runCycle(ctx context.Context, start time.Time) {
	cycleID := uuid.NewString()
	session := p.db.Session(&gorm.Session{NewDB: true}).WithContext(ctx)

	var sources models.Sources
	if err := session.Find(&sources).Error; err != nil {
		p.log.Sugar().Errorw("Failed to load tracked sources", "cycle_id", cycleID, "err", err)
		return
	}
	if len(sources) == 0 {
		return
	}

	var (
		wg      sync.WaitGroup
		mtx     sync.Mutex
		metrics = &cycleMetrics{}
		sem     = make(chan struct{}, concurrency)
	)
	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(src *models.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			m := p.pollSource(ctx, session, src)

			mtx.Lock()
			defer mtx.Unlock()
			metrics.Add(m)
		}(&sources[i])
	}
	wg.Wait()

	elapsed := time.Now().UTC().Sub(start)
	p.log.Sugar().Infow(
		fmt.Sprintf("Cycle complete: sent %d new posts", metrics.dispatched),
		"cycle_id", cycleID,
		"sources", metrics.sourcesPolled,
		"unavailable", metrics.unavailable,
		"new_items", metrics.newItems,
		"recovered", metrics.recovered,
		"failed", metrics.failed,
		"elapsed_msecs", int(elapsed.Milliseconds()),
	)
}

// pollSource handles one tracked source within a cycle. Fetch failure
// skips the source and leaves its fingerprint untouched; delivery
// failures are counted but never block the remaining channels.
func (p *Poller) pollSource(ctx context.Context, db *gorm.DB, src *models.Source) *cycleMetrics {
	m := &cycleMetrics{sourcesPolled: 1}

	fetched, err := p.fetcher.Fetch(ctx, src.Handle)
	if err != nil {
		m.unavailable = 1
		p.log.Sugar().Warnw("Source unavailable, skipping", "handle", src.Handle, "err", err)
		return m
	}

	last := ""
	if src.LastFingerprint.Valid {
		last = src.LastFingerprint.String
	}

	newItems, newFingerprint := feed.Detect(fetched.Items, last)
	m.newItems = len(newItems)

	if newFingerprint != last {
		tx := db.Model(&models.Source{}).
			Where("handle = ?", src.Handle).
			Update("last_fingerprint", newFingerprint)
		if err := tx.Error; err != nil {
			p.log.Sugar().Errorw("Failed to persist fingerprint", "handle", src.Handle, "err", err)
		}
	}

	if len(newItems) == 0 {
		return m
	}

	rendered := make([]models.RenderedItem, len(newItems))
	for i, item := range newItems {
		rendered[i] = p.renderer.Render(fetched, item)
	}

	var channels models.Channels
	err = db.
		Joins("JOIN subscriptions ON subscriptions.channel_id = channels.id").
		Where("subscriptions.source_handle = ?", src.Handle).
		Find(&channels).Error
	if err != nil {
		p.log.Sugar().Errorw("Failed to load subscribed channels", "handle", src.Handle, "err", err)
		return m
	}

	for i := range channels {
		// oldest first, so each channel sees the source in
		// chronological order
		for _, item := range rendered {
			result := p.dispatcher.Deliver(ctx, db, &channels[i], item)
			switch result.Status {
			case dispatch.StatusDelivered:
				m.dispatched++
			case dispatch.StatusRecovered:
				m.dispatched++
				m.recovered++
			case dispatch.StatusFailed:
				m.failed++
				p.log.Sugar().Warnw("Delivery failed",
					"handle", src.Handle, "channel", channels[i].ID, "err", result.Err)
			}
		}
	}
	return m
}
