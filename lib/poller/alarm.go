package poller

import (
	"context"
	"time"
)

type cycleEvent struct {
	timestamp time.Time
}

// alarmClock emits one event immediately on start and then one per
// interval. Sends block until the previous cycle is consumed, so a
// cycle that overruns its interval delays, never overlaps, the next.
type alarmClock struct {
	cancel func()
	ticker *time.Ticker
	C      chan cycleEvent
}

func newAlarmClock(interval time.Duration) *alarmClock {
	return &alarmClock{
		ticker: time.NewTicker(interval),
		C:      make(chan cycleEvent),
	}
}

func (a *alarmClock) Start(ctx context.Context) <-chan cycleEvent {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		defer close(a.C)

		select {
		case a.C <- cycleEvent{time.Now().UTC()}:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case t := <-a.ticker.C:
				select {
				case a.C <- cycleEvent{t.UTC()}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return a.C
}

func (a *alarmClock) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.ticker.Stop()
}
