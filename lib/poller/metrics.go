package poller

type cycleMetrics struct {
	sourcesPolled int
	unavailable   int
	newItems      int
	dispatched    int
	recovered     int
	failed        int
}

func (m *cycleMetrics) Add(other *cycleMetrics) {
	m.sourcesPolled += other.sourcesPolled
	m.unavailable += other.unavailable
	m.newItems += other.newItems
	m.dispatched += other.dispatched
	m.recovered += other.recovered
	m.failed += other.failed
}
