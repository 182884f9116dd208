package feed

// Detect scans a fetched window (newest first) for items published
// after the one identified by lastFingerprint, returning them oldest
// first so delivery preserves chronological order. The returned
// fingerprint is always that of the newest item in the window.
//
// When lastFingerprint is empty or matches nothing in the window, only
// the single newest item is reported. A gap larger than the provider's
// window therefore loses items silently; this bounds dispatch volume
// after a long outage at the cost of completeness.
func Detect(items []Item, lastFingerprint string) (newItems []Item, newFingerprint string) {
	if len(items) == 0 {
		return nil, lastFingerprint
	}

	newFingerprint = Fingerprint(items[0])

	matched := false
	for i := len(items) - 1; i >= 0; i-- {
		if !matched {
			if lastFingerprint != "" && Fingerprint(items[i]) == lastFingerprint {
				matched = true
			}
			continue
		}
		newItems = append(newItems, items[i])
	}

	if !matched {
		newItems = []Item{items[0]}
	}
	return newItems, newFingerprint
}
