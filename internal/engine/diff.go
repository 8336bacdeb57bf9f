package engine

import "stockwatch/pkg/models"

// Diff compares the current fetch against the previous snapshot. A product
// produces an event when it is new or its aggregate availability flipped;
// price, hall or per-store changes alone never do. Each product id yields at
// most one event and the order of current is preserved.
func Diff(prev models.Snapshot, current []models.Product, chain models.ChainID) []models.ChangeEvent {
	events := make([]models.ChangeEvent, 0)
	seen := make(map[string]struct{}, len(current))

	for _, p := range current {
		if _, dup := seen[p.ProductID]; dup {
			continue
		}
		seen[p.ProductID] = struct{}{}

		old, existed := prev[p.ProductID]
		if existed && old.AvailableAnywhere == p.AvailableAnywhere {
			continue
		}
		events = append(events, models.ChangeEvent{
			ProductID:         p.ProductID,
			Chain:             chain,
			Name:              p.Name,
			PreviousAvailable: existed && old.AvailableAnywhere,
			CurrentAvailable:  p.AvailableAnywhere,
			ImageURL:          p.ImageURL,
			FirstSeen:         !existed,
		})
	}
	return events
}

// nextSnapshot is the document persisted at the end of a cycle. Tracked
// products that dropped out of this fetch keep their last observed state so
// a transient failure does not replay a first-seen notification.
func nextSnapshot(prev models.Snapshot, current []models.Product, tracked []string) models.Snapshot {
	next := make(models.Snapshot, len(tracked))
	for _, p := range current {
		if _, ok := next[p.ProductID]; !ok {
			next[p.ProductID] = p
		}
	}
	for _, id := range tracked {
		if _, ok := next[id]; ok {
			continue
		}
		if old, ok := prev[id]; ok {
			next[id] = old
		}
	}
	return next
}
