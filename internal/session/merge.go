package session

import (
	"sort"

	"github.com/xaenox/command-center/internal/models"
)

// Merge folds incoming rows into an existing message list: rows whose id is
// already present are dropped, then the result is re-sorted by creation
// time ascending (id as tiebreak). The function is pure, idempotent, and
// commutative over duplicate and out-of-order delivery, so push, poll, and
// local echo can all feed it without coordination.
func Merge(existing []models.Message, incoming ...models.Message) []models.Message {
	seen := make(map[string]struct{}, len(existing))
	for _, msg := range existing {
		seen[msg.ID] = struct{}{}
	}

	merged := append([]models.Message(nil), existing...)
	for _, msg := range incoming {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID
	})

	return merged
}
