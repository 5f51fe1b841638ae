package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/command-center/internal/models"
)

func msg(id string, at time.Time) models.Message {
	return models.Message{ID: id, ThreadID: "t1", AgentName: "user", Content: id, CreatedAt: at}
}

func TestMergeDropsDuplicates(t *testing.T) {
	base := time.Now()
	a := msg("a", base)

	merged := Merge(nil, a)
	merged = Merge(merged, a) // same row via the next poll cycle
	require.Len(t, merged, 1)
	assert.Equal(t, "a", merged[0].ID)
}

func TestMergeOrdersByCreationTime(t *testing.T) {
	base := time.Now()
	first := msg("b", base)
	second := msg("a", base.Add(time.Second))
	third := msg("c", base.Add(2*time.Second))

	// Arrival order scrambled: poll delivers the newest first, push fills
	// in the rest.
	merged := Merge(nil, third)
	merged = Merge(merged, first)
	merged = Merge(merged, second)

	require.Len(t, merged, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{merged[0].ID, merged[1].ID, merged[2].ID})
}

func TestMergeIsIdempotentAndCommutative(t *testing.T) {
	base := time.Now()
	a := msg("a", base)
	b := msg("b", base.Add(time.Second))

	ab := Merge(Merge(nil, a), b)
	ba := Merge(Merge(nil, b), a)
	assert.Equal(t, ab, ba)
	assert.Equal(t, ab, Merge(ab, a, b))
}

func TestMergeTiesBreakOnID(t *testing.T) {
	at := time.Now()
	merged := Merge(nil, msg("z", at), msg("a", at))
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "z", merged[1].ID)
}
