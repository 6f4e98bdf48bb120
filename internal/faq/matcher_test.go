package faq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

func newCorpus(t *testing.T, entries ...*models.FaqEntry) *storage.MemoryStorage {
	t.Helper()
	store := storage.NewMemoryStorage()
	for _, entry := range entries {
		require.NoError(t, store.AddFaq(context.Background(), entry))
	}
	return store
}

func TestFindAnswer_MatchTiers(t *testing.T) {
	store := newCorpus(t, &models.FaqEntry{
		Question: "How do I reset my password?",
		Answer:   "Use the reset link.",
		Keywords: "reset,password",
	})
	m := NewMatcher(store, zap.NewNop())
	ctx := context.Background()

	// Exact match, case-folded and trimmed.
	answer, ok := m.FindAnswer(ctx, "  how do i reset my password?  ")
	assert.True(t, ok)
	assert.Equal(t, "Use the reset link.", answer)

	// Containment match: the stored question appears inside the query.
	answer, ok = m.FindAnswer(ctx, "please tell me how do i reset my password? thanks")
	assert.True(t, ok)
	assert.Equal(t, "Use the reset link.", answer)

	// Keyword match.
	answer, ok = m.FindAnswer(ctx, "I forgot my password")
	assert.True(t, ok)
	assert.Equal(t, "Use the reset link.", answer)

	// Miss.
	_, ok = m.FindAnswer(ctx, "What is your refund policy?")
	assert.False(t, ok)
}

func TestFindAnswer_TiersHavePriority(t *testing.T) {
	store := newCorpus(t,
		&models.FaqEntry{
			Question: "billing",
			Answer:   "containment answer",
		},
		&models.FaqEntry{
			Question: "where can I see my billing history?",
			Answer:   "exact answer",
		},
	)
	m := NewMatcher(store, zap.NewNop())

	// The second entry matches exactly; the first would match by
	// containment. Exact wins regardless of corpus order.
	answer, ok := m.FindAnswer(context.Background(), "Where can I see my billing history?")
	assert.True(t, ok)
	assert.Equal(t, "exact answer", answer)
}

func TestFindAnswer_TiesResolveToLowestID(t *testing.T) {
	store := newCorpus(t,
		&models.FaqEntry{Question: "vpn", Answer: "first"},
		&models.FaqEntry{Question: "vpn setup", Answer: "second"},
	)
	m := NewMatcher(store, zap.NewNop())

	answer, ok := m.FindAnswer(context.Background(), "my vpn setup is broken")
	assert.True(t, ok)
	assert.Equal(t, "first", answer)
}

func TestFindAnswer_EmptyCorpus(t *testing.T) {
	m := NewMatcher(storage.NewMemoryStorage(), zap.NewNop())

	_, ok := m.FindAnswer(context.Background(), "anything")
	assert.False(t, ok)
}
