package faq

import (
	"context"
	"strings"

	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// Matcher answers queries from the administrator-curated FAQ corpus. The
// corpus is read fresh on every lookup so admin edits take effect
// immediately; the matcher never mutates it.
type Matcher struct {
	store  storage.Storage
	logger *zap.Logger
}

func NewMatcher(store storage.Storage, logger *zap.Logger) *Matcher {
	return &Matcher{store: store, logger: logger}
}

// FindAnswer applies three match tiers in strict priority order and returns
// the first hit: exact question match, question contained in the query, then
// any FAQ keyword appearing in the query. Entries are tried in id order, so
// ties resolve to the lowest id. A miss returns ("", false).
func (m *Matcher) FindAnswer(ctx context.Context, query string) (string, bool) {
	faqs, err := m.store.ListFaqs(ctx)
	if err != nil {
		m.logger.Error("Failed to load FAQ corpus", zap.Error(err))
		return "", false
	}
	if len(faqs) == 0 {
		return "", false
	}

	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	for _, faq := range faqs {
		if strings.ToLower(faq.Question) == lowerQuery {
			return faq.Answer, true
		}
	}

	for _, faq := range faqs {
		if strings.Contains(lowerQuery, strings.ToLower(faq.Question)) {
			return faq.Answer, true
		}
	}

	for _, faq := range faqs {
		if faq.Keywords == "" {
			continue
		}
		for _, keyword := range strings.Split(faq.Keywords, ",") {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(lowerQuery, keyword) {
				return faq.Answer, true
			}
		}
	}

	return "", false
}
