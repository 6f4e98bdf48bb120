package filter

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Words and phrases that are never acceptable in an inbound message.
var defaultDenylist = []string{
	"spam",
	"advertisement",
	"free money",
	"lottery win",
	"idiot",
	"stupid",
	"moron",
}

const (
	maxRepeatedRun    = 6
	upperCaseRatioCap = 0.7
	minLengthForRatio = 10
)

// Filter classifies message text as acceptable or prohibited. It is
// deterministic and makes no external calls.
type Filter struct {
	denylist []string
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Filter {
	return &Filter{
		denylist: defaultDenylist,
		logger:   logger,
	}
}

// NewWithDenylist builds a filter over a custom denylist.
func NewWithDenylist(denylist []string, logger *zap.Logger) *Filter {
	return &Filter{
		denylist: denylist,
		logger:   logger,
	}
}

// IsProhibited reports whether the text violates the content policy.
// Rules are evaluated independently; any hit prohibits the text.
func (f *Filter) IsProhibited(text string) bool {
	if text == "" {
		return false
	}

	lower := strings.ToLower(text)

	for _, word := range f.denylist {
		if strings.Contains(lower, strings.ToLower(word)) {
			f.logger.Warn("Inappropriate content detected",
				zap.String("word", word))
			return true
		}
	}

	if hasRepeatedRun(lower, maxRepeatedRun) {
		f.logger.Warn("Repeated characters detected (possible spam)")
		return true
	}

	if isShouting(text) {
		f.logger.Warn("Too many uppercase letters detected")
		return true
	}

	return false
}

// hasRepeatedRun reports whether any single rune repeats at least n times
// consecutively.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// isShouting reports whether the uppercase-letter ratio exceeds the cap.
// Short texts are exempt to avoid false positives on abbreviations.
func isShouting(text string) bool {
	upper := 0
	total := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total <= minLengthForRatio {
		return false
	}
	return float64(upper)/float64(total) > upperCaseRatioCap
}
