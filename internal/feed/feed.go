package feed

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/adamsosx/tweetx/internal/domain"
)

// Fetcher returns the ranked top tokens for one run. A single bounded
// attempt per call; an empty result means nothing qualified, not failure.
type Fetcher interface {
	TopTokens(ctx context.Context) ([]domain.RankedToken, error)
}

// Rank keeps tokens with at least one qualifying call and orders them by
// qualifying count descending. The sort is stable, so feed order breaks
// ties. At most topN entries are returned.
func Rank(tokens []domain.Token, threshold decimal.Decimal, topN int) []domain.RankedToken {
	ranked := make([]domain.RankedToken, 0, len(tokens))
	for _, t := range tokens {
		if n := t.QualifyingCalls(threshold); n > 0 {
			ranked = append(ranked, domain.RankedToken{Token: t, Calls: n})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Calls > ranked[j].Calls
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
