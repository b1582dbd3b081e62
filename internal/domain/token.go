package domain

import "github.com/shopspring/decimal"

// PlatformMaxPostLen is the hard per-post length limit the platform
// enforces. Composed text is counted in runes, never bytes.
const PlatformMaxPostLen = 280

// ChannelCall is one channel-level mention of a token in the feed. Extra
// feed fields are ignored.
type ChannelCall struct {
	WinRate decimal.Decimal `json:"win_rate"`
}

// Token is a single entry of the most-called feed.
type Token struct {
	Symbol       string        `json:"symbol"`
	Address      string        `json:"address"`
	Name         string        `json:"name,omitempty"`
	RawCallCount int           `json:"raw_call_count"`
	ChannelCalls []ChannelCall `json:"channel_calls"`
}

// QualifyingCalls counts channel calls whose win rate strictly exceeds
// threshold.
func (t Token) QualifyingCalls(threshold decimal.Decimal) int {
	n := 0
	for _, c := range t.ChannelCalls {
		if c.WinRate.GreaterThan(threshold) {
			n++
		}
	}
	return n
}

// RankedToken is a token that cleared the threshold, with its qualifying
// call count frozen at ranking time.
type RankedToken struct {
	Token
	Calls int
}

// PostSpec is one publishable page. ImageRef is a local file path, empty
// when the post carries no media. Specs are ordered root-first; the
// publisher threads each onto its predecessor.
type PostSpec struct {
	Text     string
	ImageRef string
}
