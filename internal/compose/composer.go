package compose

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adamsosx/tweetx/internal/config"
	"github.com/adamsosx/tweetx/internal/domain"
	"github.com/adamsosx/tweetx/internal/generator"
)

// Composer renders a ranked token list into one or more size-bounded post
// bodies: the first page becomes the root post, the rest become threaded
// replies. Rendering is deterministic; the optional generator only ever
// replaces a page when its output fits, otherwise the template stands.
type Composer struct {
	cfg config.ComposeConfig
	gen generator.Generator
	now func() time.Time
}

// New builds a Composer. gen may be nil, which disables generation.
func New(cfg config.ComposeConfig, gen generator.Generator) *Composer {
	return &Composer{
		cfg: cfg,
		gen: gen,
		now: time.Now,
	}
}

// Compose splits ranked into pages of cfg.PageSize tokens and renders each
// one. All pages share the same UTC timestamp. Every returned text is
// within cfg.MaxPostLen runes.
func (c *Composer) Compose(ctx context.Context, ranked []domain.RankedToken) []domain.PostSpec {
	if len(ranked) == 0 {
		return nil
	}

	ts := c.now().UTC().Format("2006-01-02 15:04")

	var specs []domain.PostSpec
	for start := 0; start < len(ranked); start += c.cfg.PageSize {
		end := start + c.cfg.PageSize
		if end > len(ranked) {
			end = len(ranked)
		}

		text := c.renderPage(ranked[start:end], start+1, ts)
		if c.gen != nil {
			if alt, ok := c.generated(ctx, text); ok {
				text = alt
			}
		}

		specs = append(specs, domain.PostSpec{Text: text, ImageRef: c.cfg.ImagePath})
	}
	return specs
}

// renderPage lays out one page: header line with the run timestamp, a
// three-line block per token separated by blank lines, then the footer.
// startPos is the 1-based rank of the first token on the page.
func (c *Composer) renderPage(tokens []domain.RankedToken, startPos int, ts string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s - %s UTC\n\n", c.cfg.Header, ts)

	for i, t := range tokens {
		marker := rankMarker(startPos + i)
		if t.Name != "" {
			fmt.Fprintf(&b, "%s $%s (%s)\n", marker, t.Symbol, t.Name)
		} else {
			fmt.Fprintf(&b, "%s $%s\n", marker, t.Symbol)
		}
		fmt.Fprintf(&b, "   CA: %s\n", t.Address)
		fmt.Fprintf(&b, "   Calls: %d\n\n", t.Calls)
	}

	text := strings.TrimRight(b.String(), "\n") + "\n\n" + c.cfg.Footer
	return truncate(text, c.cfg.MaxPostLen)
}

// generated asks the generator for an alternative rendering of the page.
// Any error, empty output or over-length output falls back to the template.
func (c *Composer) generated(ctx context.Context, tmpl string) (string, bool) {
	prompt := fmt.Sprintf(`Rewrite this crypto market update as a single engaging post:

%s

Rules:
- keep every $SYMBOL, contract address and call count
- at most %d characters
- plain text only, no markdown`, tmpl, c.cfg.MaxPostLen)

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		log.Printf("[COMPOSE] generator failed, using template: %v", err)
		return "", false
	}
	if text == "" {
		log.Printf("[COMPOSE] generator returned nothing, using template")
		return "", false
	}
	if n := utf8.RuneCountInString(text); n > c.cfg.MaxPostLen {
		log.Printf("[COMPOSE] generated text too long (%d chars > %d), using template", n, c.cfg.MaxPostLen)
		return "", false
	}
	return text, true
}

// rankMarker renders 1-based list positions: medals for the podium,
// "4."-style ordinals after that.
func rankMarker(pos int) string {
	switch pos {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", pos)
	}
}

// truncate caps s at max runes, marking the cut with a visible ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	log.Printf("[COMPOSE] page too long (%d chars), truncating to %d", len(r), max)
	return string(r[:max-3]) + "..."
}
