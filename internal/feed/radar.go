package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/adamsosx/tweetx/internal/config"
	"github.com/adamsosx/tweetx/internal/domain"
)

// Radar pulls the most-called token feed from radar.fun.
type Radar struct {
	client    *resty.Client
	cfg       config.FeedConfig
	threshold decimal.Decimal
}

func NewRadar(cfg config.FeedConfig) *Radar {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", "tweetx/1.0")
	if cfg.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		log.Printf("[FEED] WARNING: TLS certificate verification is disabled")
	}

	return &Radar{
		client:    client,
		cfg:       cfg,
		threshold: decimal.NewFromFloat(cfg.WinRateThreshold),
	}
}

// TopTokens issues one GET against the feed and ranks the result. Transport
// failures, non-2xx statuses and malformed bodies all surface as errors;
// a well-formed feed where nothing qualifies returns an empty list.
func (r *Radar) TopTokens(ctx context.Context) ([]domain.RankedToken, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("timeframe", r.cfg.Timeframe).
		Get(r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch most-called feed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("most-called feed: HTTP %d", resp.StatusCode())
	}

	var tokens []domain.Token
	if err := json.Unmarshal(resp.Body(), &tokens); err != nil {
		return nil, fmt.Errorf("decode most-called feed: %w", err)
	}

	ranked := Rank(tokens, r.threshold, r.cfg.TopN)
	log.Printf("[FEED] fetched %d tokens (%s), %d qualify above win rate %s", len(tokens), r.cfg.Timeframe, len(ranked), r.threshold)
	return ranked, nil
}
