package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/adamsosx/tweetx/internal/compose"
	"github.com/adamsosx/tweetx/internal/config"
	"github.com/adamsosx/tweetx/internal/feed"
	"github.com/adamsosx/tweetx/internal/generator"
	"github.com/adamsosx/tweetx/internal/publish"
	"github.com/adamsosx/tweetx/internal/twitter"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	runID := uuid.NewString()[:8]
	log.Printf("[RUN %s] started", runID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Printf("[RUN %s] failed: %v", runID, err)
		os.Exit(1)
	}
	log.Printf("[RUN %s] finished", runID)
}

func run(ctx context.Context, cfg *config.Config) error {
	radar := feed.NewRadar(cfg.Feed)
	ranked, err := radar.TopTokens(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if len(ranked) == 0 {
		log.Printf("[DONE] no token cleared the win-rate threshold, nothing to post")
		return nil
	}

	var gen generator.Generator
	if cfg.Generator.Enabled {
		gen = generator.NewOpenRouter(cfg.Generator)
	}

	composer := compose.New(cfg.Compose, gen)
	specs := composer.Compose(ctx, ranked)
	for i, s := range specs {
		log.Printf("[COMPOSE] prepared post %d/%d (%d chars):\n%s", i+1, len(specs), utf8.RuneCountInString(s.Text), s.Text)
	}

	session := publish.NewSession(twitter.NewClient(cfg.Twitter), cfg.Publish)
	res, err := session.Run(ctx, specs)
	report(res)
	return err
}

// report prints what actually went out, so a partial run can be reconciled
// by hand before anyone re-runs the bot.
func report(res *publish.Result) {
	for i, p := range res.Published {
		log.Printf("[RESULT] published %d: id=%s", i+1, p.ID)
	}
	if res.Unpublished > 0 {
		log.Printf("[RESULT] %d post(s) not published (state %s, last published id %q)", res.Unpublished, res.State, res.LastID())
	}
}
