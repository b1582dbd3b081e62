package publish

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/adamsosx/tweetx/internal/config"
	"github.com/adamsosx/tweetx/internal/domain"
	"github.com/adamsosx/tweetx/internal/retry"
	"github.com/adamsosx/tweetx/internal/twitter"
)

// Platform is the slice of the publish API the session drives.
type Platform interface {
	Me(ctx context.Context) (twitter.User, error)
	UploadMedia(ctx context.Context, path string) (string, error)
	CreateTweet(ctx context.Context, text, mediaID, inReplyTo string) (twitter.Post, error)
}

// State marks how far a session run got.
type State string

const (
	StateIdle          State = "idle"
	StateAuthenticated State = "authenticated"
	StateMediaUploaded State = "media_uploaded"
	StateRootPosted    State = "root_posted"
	StateReplyPosted   State = "reply_posted"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Result reports what a run actually published, whatever else went wrong.
// Published is ordered root-first so operators can reconcile partial runs.
type Result struct {
	State       State
	Published   []twitter.Post
	Unpublished int
}

// LastID returns the identifier of the most recently published post, empty
// when nothing went out.
func (r *Result) LastID() string {
	if len(r.Published) == 0 {
		return ""
	}
	return r.Published[len(r.Published)-1].ID
}

// Session publishes an ordered list of post specs as one thread: the first
// spec is the root, every later spec replies to its predecessor. Steps are
// strictly sequential; a failed step aborts everything that depends on it
// while keeping earlier successes.
type Session struct {
	platform Platform
	cfg      config.PublishConfig

	auth  retry.Policy
	media retry.Policy
	post  retry.Policy
}

func NewSession(p Platform, cfg config.PublishConfig) *Session {
	return &Session{
		platform: p,
		cfg:      cfg,
		auth:     policyFrom(cfg.AuthRetry, cfg),
		media:    policyFrom(cfg.MediaRetry, cfg),
		post:     policyFrom(cfg.PostRetry, cfg),
	}
}

func policyFrom(rc config.RetryConfig, pc config.PublishConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   rc.BaseDelay,
		MaxDelay:    rc.MaxDelay,
		ResetBuffer: pc.ResetBuffer,
		WaitCeiling: pc.WaitCeiling,
		Classify:    twitter.Classify,
	}
}

// Run drives the state machine over specs. The returned Result is always
// populated, also on error, so callers can report partial progress.
func (s *Session) Run(ctx context.Context, specs []domain.PostSpec) (*Result, error) {
	res := &Result{State: StateIdle}

	if len(specs) == 0 {
		log.Printf("[PUBLISH] nothing to publish")
		res.State = StateDone
		return res, nil
	}

	var user twitter.User
	err := s.auth.Do(ctx, "identity check", func() error {
		var err error
		user, err = s.platform.Me(ctx)
		return err
	})
	if err != nil {
		res.State = StateFailed
		res.Unpublished = len(specs)
		return res, fmt.Errorf("authentication: %w", err)
	}
	res.State = StateAuthenticated
	log.Printf("[PUBLISH] authenticated as @%s", user.Username)

	for i, spec := range specs {
		if n := utf8.RuneCountInString(spec.Text); n > domain.PlatformMaxPostLen {
			res.State = StateFailed
			res.Unpublished = len(specs) - i
			return res, fmt.Errorf("post %d/%d is %d chars, over the %d limit", i+1, len(specs), n, domain.PlatformMaxPostLen)
		}

		mediaID, err := s.uploadIfNeeded(ctx, res, spec)
		if err != nil {
			res.State = StateFailed
			res.Unpublished = len(specs) - i
			return res, err
		}

		inReplyTo := res.LastID()
		var post twitter.Post
		err = s.post.Do(ctx, "create tweet", func() error {
			var err error
			post, err = s.platform.CreateTweet(ctx, spec.Text, mediaID, inReplyTo)
			return err
		})
		if err != nil {
			res.State = StateFailed
			res.Unpublished = len(specs) - i
			return res, fmt.Errorf("post %d/%d: %w", i+1, len(specs), err)
		}

		res.Published = append(res.Published, post)
		if i == 0 {
			res.State = StateRootPosted
		} else {
			res.State = StateReplyPosted
		}
		log.Printf("[PUBLISH] post %d/%d sent: https://twitter.com/%s/status/%s", i+1, len(specs), user.Username, post.ID)

		// The platform penalizes rapid-fire posting, so pace the thread.
		if i < len(specs)-1 {
			log.Printf("[PUBLISH] waiting %s before the next post", s.cfg.InterPostDelay)
			select {
			case <-ctx.Done():
				res.State = StateFailed
				res.Unpublished = len(specs) - i - 1
				return res, fmt.Errorf("cancelled during inter-post delay: %w", ctx.Err())
			case <-time.After(s.cfg.InterPostDelay):
			}
		}
	}

	res.State = StateDone
	log.Printf("[PUBLISH] done, %d posts published", len(res.Published))
	return res, nil
}

// uploadIfNeeded resolves the media id for one spec: empty when the spec
// carries no image, or when a failed upload is degraded to text-only under
// the lenient policy. Under the strict policy upload failure is fatal.
func (s *Session) uploadIfNeeded(ctx context.Context, res *Result, spec domain.PostSpec) (string, error) {
	if spec.ImageRef == "" {
		return "", nil
	}

	var mediaID string
	err := s.media.Do(ctx, "media upload", func() error {
		var err error
		mediaID, err = s.platform.UploadMedia(ctx, spec.ImageRef)
		return err
	})
	if err == nil {
		res.State = StateMediaUploaded
		log.Printf("[PUBLISH] media %s uploaded as %s", spec.ImageRef, mediaID)
		return mediaID, nil
	}

	if s.cfg.MediaPolicy == config.MediaPolicyLenient {
		log.Printf("[PUBLISH] media upload failed, posting text-only: %v", err)
		return "", nil
	}
	return "", fmt.Errorf("media upload: %w", err)
}
