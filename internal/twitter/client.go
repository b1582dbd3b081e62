package twitter

import (
	"context"
	"fmt"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"

	"github.com/adamsosx/tweetx/internal/config"
)

// User is the authenticated account, as reported by the identity check.
type User struct {
	ID       string
	Username string
}

// Post is a published tweet.
type Post struct {
	ID   string
	Text string
}

// Client talks to the X API with OAuth 1.0a user context: v2 for identity
// and tweet creation, v1.1 simple upload for media.
type Client struct {
	api    *resty.Client
	upload *resty.Client
}

func NewClient(cfg config.TwitterConfig) *Client {
	oc := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	httpClient := oc.Client(oauth1.NoContext, token)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		api:    resty.NewWithClient(httpClient).SetBaseURL(cfg.BaseURL),
		upload: resty.NewWithClient(httpClient).SetBaseURL(cfg.UploadBaseURL),
	}
}

type meResp struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetReq struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetResp struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type mediaUploadResp struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

// Me verifies the credentials and returns the authenticated account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out meResp
	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/2/users/me")
	if err != nil {
		return User{}, fmt.Errorf("identity check: %w", err)
	}
	if !resp.IsSuccess() {
		return User{}, apiError("identity check", resp)
	}
	if out.Data.ID == "" {
		return User{}, fmt.Errorf("identity check: empty user in response")
	}
	return User{ID: out.Data.ID, Username: out.Data.Username}, nil
}

// UploadMedia pushes one local image through the v1.1 simple upload and
// returns the media identifier to attach to a tweet.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	var out mediaUploadResp
	resp, err := c.upload.R().
		SetContext(ctx).
		SetFile("media", path).
		SetResult(&out).
		Post("/1.1/media/upload.json")
	if err != nil {
		return "", fmt.Errorf("media upload: %w", err)
	}
	if !resp.IsSuccess() {
		return "", apiError("media upload", resp)
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("media upload: no media id in response")
	}
	return out.MediaIDString, nil
}

// CreateTweet publishes text, optionally carrying an uploaded media id and
// optionally threading onto inReplyTo.
func (c *Client) CreateTweet(ctx context.Context, text, mediaID, inReplyTo string) (Post, error) {
	req := tweetReq{Text: text}
	if mediaID != "" {
		req.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}
	if inReplyTo != "" {
		req.Reply = &tweetReply{InReplyToTweetID: inReplyTo}
	}

	var out tweetResp
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/2/tweets")
	if err != nil {
		return Post{}, fmt.Errorf("create tweet: %w", err)
	}
	if !resp.IsSuccess() {
		return Post{}, apiError("create tweet", resp)
	}
	if out.Data.ID == "" {
		return Post{}, fmt.Errorf("create tweet: no id in response")
	}
	return Post{ID: out.Data.ID, Text: out.Data.Text}, nil
}

func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("%s: %w", op, &APIError{
		Status:  resp.StatusCode(),
		Body:    snippet(resp.String()),
		ResetAt: resetTime(resp.Header()),
	})
}

// snippet keeps error logs readable when the platform returns a page of
// HTML instead of JSON.
func snippet(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
