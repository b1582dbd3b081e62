package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/adamsosx/tweetx/internal/domain"
)

const envPrefix = "TWEETX_"

// Image-upload failure policies: strict aborts the run, lenient degrades
// the affected post to text-only.
const (
	MediaPolicyStrict  = "strict"
	MediaPolicyLenient = "lenient"
)

type Config struct {
	Feed       FeedConfig      `koanf:"feed"`
	Compose    ComposeConfig   `koanf:"compose"`
	Generator  GeneratorConfig `koanf:"generator"`
	Publish    PublishConfig   `koanf:"publish"`
	Twitter    TwitterConfig   `koanf:"twitter"`
	RunTimeout time.Duration   `koanf:"run_timeout"`
}

type FeedConfig struct {
	URL                string        `koanf:"url"`
	Timeframe          string        `koanf:"timeframe"`
	Timeout            time.Duration `koanf:"timeout"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`
	WinRateThreshold   float64       `koanf:"win_rate_threshold"`
	TopN               int           `koanf:"top_n"`
}

type ComposeConfig struct {
	PageSize   int    `koanf:"page_size"`
	MaxPostLen int    `koanf:"max_post_len"`
	Header     string `koanf:"header"`
	Footer     string `koanf:"footer"`
	ImagePath  string `koanf:"image_path"`
}

type GeneratorConfig struct {
	Enabled bool          `koanf:"enabled"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
}

type PublishConfig struct {
	InterPostDelay time.Duration `koanf:"inter_post_delay"`
	MediaPolicy    string        `koanf:"media_policy"`
	ResetBuffer    time.Duration `koanf:"reset_buffer"`
	WaitCeiling    time.Duration `koanf:"wait_ceiling"`
	AuthRetry      RetryConfig   `koanf:"auth_retry"`
	MediaRetry     RetryConfig   `koanf:"media_retry"`
	PostRetry      RetryConfig   `koanf:"post_retry"`
}

type TwitterConfig struct {
	APIKey        string        `koanf:"api_key"`
	APISecret     string        `koanf:"api_secret"`
	AccessToken   string        `koanf:"access_token"`
	AccessSecret  string        `koanf:"access_secret"`
	BaseURL       string        `koanf:"base_url"`
	UploadBaseURL string        `koanf:"upload_base_url"`
	Timeout       time.Duration `koanf:"timeout"`
}

// Default returns the configuration used when neither config.yaml nor
// environment overrides say otherwise. Credentials have no defaults.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:              "https://radar.fun/api/tokens/most-called",
			Timeframe:        "1h",
			Timeout:          30 * time.Second,
			WinRateThreshold: 30,
			TopN:             4,
		},
		Compose: ComposeConfig{
			PageSize:   3,
			MaxPostLen: domain.PlatformMaxPostLen,
			Header:     "📢 Top Most Called Tokens (Radar.fun 1h)",
			Footer:     "#SOL #Crypto #DeFi #TopTokens #Altcoins #RadarFun",
		},
		Generator: GeneratorConfig{
			Model:   "openai/gpt-4o-mini",
			BaseURL: "https://openrouter.ai/api/v1",
			Timeout: 60 * time.Second,
		},
		Publish: PublishConfig{
			InterPostDelay: 90 * time.Second,
			MediaPolicy:    MediaPolicyStrict,
			ResetBuffer:    5 * time.Second,
			WaitCeiling:    600 * time.Second,
			AuthRetry:      RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second},
			MediaRetry:     RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second},
			PostRetry:      RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second},
		},
		Twitter: TwitterConfig{
			BaseURL:       "https://api.twitter.com",
			UploadBaseURL: "https://upload.twitter.com",
			Timeout:       30 * time.Second,
		},
		RunTimeout: 25 * time.Minute,
	}
}

// Load layers an optional yaml file and TWEETX_-prefixed environment
// variables over the defaults, then pulls credentials from the canonical
// env names (TWITTER_API_KEY etc.) and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		// TWEETX_PUBLISH__POST_RETRY__MAX_ATTEMPTS -> publish.post_retry.max_attempts
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", "."), value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// The original deployment fed credentials through these exact names.
	applyEnv(&cfg.Twitter.APIKey, "TWITTER_API_KEY")
	applyEnv(&cfg.Twitter.APISecret, "TWITTER_API_SECRET")
	applyEnv(&cfg.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	applyEnv(&cfg.Twitter.AccessSecret, "TWITTER_ACCESS_TOKEN_SECRET")
	applyEnv(&cfg.Generator.APIKey, "OPENROUTER_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url must not be empty")
	}
	if c.Feed.TopN < 1 {
		return fmt.Errorf("feed.top_n must be at least 1, got %d", c.Feed.TopN)
	}
	if c.Compose.PageSize < 1 {
		return fmt.Errorf("compose.page_size must be at least 1, got %d", c.Compose.PageSize)
	}
	if c.Compose.MaxPostLen < 1 || c.Compose.MaxPostLen > domain.PlatformMaxPostLen {
		return fmt.Errorf("compose.max_post_len must be in 1..%d, got %d", domain.PlatformMaxPostLen, c.Compose.MaxPostLen)
	}
	switch c.Publish.MediaPolicy {
	case MediaPolicyStrict, MediaPolicyLenient:
	default:
		return fmt.Errorf("publish.media_policy must be %s or %s, got %q", MediaPolicyStrict, MediaPolicyLenient, c.Publish.MediaPolicy)
	}
	for _, rc := range []struct {
		name string
		cfg  RetryConfig
	}{
		{"auth_retry", c.Publish.AuthRetry},
		{"media_retry", c.Publish.MediaRetry},
		{"post_retry", c.Publish.PostRetry},
	} {
		if rc.cfg.MaxAttempts < 1 {
			return fmt.Errorf("publish.%s.max_attempts must be at least 1, got %d", rc.name, rc.cfg.MaxAttempts)
		}
	}
	for _, cred := range []struct {
		name  string
		value string
	}{
		{"TWITTER_API_KEY", c.Twitter.APIKey},
		{"TWITTER_API_SECRET", c.Twitter.APISecret},
		{"TWITTER_ACCESS_TOKEN", c.Twitter.AccessToken},
		{"TWITTER_ACCESS_TOKEN_SECRET", c.Twitter.AccessSecret},
	} {
		if cred.value == "" {
			return fmt.Errorf("missing credential %s", cred.name)
		}
	}
	if c.Generator.Enabled && c.Generator.APIKey == "" {
		return fmt.Errorf("generator enabled but OPENROUTER_API_KEY is missing")
	}
	return nil
}
