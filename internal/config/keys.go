package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key      string
	typ      keyType
	env      string
	secret   bool
	required bool
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "reddit.user_agent", typ: kString, env: "CLOUDBOT_REDDIT_USER_AGENT",
		apply:   func(cfg *Config, v any) { cfg.Reddit.UserAgent = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.UserAgent },
	},
	{
		key: "reddit.username", typ: kString, env: "CLOUDBOT_REDDIT_USERNAME",
		required: true,
		apply:    func(cfg *Config, v any) { cfg.Reddit.Username = v.(string) },
		extract:  func(cfg Config) any { return cfg.Reddit.Username },
	},
	{
		key: "reddit.client_id", typ: kString, env: "CLOUDBOT_REDDIT_CLIENT_ID",
		required: true,
		apply:    func(cfg *Config, v any) { cfg.Reddit.ClientID = v.(string) },
		extract:  func(cfg Config) any { return cfg.Reddit.ClientID },
	},
	{
		key: "reddit.password", typ: kString, env: "CLOUDBOT_REDDIT_PASSWORD",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.Reddit.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.Password },
	},
	{
		key: "reddit.client_secret", typ: kString, env: "CLOUDBOT_REDDIT_CLIENT_SECRET",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.Reddit.ClientSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Reddit.ClientSecret },
	},
	{
		key: "imgur.client_id", typ: kString, env: "CLOUDBOT_IMGUR_CLIENT_ID",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.Imgur.ClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.Imgur.ClientID },
	},
	{
		key: "poll.scope", typ: kString, env: "CLOUDBOT_POLL_SCOPE",
		apply:   func(cfg *Config, v any) { cfg.Poll.Scope = v.(string) },
		extract: func(cfg Config) any { return cfg.Poll.Scope },
	},
	{
		key: "poll.batch_size", typ: kInt, env: "CLOUDBOT_POLL_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Poll.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Poll.BatchSize },
	},
	{
		key: "poll.reply_pause", typ: kDuration, env: "CLOUDBOT_POLL_REPLY_PAUSE",
		apply:   func(cfg *Config, v any) { cfg.Poll.ReplyPause = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Poll.ReplyPause },
	},
	{
		key: "poll.claim_policy", typ: kString, env: "CLOUDBOT_POLL_CLAIM_POLICY",
		apply:   func(cfg *Config, v any) { cfg.Poll.ClaimPolicy = v.(string) },
		extract: func(cfg Config) any { return cfg.Poll.ClaimPolicy },
	},
	{
		key: "render.size", typ: kInt, env: "CLOUDBOT_RENDER_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Render.Size = v.(int) },
		extract: func(cfg Config) any { return cfg.Render.Size },
	},
	{
		key: "render.scale", typ: kFloat, env: "CLOUDBOT_RENDER_SCALE",
		apply:   func(cfg *Config, v any) { cfg.Render.Scale = v.(float64) },
		extract: func(cfg Config) any { return cfg.Render.Scale },
	},
	{
		key: "render.max_words", typ: kInt, env: "CLOUDBOT_RENDER_MAX_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Render.MaxWords = v.(int) },
		extract: func(cfg Config) any { return cfg.Render.MaxWords },
	},
	{
		key: "render.fonts_dir", typ: kString, env: "CLOUDBOT_RENDER_FONTS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Render.FontsDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Render.FontsDir },
	},
	{
		key: "render.user_font", typ: kString, env: "CLOUDBOT_RENDER_USER_FONT",
		apply:   func(cfg *Config, v any) { cfg.Render.UserFont = v.(string) },
		extract: func(cfg Config) any { return cfg.Render.UserFont },
	},
	{
		key: "reply.signature", typ: kString, env: "CLOUDBOT_REPLY_SIGNATURE",
		apply:   func(cfg *Config, v any) { cfg.Reply.Signature = v.(string) },
		extract: func(cfg Config) any { return cfg.Reply.Signature },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CLOUDBOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "state.file", typ: kString, env: "CLOUDBOT_STATE_FILE",
		apply:   func(cfg *Config, v any) { cfg.State.File = v.(string) },
		extract: func(cfg Config) any { return cfg.State.File },
	},
	{
		key: "server.port", typ: kInt, env: "CLOUDBOT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "CLOUDBOT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "CLOUDBOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts raw text to the Go type of t.
func parseValue(t keyType, raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat, kDuration:
			raw, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && raw != "" {
				if v, err := parseValue(s.typ, raw); err == nil {
					s.apply(cfg, v)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
