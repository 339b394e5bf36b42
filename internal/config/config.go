package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Reddit  RedditConfig
	Imgur   ImgurConfig
	Poll    PollConfig
	Render  RenderConfig
	Reply   ReplyConfig
	Storage StorageConfig
	State   StateConfig
	Server  ServerConfig
	Log     LogConfig
}

type RedditConfig struct {
	UserAgent    string
	Username     string
	ClientID     string
	Password     string
	ClientSecret string
}

type ImgurConfig struct {
	ClientID string
}

type PollConfig struct {
	Scope       string
	BatchSize   int
	ReplyPause  time.Duration
	ClaimPolicy string
}

type RenderConfig struct {
	Size     int
	Scale    float64
	MaxWords int
	FontsDir string
	UserFont string // default font for user-hist
}

type ReplyConfig struct {
	Signature string
}

type StorageConfig struct {
	DataDir string
}

type StateConfig struct {
	File string // empty means <data_dir>/respondedTo.json
}

type ServerConfig struct {
	Port  int    // 0 disables the status server
	Token string // bearer token for /stats and /publications; empty means open
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Reddit: RedditConfig{
			UserAgent: "linux:cloudbot:v1 (word clouds of comment threads)",
		},
		Poll: PollConfig{
			Scope:       "all",
			BatchSize:   100,
			ReplyPause:  60 * time.Second,
			ClaimPolicy: "mark-first",
		},
		Render: RenderConfig{
			Size:     400,
			Scale:    1,
			MaxWords: 2000,
			FontsDir: "fonts",
			UserFont: filepath.Join("fonts", "open_sans_light.ttf"),
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// StateFile returns the processed-set file path.
func (c Config) StateFile() string {
	if c.State.File != "" {
		return c.State.File
	}
	return filepath.Join(c.Storage.DataDir, "respondedTo.json")
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate reports missing credentials needed to talk to Reddit and Imgur.
func (c Config) Validate() error {
	var missing []string
	for _, s := range specs {
		if !s.required {
			continue
		}
		if v, _ := s.extract(c).(string); v == "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", s.key, s.env))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s. Set them via environment variables%s",
			strings.Join(missing, ", "), secretHint())
	}
	if c.Poll.BatchSize <= 0 {
		return errors.New("poll.batch_size must be positive")
	}
	if c.Render.Size <= 0 || c.Render.Scale <= 0 {
		return errors.New("render.size and render.scale must be positive")
	}
	return nil
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.cloudbot.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/cloudbot/config.json
// and secrets fall back to $XDG_DATA_HOME/cloudbot/secrets.json.
//
// Environment variables (CLOUDBOT_*) override backend values on all platforms.
// Load does not check credentials; call Validate before talking to the network.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret storage for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const secretService = "cloudbot"

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	return cfg, nil
}

// applySecrets fills secrets still empty after env overrides from the keychain.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if v, _ := s.extract(*cfg).(string); v != "" {
			continue
		}
		if v, err := kc.Get(secretService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// secretAccount maps "reddit.password" to "reddit_password".
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
