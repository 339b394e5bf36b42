//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.cloudbot.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "cloudbot")
	}
	return filepath.Join(home, "Library", "Application Support", "cloudbot")
}

func secretHint() string {
	return fmt.Sprintf(" or the login keychain (service %q, account e.g. reddit_password)", secretService)
}

// defaultsFunc runs the defaults(1) tool with args and returns its trimmed
// combined output.
type defaultsFunc func(args ...string) (string, error)

func execDefaults(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// missingDefault reports whether err is defaults(1) saying the key is absent.
func missingDefault(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 1
}

// defaultsBackend keeps non-secret keys in the user defaults domain.
type defaultsBackend struct {
	domain string
	run    defaultsFunc
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain, run: execDefaults}
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := b.run("read", b.domain, key)
	if missingDefault(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("defaults read %s: %w: %s", key, err, out)
	}
	return out, true, nil
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *defaultsBackend) write(key, typeFlag, val string) error {
	if out, err := b.run("write", b.domain, key, typeFlag, val); err != nil {
		return fmt.Errorf("defaults write %s: %w: %s", key, err, out)
	}
	return nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

// Delete succeeds when the key is already absent.
func (b *defaultsBackend) Delete(key string) error {
	out, err := b.run("delete", b.domain, key)
	if err != nil && !missingDefault(err) {
		return fmt.Errorf("defaults delete %s: %w: %s", key, err, out)
	}
	return nil
}
