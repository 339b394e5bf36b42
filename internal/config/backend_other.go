//go:build !darwin

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// xdgPath joins elem under cloudbot's directory in the XDG base directory
// named by env, or under fallback in the home directory when env is unset.
func xdgPath(env, fallback string, elem ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = "."
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, fallback)
		}
	}
	return filepath.Join(append([]string{base, "cloudbot"}, elem...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.json")
}

func secretHint() string {
	return fmt.Sprintf(` or %s as {"%s": {"reddit_password": "..."}}`, secretsFilePath(), secretService)
}

// writeFileAtomic replaces path with data through a temp file in the same
// directory so readers never see a half-written file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// fileBackend keeps non-secret keys in one flat JSON object. A file that
// cannot be parsed is read as empty and never written over.
type fileBackend struct {
	path    string
	values  map[string]any
	loadErr error
}

func newPlatformBackend() ConfigBackend {
	return openFileBackend(configFilePath())
}

func openFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return b
	case err != nil:
		b.loadErr = err
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&b.values); err != nil {
			b.values = map[string]any{}
			b.loadErr = fmt.Errorf("parsing: %w", err)
		}
	}
	if b.loadErr != nil {
		slog.Warn("ignoring unreadable config file", "path", path, "error", b.loadErr)
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	switch v := b.values[key].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	var text string
	switch v := b.values[key].(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		text = v.String()
	case string:
		text = v
	default:
		return 0, true, fmt.Errorf("%s holds %T, want an integer", key, v)
	}
	i, err := strconv.Atoi(text)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	return b.update(func(m map[string]any) bool {
		m[key] = val
		return true
	})
}

func (b *fileBackend) SetInt(key string, val int) error {
	return b.update(func(m map[string]any) bool {
		m[key] = json.Number(strconv.Itoa(val))
		return true
	})
}

func (b *fileBackend) Delete(key string) error {
	return b.update(func(m map[string]any) bool {
		if _, ok := m[key]; !ok {
			return false
		}
		delete(m, key)
		return true
	})
}

// update applies fn and writes the file when fn reports a change.
func (b *fileBackend) update(fn func(map[string]any) bool) error {
	if b.loadErr != nil {
		return fmt.Errorf("refusing to overwrite config file %s: %w", b.path, b.loadErr)
	}
	if !fn(b.values) {
		return nil
	}
	out, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return writeFileAtomic(b.path, append(out, '\n'))
}
