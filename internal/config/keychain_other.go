//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Without a system keychain, secrets live in a JSON file of
// service -> account -> value next to the data directory.
type secretsFile map[string]map[string]string

func secretsFilePath() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "secrets.json")
}

// readSecretsFile returns an empty set when the file does not exist yet.
func readSecretsFile(path string) (secretsFile, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return secretsFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	var sf secretsFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("parsing secrets file %s: %w", path, err)
	}
	if sf == nil {
		sf = secretsFile{}
	}
	return sf, nil
}

func keychainGet(service, account string) ([]byte, error) {
	sf, err := readSecretsFile(secretsFilePath())
	if err != nil {
		return nil, err
	}
	val, ok := sf[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s in %s", service, account, secretsFilePath())
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	path := secretsFilePath()
	sf, err := readSecretsFile(path)
	if err != nil {
		return err
	}
	if sf[service] == nil {
		sf[service] = map[string]string{}
	}
	sf[service][account] = value

	out, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}
	return writeFileAtomic(path, append(out, '\n'))
}
