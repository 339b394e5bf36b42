package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font/opentype"
)

// ErrNoFonts is returned when a fonts directory holds no usable font files.
var ErrNoFonts = errors.New("no font files found")

// LoadFont reads and parses a TrueType or CFF OpenType font.
func LoadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", path, err)
	}
	return f, nil
}

// ListFonts returns the .ttf and .otf files in dir that parse as fonts,
// sorted by name. Files that fail to parse are logged and left out.
func ListFonts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fonts directory: %w", err)
	}
	var fonts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".ttf", ".otf":
		default:
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := LoadFont(path); err != nil {
			slog.Warn("skipping unusable font", "path", path, "error", err)
			continue
		}
		fonts = append(fonts, path)
	}
	sort.Strings(fonts)
	return fonts, nil
}

// RandomFont picks one usable font file from dir at random.
func RandomFont(dir string) (string, error) {
	fonts, err := ListFonts(dir)
	if err != nil {
		return "", err
	}
	if len(fonts) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoFonts, dir)
	}
	return fonts[rand.IntN(len(fonts))], nil
}
