// Package textextract turns rendered comment markup into plain text suitable
// for word-frequency analysis.
package textextract

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DecodeError reports a character reference that could not be resolved.
type DecodeError struct {
	Entity string // raw reference as it appeared, e.g. "&bogus;"
	Offset int    // byte offset of the reference within the markup
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s at offset %d: %s", e.Entity, e.Offset, e.Reason)
}

// ExtractRendered undoes the outer HTML escaping applied by the feed to a
// rendered comment body, then extracts its text with Extract.
func ExtractRendered(rendered string) (string, error) {
	return Extract(html.UnescapeString(rendered))
}

// Extract strips all tags from markup and returns its text content in
// document order with character references resolved.
//
// Named references must be known HTML entities and numeric references must
// name a valid code point; otherwise a *DecodeError is returned and no text.
// Each run of bytes that is not valid UTF-8 becomes one U+FFFD.
func Extract(markup string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(markup))

	var b strings.Builder
	offset := 0
	rawText := false
	for {
		tt := z.Next()
		raw := z.Raw()

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("tokenizing markup: %w", err)
			}
			return strings.ToValidUTF8(b.String(), string(utf8.RuneError)), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			rawText = isRawTextElement(name)
		case html.EndTagToken, html.SelfClosingTagToken:
			rawText = false
		case html.TextToken:
			if rawText {
				b.Write(raw)
				break
			}
			if err := decodeReferences(&b, raw, offset); err != nil {
				return "", err
			}
		}
		offset += len(raw)
	}
}

// Script and style contents are not subject to reference decoding.
func isRawTextElement(name []byte) bool {
	return bytes.Equal(name, []byte("script")) || bytes.Equal(name, []byte("style"))
}

func decodeReferences(b *strings.Builder, text []byte, base int) error {
	for i := 0; i < len(text); {
		if text[i] != '&' {
			b.WriteByte(text[i])
			i++
			continue
		}

		ref, n := scanReference(text[i:])
		if n == 0 {
			b.WriteByte('&')
			i++
			continue
		}

		decoded, ok, err := ref.resolve()
		if err != nil {
			return &DecodeError{Entity: string(text[i : i+n]), Offset: base + i, Reason: err.Error()}
		}
		if !ok {
			// Unterminated name that isn't an entity: literal ampersand.
			b.Write(text[i : i+n])
		} else {
			b.WriteString(decoded)
		}
		i += n
	}
	return nil
}

type reference struct {
	name       string // entity name, or digits for numeric references
	numeric    bool
	hex        bool
	terminated bool // followed by ';'
}

// scanReference recognises an entity-shaped sequence at the start of s, which
// must begin with '&'. It returns the consumed length, or 0 if s does not
// start with a reference.
func scanReference(s []byte) (reference, int) {
	if len(s) < 2 {
		return reference{}, 0
	}

	if s[1] == '#' {
		j := 2
		ref := reference{numeric: true}
		if j < len(s) && (s[j] == 'x' || s[j] == 'X') {
			ref.hex = true
			j++
		}
		start := j
		for j < len(s) && isDigit(s[j], ref.hex) {
			j++
		}
		if j == start {
			return reference{}, 0
		}
		ref.name = string(s[start:j])
		if j < len(s) && s[j] == ';' {
			ref.terminated = true
			j++
		}
		return ref, j
	}

	if !isLetter(s[1]) {
		return reference{}, 0
	}
	j := 2
	for j < len(s) && (isLetter(s[j]) || isDigit(s[j], false)) {
		j++
	}
	ref := reference{name: string(s[1:j])}
	if j < len(s) && s[j] == ';' {
		ref.terminated = true
		j++
	}
	return ref, j
}

// resolve returns the text a reference stands for. ok is false for an
// unterminated name that is not a known entity, which is kept literally.
func (r reference) resolve() (string, bool, error) {
	if r.numeric {
		base := 10
		if r.hex {
			base = 16
		}
		v, err := strconv.ParseUint(r.name, base, 32)
		if err != nil || v > utf8.MaxRune {
			return "", false, fmt.Errorf("code point out of range")
		}
		if v == 0 || (v >= 0xD800 && v <= 0xDFFF) {
			return "", false, fmt.Errorf("invalid code point U+%04X", v)
		}
		return string(rune(v)), true, nil
	}

	s, known := lookupEntity(r.name)
	if known {
		return s, true, nil
	}
	if !r.terminated {
		return "", false, nil
	}
	return "", false, fmt.Errorf("unknown entity %q", r.name)
}

// lookupEntity resolves an HTML named character reference. The html package
// keeps its entity table private, so the name is looked up through
// UnescapeString. A hit expands to one or two code points; the unescaper also
// matches legacy entity prefixes ("&ampx;" -> "&x;"), which leaves the tail in
// place and is rejected by the length check.
func lookupEntity(name string) (string, bool) {
	ref := "&" + name + ";"
	s := html.UnescapeString(ref)
	if s == ref || utf8.RuneCountInString(s) > 2 {
		return "", false
	}
	return s, true
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte, hex bool) bool {
	if '0' <= c && c <= '9' {
		return true
	}
	return hex && (('a' <= c && c <= 'f') || ('A' <= c && c <= 'F'))
}
