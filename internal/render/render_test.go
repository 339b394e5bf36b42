package render

import (
	"bytes"
	"errors"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestCountWords(t *testing.T) {
	text := "Go go GO gophers!\nThe gopher's burrow, and the GOPHERS.\n42 1999 x"
	got := CountWords(text, 0)

	want := []WordCount{
		{"go", 3},
		{"gophers", 2},
		{"burrow", 1},
		{"gopher's", 1},
	}
	if len(got) != len(want) {
		t.Fatalf("CountWords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCountWords_FoldsUnicodeCase(t *testing.T) {
	got := CountWords("ÉTÉ été Straße STRASSE", 0)
	if len(got) == 0 || got[0].Word != "été" || got[0].Count != 2 {
		t.Errorf("CountWords = %v", got)
	}
}

func TestCountWords_CurlyApostropheStopword(t *testing.T) {
	got := CountWords("don’t don't stop", 0)
	if len(got) != 1 || got[0].Word != "stop" {
		t.Errorf("CountWords = %v, want only stop", got)
	}
}

func TestCountWords_Limit(t *testing.T) {
	got := CountWords("alpha alpha alpha beta beta gamma delta", 2)
	if len(got) != 2 || got[0].Word != "alpha" || got[1].Word != "beta" {
		t.Errorf("CountWords = %v", got)
	}
}

func TestListFonts(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string][]byte{
		"b.ttf":      goregular.TTF,
		"a.OTF":      cffFont(t),
		"readme.txt": goregular.TTF,
		"c.woff":     goregular.TTF,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.ttf"), 0o755); err != nil {
		t.Fatal(err)
	}

	fonts, err := ListFonts(dir)
	if err != nil {
		t.Fatalf("ListFonts: %v", err)
	}
	want := []string{filepath.Join(dir, "a.OTF"), filepath.Join(dir, "b.ttf")}
	if strings.Join(fonts, ",") != strings.Join(want, ",") {
		t.Errorf("ListFonts = %v, want %v", fonts, want)
	}

	f, err := RandomFont(dir)
	if err != nil {
		t.Fatalf("RandomFont: %v", err)
	}
	if f != want[0] && f != want[1] {
		t.Errorf("RandomFont = %q", f)
	}
}

func TestListFonts_SkipsUnparseable(t *testing.T) {
	dir := t.TempDir()
	// A CFF header over TrueType tables has no CFF table to read glyphs from.
	mislabelled := append([]byte("OTTO"), goregular.TTF[4:]...)
	for name, data := range map[string][]byte{
		"good.ttf":            goregular.TTF,
		"open_sans_light.otf": mislabelled,
		"empty.ttf":           nil,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	fonts, err := ListFonts(dir)
	if err != nil {
		t.Fatalf("ListFonts: %v", err)
	}
	if len(fonts) != 1 || fonts[0] != filepath.Join(dir, "good.ttf") {
		t.Errorf("ListFonts = %v, want only good.ttf", fonts)
	}

	for range 20 {
		f, err := RandomFont(dir)
		if err != nil {
			t.Fatalf("RandomFont: %v", err)
		}
		if filepath.Base(f) != "good.ttf" {
			t.Fatalf("RandomFont picked %q", f)
		}
	}
}

func TestRandomFont_Empty(t *testing.T) {
	if _, err := RandomFont(t.TempDir()); !errors.Is(err, ErrNoFonts) {
		t.Errorf("error = %v, want ErrNoFonts", err)
	}
}

func TestLayout_NoOverlapInsideCanvas(t *testing.T) {
	words := CountWords(strings.Repeat("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda ", 5)+
		strings.Repeat("alpha beta gamma ", 10)+"mu nu xi omicron pi rho sigma tau upsilon phi chi psi omega", 0)

	measure := func(word string, size float64) (float64, float64) {
		return float64(len(word)) * size * 0.6, size
	}
	placed := layout(words, measure, layoutParams{
		width: 300, height: 200, minSize: 6, maxSize: 50,
		rng: rand.New(rand.NewPCG(1, 2)),
	})
	if len(placed) == 0 {
		t.Fatal("nothing placed")
	}

	for i, a := range placed {
		if a.x < 0 || a.y < 0 || a.x+a.w > 300 || a.y+a.h > 200 {
			t.Errorf("%q outside canvas: %+v", a.word, a)
		}
		for _, b := range placed[i+1:] {
			if a.x < b.x+b.w && b.x < a.x+a.w && a.y < b.y+b.h && b.y < a.y+a.h {
				t.Errorf("%q and %q overlap", a.word, b.word)
			}
		}
	}
	if placed[0].word != "alpha" {
		t.Errorf("first placed word = %q, want the most frequent", placed[0].word)
	}
}

func TestLayout_DropsWordsThatCannotFit(t *testing.T) {
	words := []WordCount{{"enormous", 1}}
	measure := func(string, float64) (float64, float64) { return 1000, 1000 }
	placed := layout(words, measure, layoutParams{width: 100, height: 100, minSize: 1, maxSize: 10, rng: rand.New(rand.NewPCG(1, 1))})
	if len(placed) != 0 {
		t.Errorf("placed %v on a canvas too small", placed)
	}
}

func writeTestFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("writing font: %v", err)
	}
	return path
}

// cffFont returns a small OpenType font whose glyphs are PostScript outlines.
func cffFont(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "cff_test.otf"))
	if err != nil {
		t.Fatalf("reading CFF font: %v", err)
	}
	return data
}

func TestRender(t *testing.T) {
	font := writeTestFont(t)
	text := strings.Repeat("cloud words render cloud picture cloud\n", 20)

	data, err := New().Render(text, Options{Size: 120, Scale: 1.5, FontPath: font, Seed: 7})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 180 || b.Dy() != 180 {
		t.Errorf("image is %dx%d, want 180x180", b.Dx(), b.Dy())
	}
}

func TestRender_Errors(t *testing.T) {
	r := New()
	if _, err := r.Render("words", Options{}); err == nil {
		t.Error("rendered without a font")
	}
	if _, err := r.Render("the and of 42", Options{FontPath: writeTestFont(t)}); !errors.Is(err, ErrNoWords) {
		t.Errorf("error = %v, want ErrNoWords", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	os.WriteFile(bad, []byte("not a font"), 0o644)
	if _, err := r.Render("words words", Options{FontPath: bad}); err == nil {
		t.Error("rendered with a corrupt font")
	}
}

func TestRender_CFFOpenType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postscript.otf")
	if err := os.WriteFile(path, cffFont(t), 0o644); err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("quiz quota quote quiz\n", 10)

	data, err := New().Render(text, Options{Size: 100, FontPath: path, Seed: 3})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("image is %dx%d, want 100x100", b.Dx(), b.Dy())
	}
}
