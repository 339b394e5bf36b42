// Package render turns a block of text into a word-cloud PNG.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// ErrNoWords is returned when the text has nothing left to draw after counting.
var ErrNoWords = errors.New("no words to render")

// Options controls a rendering.
type Options struct {
	Size        int     // canvas width and height before scaling; default 400
	Scale       float64 // output multiplier; default 1
	MaxWords    int     // default 2000
	FontPath    string  // TrueType or OpenType (CFF) font file, required
	MinFontSize float64 // default 4
	MaxFontSize float64 // default Size/4
	Seed        uint64  // fixes placement; 0 picks a random seed

	Background color.Color   // default black
	Palette    []color.Color // default DefaultPalette
}

// DefaultPalette is used when Options.Palette is empty.
var DefaultPalette = []color.Color{
	color.RGBA{0xe4, 0x1a, 0x1c, 0xff},
	color.RGBA{0x37, 0x7e, 0xb8, 0xff},
	color.RGBA{0x4d, 0xaf, 0x4a, 0xff},
	color.RGBA{0x98, 0x4e, 0xa3, 0xff},
	color.RGBA{0xff, 0x7f, 0x00, 0xff},
	color.RGBA{0xff, 0xff, 0x33, 0xff},
	color.RGBA{0xa6, 0xd8, 0x54, 0xff},
	color.RGBA{0xf7, 0x81, 0xbf, 0xff},
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 400
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.MaxWords <= 0 {
		o.MaxWords = 2000
	}
	if o.MinFontSize <= 0 {
		o.MinFontSize = 4
	}
	if o.MaxFontSize <= 0 {
		o.MaxFontSize = float64(o.Size) / 4
	}
	if o.MaxFontSize < o.MinFontSize {
		o.MaxFontSize = o.MinFontSize
	}
	if o.Background == nil {
		o.Background = color.Black
	}
	if len(o.Palette) == 0 {
		o.Palette = DefaultPalette
	}
	if o.Seed == 0 {
		o.Seed = rand.Uint64()
	}
	return o
}

// Renderer draws word clouds.
type Renderer struct {
	logger *slog.Logger
}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{logger: slog.Default()}
}

// Render counts the words in text and draws the most frequent ones as PNG.
func (r *Renderer) Render(text string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	if opts.FontPath == "" {
		return nil, errors.New("font path is required")
	}

	words := CountWords(text, opts.MaxWords)
	if len(words) == 0 {
		return nil, ErrNoWords
	}

	otf, err := LoadFont(opts.FontPath)
	if err != nil {
		return nil, err
	}

	side := int(math.Round(float64(opts.Size) * opts.Scale))
	dc := gg.NewContext(side, side)
	dc.SetColor(opts.Background)
	dc.Clear()

	faces := make(map[int]font.Face)
	var faceErr error
	faceFor := func(points float64) font.Face {
		key := faceSize(points)
		if f, ok := faces[key]; ok {
			return f
		}
		f, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: float64(key), DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			if faceErr == nil {
				faceErr = fmt.Errorf("creating %dpt face: %w", key, err)
			}
			return nil
		}
		faces[key] = f
		return f
	}
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()

	measure := func(word string, points float64) (float64, float64) {
		f := faceFor(points)
		if f == nil {
			return math.Inf(1), math.Inf(1)
		}
		dc.SetFontFace(f)
		return dc.MeasureString(word)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	placed := layout(words, measure, layoutParams{
		width:   float64(side),
		height:  float64(side),
		minSize: opts.MinFontSize * opts.Scale,
		maxSize: opts.MaxFontSize * opts.Scale,
		rng:     rng,
	})
	if faceErr != nil {
		return nil, faceErr
	}
	if len(placed) == 0 {
		return nil, ErrNoWords
	}

	for _, p := range placed {
		dc.SetFontFace(faces[faceSize(p.size)])
		dc.SetColor(opts.Palette[rng.IntN(len(opts.Palette))])
		cx, cy := p.x+p.w/2, p.y+p.h/2
		if p.vertical {
			dc.Push()
			dc.RotateAbout(gg.Radians(-90), cx, cy)
			dc.DrawStringAnchored(p.word, cx, cy, 0.5, 0.35)
			dc.Pop()
		} else {
			dc.DrawStringAnchored(p.word, cx, cy, 0.5, 0.35)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	r.logger.Debug("rendered word cloud", "words", len(words), "placed", len(placed), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// faceSize buckets a point size to the whole-point face that renders it.
func faceSize(points float64) int {
	return max(int(math.Round(points)), 1)
}
