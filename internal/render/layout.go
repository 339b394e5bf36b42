package render

import (
	"math"
	"math/rand/v2"
)

// placement is a word's box on the canvas. For vertical words w and h are
// the rotated extents.
type placement struct {
	word       string
	size       float64
	x, y, w, h float64
	vertical   bool
}

type layoutParams struct {
	width, height    float64
	minSize, maxSize float64
	rng              *rand.Rand
}

const (
	cellSize       = 2.0
	verticalChance = 0.1
	spiralStep     = 0.1
	maxMisses      = 200 // consecutive words that found no room
	shrinkFactor   = 0.85
	wordPadding    = 1.0
	sizeAttempts   = 3 // sizes tried per word before dropping it
)

// layout places words largest first along an Archimedean spiral from the
// canvas centre. Boxes never overlap and never leave the canvas. Words that
// find no room are dropped.
func layout(words []WordCount, measure func(string, float64) (float64, float64), p layoutParams) []placement {
	if len(words) == 0 {
		return nil
	}
	g := newGrid(p.width, p.height)
	top := float64(words[0].Count)

	var out []placement
	misses := 0
	for _, wc := range words {
		if misses >= maxMisses {
			break
		}
		size := p.minSize + (p.maxSize-p.minSize)*math.Sqrt(float64(wc.Count)/top)
		vertical := p.rng.Float64() < verticalChance

		placed := false
		for attempt := 0; attempt < sizeAttempts && size >= p.minSize; attempt++ {
			w, h := measure(wc.Word, size)
			w, h = w+2*wordPadding, h+2*wordPadding
			if vertical {
				w, h = h, w
			}
			if x, y, ok := g.find(w, h, p.rng); ok {
				g.fill(x, y, w, h)
				out = append(out, placement{word: wc.Word, size: size, x: x, y: y, w: w, h: h, vertical: vertical})
				placed = true
				break
			}
			size *= shrinkFactor
		}
		if placed {
			misses = 0
		} else {
			misses++
		}
	}
	return out
}

// grid is a coarse occupancy bitmap of the canvas.
type grid struct {
	cols, rows    int
	width, height float64
	cells         []bool
}

func newGrid(width, height float64) *grid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	return &grid{cols: cols, rows: rows, width: width, height: height, cells: make([]bool, cols*rows)}
}

func (g *grid) span(x, y, w, h float64) (c0, r0, c1, r1 int) {
	c0 = int(math.Floor(x / cellSize))
	r0 = int(math.Floor(y / cellSize))
	c1 = int(math.Ceil((x + w) / cellSize))
	r1 = int(math.Ceil((y + h) / cellSize))
	return c0, r0, min(c1, g.cols), min(r1, g.rows)
}

func (g *grid) free(x, y, w, h float64) bool {
	if x < 0 || y < 0 || x+w > g.width || y+h > g.height {
		return false
	}
	c0, r0, c1, r1 := g.span(x, y, w, h)
	for r := r0; r < r1; r++ {
		row := g.cells[r*g.cols : (r+1)*g.cols]
		for c := c0; c < c1; c++ {
			if row[c] {
				return false
			}
		}
	}
	return true
}

func (g *grid) fill(x, y, w, h float64) {
	c0, r0, c1, r1 := g.span(x, y, w, h)
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			g.cells[r*g.cols+c] = true
		}
	}
}

// find walks a spiral out from the centre and returns the top-left corner
// of the first free w x h box.
func (g *grid) find(w, h float64, rng *rand.Rand) (float64, float64, bool) {
	if w > g.width || h > g.height {
		return 0, 0, false
	}
	cx, cy := g.width/2, g.height/2
	maxR := math.Hypot(g.width, g.height) / 2
	// Stretch the spiral to the canvas aspect ratio.
	ex := g.width / math.Max(g.width, g.height)
	ey := g.height / math.Max(g.width, g.height)
	phase := rng.Float64() * 2 * math.Pi
	dir := 1.0
	if rng.IntN(2) == 0 {
		dir = -1
	}

	for t := 0.0; ; t += spiralStep {
		r := t * cellSize / math.Pi // two cells further out per turn
		if r > maxR {
			return 0, 0, false
		}
		a := dir*t + phase
		x := cx + r*ex*math.Cos(a) - w/2
		y := cy + r*ey*math.Sin(a) - h/2
		if g.free(x, y, w, h) {
			return x, y, true
		}
	}
}
