package render

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WordCount is a word and how often it occurs.
type WordCount struct {
	Word  string
	Count int
}

// stopwords are dropped before counting. Mostly English function words plus
// markdown and link debris that survives text extraction.
var stopwords = toSet(`a about above after again against all am an and any are aren't as at be because
been before being below between both but by can can't cannot could couldn't did didn't do does
doesn't doing don't down during each few for from further had hadn't has hasn't have haven't
having he he'd he'll he's her here here's hers herself him himself his how how's i i'd i'll i'm
i've if in into is isn't it it's its itself just let's like me more most mustn't my myself no
nor not of off on once only or other ought our ours ourselves out over own same shan't she
she'd she'll she's should shouldn't so some such than that that's the their theirs them
themselves then there there's these they they'd they'll they're they've this those through to
too under until up very was wasn't we we'd we'll we're we've were weren't what what's when
when's where where's which while who who's whom why why's will with won't would wouldn't you
you'd you'll you're you've your yours yourself yourselves also get got one would just really
http https www com amp gt lt nbsp deleted removed`)

func toSet(s string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		m[w] = struct{}{}
	}
	return m
}

// CountWords folds case, drops stop words, numbers and single letters, and
// returns the limit most frequent words, most frequent first. Ties are broken
// alphabetically. limit <= 0 means no limit.
func CountWords(text string, limit int) []WordCount {
	folder := cases.Lower(language.Und)
	counts := make(map[string]int)
	for _, tok := range strings.FieldsFunc(text, isSeparator) {
		w := strings.Trim(strings.ReplaceAll(folder.String(tok), "\u2019", "'"), "'")
		if len([]rune(w)) < 2 || isNumber(w) {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		counts[w]++
	}

	out := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Apostrophes stay inside tokens so contractions match the stop list.
func isSeparator(r rune) bool {
	if r == '\'' || r == '\u2019' {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
