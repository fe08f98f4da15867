// Package wakeword decides whether recognised text contains the activation
// phrase.
//
// Matching is a three-tier cascade, cheapest and most precise first:
//
//  1. Exact: the lower-cased text contains the phrase as a substring.
//  2. Fuzzy: some whitespace-separated word of at least two characters is
//     within a small Levenshtein distance (default 1) of the phrase. This
//     absorbs single-character recogniser errors such as "y0" for "yo".
//  3. Confusable: the text contains one of a fixed set of known
//     mis-transcriptions of the phrase (for "yo": "yoo", "you", "yeah").
package wakeword

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// DefaultPhrase is the activation phrase used when none is configured.
const DefaultPhrase = "yo"

// defaultMaxDistance is the largest edit distance accepted by the fuzzy tier.
const defaultMaxDistance = 1

// minWordRunes is the shortest word considered by the fuzzy tier. A one-rune
// word is always within distance 1 of a two-rune phrase.
const minWordRunes = 2

// DefaultConfusables are common recogniser outputs for a spoken "yo".
var DefaultConfusables = []string{"yo", "yoo", "you", "yeah"}

// ErrEmptyPhrase is returned by [New] when the activation phrase is empty or
// whitespace only. An empty phrase would match every input.
var ErrEmptyPhrase = errors.New("wakeword: activation phrase must not be empty")

// Tier identifies which stage of the cascade produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierFuzzy
	TierConfusable
)

// String returns the lower-case tier name used in logs and metric attributes.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	case TierConfusable:
		return "confusable"
	default:
		return "none"
	}
}

// Result describes the outcome of [Matcher.Detect].
type Result struct {
	Matched bool
	Tier    Tier
	// Word is the input word or confusable that triggered a fuzzy or
	// confusable match. Empty for exact matches and misses.
	Word string
	// Distance is the edit distance of a fuzzy match.
	Distance int
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithMaxDistance sets the largest Levenshtein distance accepted by the fuzzy
// tier. Negative values disable the tier. Default: 1.
func WithMaxDistance(d int) Option {
	return func(m *Matcher) { m.maxDistance = d }
}

// WithConfusables replaces the confusable set. Pass no arguments to disable
// the tier.
func WithConfusables(words ...string) Option {
	return func(m *Matcher) {
		m.confusables = normalise(words)
		m.customConfusables = true
	}
}

// Matcher detects an activation phrase in text. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phrase            string
	maxDistance       int
	confusables       []string
	customConfusables bool
}

// New returns a Matcher for phrase. The phrase is lower-cased and trimmed. The
// confusable tier defaults to [DefaultConfusables] when phrase is
// [DefaultPhrase] and is empty otherwise unless set with [WithConfusables].
func New(phrase string, opts ...Option) (*Matcher, error) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return nil, ErrEmptyPhrase
	}
	m := &Matcher{phrase: p, maxDistance: defaultMaxDistance}
	for _, o := range opts {
		o(m)
	}
	if !m.customConfusables && p == DefaultPhrase {
		m.confusables = DefaultConfusables
	}
	return m, nil
}

// Phrase returns the normalised activation phrase.
func (m *Matcher) Phrase() string { return m.phrase }

// Match reports whether text contains the activation phrase.
func (m *Matcher) Match(text string) bool {
	return m.Detect(text).Matched
}

// Detect runs the cascade and reports which tier matched.
func (m *Matcher) Detect(text string) Result {
	norm := strings.ToLower(text)

	if strings.Contains(norm, m.phrase) {
		return Result{Matched: true, Tier: TierExact}
	}

	if m.maxDistance >= 0 {
		for _, w := range strings.Fields(norm) {
			if utf8.RuneCountInString(w) < minWordRunes {
				continue
			}
			if d := matchr.Levenshtein(w, m.phrase); d <= m.maxDistance {
				return Result{Matched: true, Tier: TierFuzzy, Word: w, Distance: d}
			}
		}
	}

	for _, c := range m.confusables {
		if strings.Contains(norm, c) {
			return Result{Matched: true, Tier: TierConfusable, Word: c}
		}
	}
	return Result{}
}

// Distance returns the Levenshtein distance between a and b counted in runes
// with unit insertion, deletion and substitution costs.
func Distance(a, b string) int {
	return matchr.Levenshtein(a, b)
}

func normalise(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
