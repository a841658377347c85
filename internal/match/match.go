// Package match implements pronunciation similarity scoring using
// Jaro-Winkler string similarity combined with Double Metaphone phonetic
// encoding.
//
// The score for a (expected, recognized) pair is the best Jaro-Winkler
// similarity across three comparison strategies (full strings,
// space-stripped strings, best pairwise token score), computed
// case-insensitively. When the two inputs share a Double Metaphone code —
// they sound alike even though the transcription spelled them differently,
// e.g. "colonel" vs "kernel" — the score is lifted to at least the phonetic
// floor. Scoring is pure and deterministic; the same pair always yields the
// same score.
package match

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultAcceptanceThreshold is the minimum similarity score at which a
// recognized string counts as a correct pronunciation of the expected word.
// It is the single source of truth for the threshold; config plumbs it
// through to the session store.
const DefaultAcceptanceThreshold = 0.8

// defaultPhoneticFloor is the score a phonetically-identical pair is lifted
// to. It sits above the acceptance threshold: sounding identical should pass.
const defaultPhoneticFloor = 0.85

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithPhoneticFloor sets the minimum score assigned when the inputs share a
// Double Metaphone code. A floor of 0 disables the phonetic assist.
// Default: 0.85.
func WithPhoneticFloor(floor float64) Option {
	return func(s *Scorer) { s.phoneticFloor = floor }
}

// Scorer computes pronunciation similarity scores in [0,1]. All methods are
// safe for concurrent use — the Scorer is read-only after construction.
type Scorer struct {
	phoneticFloor float64
}

// New returns a [Scorer] configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{phoneticFloor: defaultPhoneticFloor}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score returns the similarity between expected and recognized in [0,1].
// Comparison is case-insensitive and ignores surrounding whitespace. An
// empty recognized string scores 0 against any non-empty expected word.
func (s *Scorer) Score(expected, recognized string) float64 {
	a := strings.ToLower(strings.TrimSpace(expected))
	b := strings.ToLower(strings.TrimSpace(stripPunct(recognized)))
	if a == "" || b == "" {
		if a == b {
			return 1
		}
		return 0
	}

	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)

	score := bestJWScore(aTokens, bTokens, a, b)

	if s.phoneticFloor > 0 && score < s.phoneticFloor {
		if codesOverlap(codesForTokens(aTokens), codesForTokens(bTokens)) {
			score = s.phoneticFloor
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// stripPunct removes characters that batch transcription engines commonly
// append to isolated words (trailing periods, commas, question marks).
// Letters, digits, spaces, hyphens, and apostrophes are kept.
func stripPunct(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '\'':
			return r
		case r > 127: // keep non-ASCII letters untouched
			return r
		default:
			return -1
		}
	}, text)
}

// bestJWScore computes the highest Jaro-Winkler similarity between the
// inputs using three strategies:
//
//  1. Full-string comparison.
//  2. Space-stripped comparison (handles "ice cream" vs "icecream").
//  3. Best pairwise token comparison (handles a one-word expected value
//     buried in a multi-word transcription).
func bestJWScore(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		concatA := strings.Join(aTokens, "")
		concatB := strings.Join(bTokens, "")
		if s := matchr.JaroWinkler(concatA, concatB, false); s > score {
			score = s
		}
	}

	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}

	return score
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when a word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
