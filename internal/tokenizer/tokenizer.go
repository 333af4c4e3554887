// Package tokenizer normalises text into an ordered sequence of terms. The
// same pipeline is applied to documents and queries: lowercase, accent
// stripping, ignore-pattern removal, whitespace split, stopword removal,
// and stemming.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/unicode/norm"

	"github.com/okapisearch/okapi/pkg/errors"
)

// StemmerNone disables stemming; StemmerPorter is an alias for the English
// snowball stemmer, matching the usual BM25 default.
const (
	StemmerNone   = "none"
	StemmerPorter = "porter"
)

// stemmerLanguages is the closed set of snowball languages accepted by the
// Stemmer option, besides "none" and "porter".
var stemmerLanguages = map[string]struct{}{
	"english":   {},
	"spanish":   {},
	"french":    {},
	"russian":   {},
	"swedish":   {},
	"norwegian": {},
	"hungarian": {},
}

// Config enumerates the tokenisation options, applied in field order.
type Config struct {
	Lower        bool
	StripAccents bool
	Ignore       string
	Stopwords    map[string]struct{}
	Stemmer      string
}

// Tokenizer is a pure, reusable tokenisation pipeline. It holds no mutable
// state and is safe for concurrent use.
type Tokenizer struct {
	cfg      Config
	ignore   *regexp.Regexp
	language string
}

// New validates the configuration and compiles the ignore pattern.
func New(cfg Config) (*Tokenizer, error) {
	t := &Tokenizer{cfg: cfg}
	if cfg.Ignore != "" {
		re, err := regexp.Compile(cfg.Ignore)
		if err != nil {
			return nil, errors.Newf(errors.ErrInvalidInput, "ignore pattern %q: %v", cfg.Ignore, err)
		}
		t.ignore = re
	}
	switch cfg.Stemmer {
	case "", StemmerNone:
		t.language = ""
	case StemmerPorter:
		t.language = "english"
	default:
		if _, ok := stemmerLanguages[cfg.Stemmer]; !ok {
			return nil, errors.Newf(errors.ErrInvalidInput, "unknown stemmer %q", cfg.Stemmer)
		}
		t.language = cfg.Stemmer
	}
	return t, nil
}

// Tokenize returns the ordered terms of text. Empty output is valid.
func (t *Tokenizer) Tokenize(text string) []string {
	if t.cfg.Lower {
		text = strings.ToLower(text)
	}
	if t.cfg.StripAccents {
		text = stripAccents(text)
	}
	if t.ignore != nil {
		text = t.ignore.ReplaceAllString(text, " ")
	}
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := t.cfg.Stopwords[word]; stop {
			continue
		}
		if t.language != "" {
			if stemmed, err := snowball.Stem(word, t.language, false); err == nil && stemmed != "" {
				word = stemmed
			}
		}
		terms = append(terms, word)
	}
	return terms
}

// Counts returns the term-frequency multiset of text and the total term
// count (the document length).
func (t *Tokenizer) Counts(text string) (map[string]int, int) {
	terms := t.Tokenize(text)
	counts := make(map[string]int, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	return counts, len(terms)
}

// stripAccents decomposes to NFKD and drops combining marks.
func stripAccents(s string) string {
	decomposed := norm.NFKD.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, decomposed)
}

// ResolveStopwords merges a custom list with a named built-in language list.
// An empty language and list yields no stopword filtering.
func ResolveStopwords(custom []string, language string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(custom) > 0 {
		for _, w := range custom {
			set[strings.ToLower(w)] = struct{}{}
		}
		return set, nil
	}
	switch language {
	case "":
		return set, nil
	case "english":
		for _, w := range englishStopwords {
			set[w] = struct{}{}
		}
		return set, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "no built-in stopword list for %q", language)
	}
}

// Describe returns a human-readable summary of the stemmer setting, used in
// persisted settings comparison messages.
func (t *Tokenizer) Describe() string {
	if t.language == "" {
		return StemmerNone
	}
	return fmt.Sprintf("snowball/%s", t.language)
}
