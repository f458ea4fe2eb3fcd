// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package redact masks credentials in text that leaves the process: result
// envelopes, execution records and log lines. Plugins routinely echo request
// material into their error strings, and those strings are persisted.
package redact

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// Rule names one credential pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Match describes one credential found in normalized text.
// Location and Length are byte offsets into the normalized string.
type Match struct {
	Rule     string
	Location int
	Length   int
}

// DefaultMaxContentLength bounds the text a Redactor inspects. Longer input
// is replaced wholesale.
const DefaultMaxContentLength = 1 << 20

// Redactor masks credentials matched by its rules. It is safe for
// concurrent use.
type Redactor struct {
	rules            []Rule
	maxContentLength int
}

// New creates a Redactor with the given rules.
func New(rules []Rule) (*Redactor, error) {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return nil, cherr.Errorf(cherr.CodeRedactRuleInvalid, "rule %d has empty name", i)
		}
		if r.Pattern == nil {
			return nil, cherr.Errorf(cherr.CodeRedactRuleInvalid, "rule %d (%s) has nil pattern", i, r.Name)
		}
		if seen[r.Name] {
			return nil, cherr.Errorf(cherr.CodeRedactRuleInvalid, "duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return &Redactor{rules: rules, maxContentLength: DefaultMaxContentLength}, nil
}

var (
	defaultOnce     sync.Once
	defaultRedactor *Redactor
)

// Default returns a shared Redactor built from DefaultRules.
func Default() *Redactor {
	defaultOnce.Do(func() {
		r, err := New(DefaultRules())
		if err != nil {
			panic(err) // built-in rules are static
		}
		defaultRedactor = r
	})
	return defaultRedactor
}

// invisibleChars strips zero-width and formatting characters that would
// otherwise split a credential and slip past the patterns.
var invisibleChars = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // BOM
	"\u00ad", "", // soft hyphen
	"\u2060", "", // word joiner
)

func normalize(s string) string {
	return norm.NFKC.String(invisibleChars.Replace(s))
}

// Find returns the normalized text and every match in it, ordered by
// location.
func (r *Redactor) Find(s string) (string, []Match) {
	content := normalize(s)
	if len(content) > r.maxContentLength {
		return content, []Match{{Rule: "content_too_large", Length: len(content)}}
	}

	var matches []Match
	for _, rule := range r.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			matches = append(matches, Match{Rule: rule.Name, Location: loc[0], Length: loc[1] - loc[0]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Location < matches[j].Location })
	return content, matches
}

// String returns s with every credential replaced by [REDACTED:<rule>].
// Text without matches is returned unchanged, not normalized.
func (r *Redactor) String(s string) string {
	if s == "" {
		return s
	}
	content, matches := r.Find(s)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	pos := 0
	for _, m := range matches {
		end := m.Location + m.Length
		if end <= pos {
			continue // inside a region already redacted
		}
		if m.Location > pos {
			b.WriteString(content[pos:m.Location])
		}
		b.WriteString("[REDACTED:" + m.Rule + "]")
		pos = end
	}
	b.WriteString(content[pos:])
	return b.String()
}

// Value redacts strings nested anywhere in v, which may be a string, a
// map[string]any or a []any as produced by encoding/json. Other values are
// returned as is. Maps and slices are copied, never mutated.
func (r *Redactor) Value(v any) any {
	switch t := v.(type) {
	case string:
		return r.String(t)
	case map[string]any:
		return r.Map(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.Value(e)
		}
		return out
	default:
		return v
	}
}

// Map returns a redacted copy of m. A nil map stays nil.
func (r *Redactor) Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = r.Value(v)
	}
	return out
}
