package assetcompress

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GlobPrefix marks a pattern as a doublestar glob instead of a regular expression.
const GlobPrefix = "glob:"

// Matcher selects assets by name.
type Matcher interface {
	Match(name string) bool
}

// MatcherFunc adapts an ordinary function to the Matcher interface.
type MatcherFunc func(name string) bool

// Match calls f(name).
func (f MatcherFunc) Match(name string) bool { return f(name) }

// matchNone rejects every asset
type matchNone struct{}

func (matchNone) Match(string) bool { return false }

// patternMatcher matches when any regular expression or glob matches.
// All regular expressions are folded into one alternation.
type patternMatcher struct {
	re    *regexp.Regexp
	globs []string
}

func (m *patternMatcher) Match(name string) bool {
	if m.re != nil && m.re.MatchString(name) {
		return true
	}
	for _, g := range m.globs {
		// Globs match against the pathname only.
		p, _ := splitName(name)
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
	}
	return false
}

// NewMatcher compiles patterns into a Matcher that accepts a name when at
// least one pattern matches it. No patterns matches nothing.
func NewMatcher(patterns ...string) (Matcher, error) {
	if len(patterns) == 0 {
		return matchNone{}, nil
	}

	m := &patternMatcher{}
	var exprs []string
	for _, p := range patterns {
		if g, ok := strings.CutPrefix(p, GlobPrefix); ok {
			if !doublestar.ValidatePattern(g) {
				return nil, fmt.Errorf("%w: bad glob %q", ErrInvalidPattern, g)
			}
			m.globs = append(m.globs, g)
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		exprs = append(exprs, "(?:"+p+")")
	}

	if len(exprs) > 0 {
		re, err := regexp.Compile(strings.Join(exprs, "|"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		m.re = re
	}
	return m, nil
}

// compilePatterns builds a phase matcher. nil selects def.
func compilePatterns(patterns []string, def string) (Matcher, error) {
	if patterns == nil {
		patterns = []string{def}
	}
	return NewMatcher(patterns...)
}
