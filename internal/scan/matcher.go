package scan

import (
	"regexp"
	"strings"
	"sync"
)

// Matcher recognises one token inside one kind of comment.
type Matcher struct {
	rule  Rule
	token Token

	// delimited requires the comment's begin delimiter on the line.
	delimited *regexp.Regexp

	// continuation matches a line that starts inside an open block
	// comment; nil for single-line rules.
	continuation *regexp.Regexp
}

type matcherKey struct {
	rule          string
	token         string
	caseSensitive bool
}

var matchers = struct {
	sync.RWMutex
	m map[matcherKey]*Matcher
}{m: make(map[matcherKey]*Matcher)}

// Compile returns the matcher for a rule and token. Matchers are cached for
// the life of the process and never rebuilt for the same
// (rule, token text, case sensitivity) triple.
func Compile(rule Rule, tok Token) *Matcher {
	key := matcherKey{rule: rule.ID(), token: tok.Text, caseSensitive: tok.CaseSensitive}

	matchers.RLock()
	m, ok := matchers.m[key]
	matchers.RUnlock()
	if ok {
		return m
	}

	matchers.Lock()
	defer matchers.Unlock()
	if m, ok := matchers.m[key]; ok {
		return m
	}
	m = newMatcher(rule, tok)
	matchers.m[key] = m
	return m
}

// CachedMatchers returns the number of compiled matchers.
func CachedMatchers() int {
	matchers.RLock()
	defer matchers.RUnlock()
	return len(matchers.m)
}

func newMatcher(rule Rule, tok Token) *Matcher {
	flags := "(?i)"
	if tok.CaseSensitive {
		flags = ""
	}

	// After the token: end of line, or a separator followed by the body.
	// Block comments may close on the same line; the close and anything
	// after it is not part of the body.
	closing := ""
	if rule.Kind == MultiLine && rule.End != "" {
		closing = `(?:` + regexp.QuoteMeta(rule.End) + `.*)?`
	}
	tail := regexp.QuoteMeta(tok.Text) +
		`(?:\s*` + closing + `$|[:\t ]\s*(.*?)\s*` + closing + `$)`

	m := &Matcher{
		rule:      rule,
		token:     tok,
		delimited: regexp.MustCompile(flags + regexp.QuoteMeta(rule.Begin) + `\s*` + tail),
	}
	if rule.Kind == MultiLine {
		lead := `^\s*`
		if strings.Contains(rule.Begin, "*") {
			lead += `(?:\*+\s*)?`
		}
		m.continuation = regexp.MustCompile(flags + lead + tail)
	}
	return m
}

// Rule returns the delimiter rule.
func (m *Matcher) Rule() Rule { return m.rule }

// Token returns the token the matcher was first compiled for. Its priority
// may be stale; only Text and CaseSensitive are part of the cache key.
func (m *Matcher) Token() Token { return m.token }

// Match looks for the token in line. inBlock reports whether the line starts
// inside an open block comment of the matcher's rule. It returns the byte
// offset of the match and the trimmed comment body.
func (m *Matcher) Match(line string, inBlock bool) (offset int, body string, ok bool) {
	offset = -1
	if inBlock && m.continuation != nil {
		if loc := m.continuation.FindStringSubmatchIndex(line); loc != nil {
			offset, body = loc[0], submatch(line, loc)
		}
	}
	if loc := m.delimited.FindStringSubmatchIndex(line); loc != nil && (offset < 0 || loc[0] < offset) {
		offset, body = loc[0], submatch(line, loc)
	}
	if offset < 0 {
		return 0, "", false
	}
	return offset, strings.TrimSpace(body), true
}

func submatch(line string, loc []int) string {
	if len(loc) < 4 || loc[2] < 0 {
		return ""
	}
	return line[loc[2]:loc[3]]
}
