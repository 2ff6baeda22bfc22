package scan

import "strings"

// Match is one recognised annotation.
type Match struct {
	Token Token
	// Line is 1-based.
	Line int
	Body string
}

// ScanLines returns the annotations found in lines. Each line yields at most
// one match: the left-most one, ties going to the earlier token.
func ScanLines(rules []Rule, tokens []Token, lines []string) []Match {
	if len(rules) == 0 || len(tokens) == 0 {
		return nil
	}

	// The cached matcher may carry a token with an older priority.
	type entry struct {
		m   *Matcher
		tok Token
	}
	compiled := make([]entry, 0, len(rules)*len(tokens))
	for _, tok := range tokens {
		for _, rule := range rules {
			compiled = append(compiled, entry{m: Compile(rule, tok), tok: tok})
		}
	}

	var lineComments []string
	for _, rule := range rules {
		if rule.Kind == SingleLine {
			lineComments = append(lineComments, rule.Begin)
		}
	}

	var matches []Match
	inBlock := make(map[string]bool, len(rules))
	for i, line := range lines {
		best := -1
		var found Match
		for _, e := range compiled {
			offset, body, ok := e.m.Match(line, inBlock[e.m.rule.ID()])
			if ok && (best < 0 || offset < best) {
				best = offset
				found = Match{Token: e.tok, Line: i + 1, Body: body}
			}
		}
		if best >= 0 {
			matches = append(matches, found)
		}

		for _, rule := range rules {
			if rule.Kind == MultiLine {
				inBlock[rule.ID()] = blockState(line, rule, lineComments, inBlock[rule.ID()])
			}
		}
	}
	return matches
}

// blockState reports whether a block comment of rule is open at the end of
// line, given whether it was open at the start. A begin delimiter inside a
// quoted run or after a line comment does not open a block.
func blockState(line string, rule Rule, lineComments []string, open bool) bool {
	for line != "" {
		if open {
			idx := strings.Index(line, rule.End)
			if idx < 0 {
				return true
			}
			line = line[idx+len(rule.End):]
			open = false
			continue
		}
		idx := beginIndex(line, rule.Begin, lineComments)
		if idx < 0 {
			return false
		}
		line = line[idx+len(rule.Begin):]
		open = true
	}
	return open
}

// beginIndex returns the offset of the first begin outside a "..." or `...`
// run, or -1 if a line comment or the end of line comes first. Quoted runs
// end at the line end.
func beginIndex(line, begin string, lineComments []string) int {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch {
			case c == '\\' && quote == '"':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		if strings.HasPrefix(line[i:], begin) {
			return i
		}
		for _, lc := range lineComments {
			if strings.HasPrefix(line[i:], lc) {
				return -1
			}
		}
		if c == '"' || c == '`' {
			quote = c
		}
	}
	return -1
}
