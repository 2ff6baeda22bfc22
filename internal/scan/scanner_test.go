package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goRules(t *testing.T) []Rule {
	t.Helper()
	rules, ok := RulesForPath("/x/main.go")
	require.True(t, ok)
	return rules
}

func mustTokens(t *testing.T, specs ...TokenSpec) []Token {
	t.Helper()
	tokens, err := NewTokens(specs)
	require.NoError(t, err)
	return tokens
}

func TestScanLines_TodoScenario(t *testing.T) {
	tokens := mustTokens(t, TokenSpec{Text: "TODO", Priority: PriorityHigh})

	matches := ScanLines(goRules(t), tokens, []string{"x", "// TODO: fix parsing", "y"})

	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Line)
	assert.Equal(t, "fix parsing", matches[0].Body)
	assert.Equal(t, PriorityHigh, matches[0].Token.Priority)
}

func TestScanLines_Forms(t *testing.T) {
	tokens := mustTokens(t, TokenSpec{Text: "TODO", Priority: PriorityNormal})

	tests := []struct {
		name string
		line string
		ok   bool
		body string
	}{
		{"colon", "// TODO: body", true, "body"},
		{"space", "// TODO body", true, "body"},
		{"tab", "//\tTODO\tbody", true, "body"},
		{"no separator space", "//TODO:body", true, "body"},
		{"bare", "// TODO", true, ""},
		{"bare trailing space", "// TODO   ", true, ""},
		{"lower case", "// todo: lower", true, "lower"},
		{"trailing code comment", "x := 1 // TODO: later", true, "later"},
		{"url before comment", `u := "http://x" // TODO: y`, true, "y"},
		{"longer word", "// TODOS: nope", false, ""},
		{"other token", "// Tother: x", false, ""},
		{"no delimiter", "TODO: not a comment", false, ""},
		{"block", "/* TODO: block body */ code()", true, "block body"},
		{"block bare", "/* TODO */", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := ScanLines(goRules(t), tokens, []string{tt.line})
			if !tt.ok {
				assert.Empty(t, matches)
				return
			}
			require.Len(t, matches, 1)
			assert.Equal(t, tt.body, matches[0].Body)
		})
	}
}

func TestScanLines_OtherTokenDoesNotMatch(t *testing.T) {
	tokens := mustTokens(t, TokenSpec{Text: "T"})
	assert.Empty(t, ScanLines(goRules(t), tokens, []string{"// Tother: x"}))

	matches := ScanLines(goRules(t), tokens, []string{"// T: x"})
	require.Len(t, matches, 1)
	assert.Equal(t, "x", matches[0].Body)
}

func TestScanLines_CaseSensitiveTokens(t *testing.T) {
	tokens := mustTokens(t,
		TokenSpec{Text: "TODO", Priority: PriorityHigh},
		TokenSpec{Text: "todo", Priority: PriorityLow},
	)

	matches := ScanLines(goRules(t), tokens, []string{"// todo: small", "// TODO: big", "// ToDo: neither"})
	require.Len(t, matches, 2)
	assert.Equal(t, PriorityLow, matches[0].Token.Priority)
	assert.Equal(t, PriorityHigh, matches[1].Token.Priority)
}

func TestScanLines_BlockContinuation(t *testing.T) {
	tokens := mustTokens(t, TokenSpec{Text: "HACK"})
	lines := []string{
		"/*",
		" * HACK: inside block",
		" */",
		"HACK this is code, not a comment",
	}

	matches := ScanLines(goRules(t), tokens, lines)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Line)
	assert.Equal(t, "inside block", matches[0].Body)
}

func TestScanLines_BlockOpenerOutsideComments(t *testing.T) {
	tokens := mustTokens(t, TokenSpec{Text: "NOTE"}, TokenSpec{Text: "TODO"})

	tests := []struct {
		name  string
		lines []string
	}{
		{"string literal", []string{`matches, _ := filepath.Glob("src/*.go")`, "note := len(matches)", "todo := note + 1"}},
		{"raw string", []string{"p := `a/*.txt`", "todo := 1"}},
		{"escaped quote", []string{`s := "\"/*"`, "todo := 1"}},
		{"line comment", []string{"// see a/*.go", "todo := 1"}},
		{"trailing line comment", []string{"x := 1 // glob a/*", "note := 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ScanLines(goRules(t), tokens, tt.lines))
		})
	}

	matches := ScanLines(goRules(t), tokens, []string{`s := "a" /* see`, " TODO: x */", "todo := 1"})
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Line)
	assert.Equal(t, "x", matches[0].Body)
}

func TestScanLines_LeftMostToken(t *testing.T) {
	tokens := mustTokens(t, TokenSpec{Text: "TODO"}, TokenSpec{Text: "HACK"})

	matches := ScanLines(goRules(t), tokens, []string{"// HACK: first // TODO: second"})
	require.Len(t, matches, 1)
	assert.Equal(t, "HACK", matches[0].Token.Text)
}

func TestCompile_Cached(t *testing.T) {
	tok := Token{Text: "CACHED", Priority: PriorityNormal}
	before := CachedMatchers()

	m1 := Compile(slashSlash, tok)
	m2 := Compile(slashSlash, tok)
	assert.Same(t, m1, m2)
	assert.Equal(t, before+1, CachedMatchers())

	tok.CaseSensitive = true
	assert.NotSame(t, m1, Compile(slashSlash, tok))
}

func TestScanLines_PriorityFollowsCurrentTokens(t *testing.T) {
	lines := []string{"// REVIEW: naming"}

	high := ScanLines(goRules(t), mustTokens(t, TokenSpec{Text: "REVIEW", Priority: PriorityHigh}), lines)
	low := ScanLines(goRules(t), mustTokens(t, TokenSpec{Text: "REVIEW", Priority: PriorityLow}), lines)

	require.Len(t, high, 1)
	require.Len(t, low, 1)
	assert.Equal(t, PriorityHigh, high[0].Token.Priority)
	assert.Equal(t, PriorityLow, low[0].Token.Priority)
}
