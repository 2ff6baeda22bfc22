package scan

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Priority ranks a token.
type Priority int

const (
	// PriorityLow is for informational markers.
	PriorityLow Priority = iota
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityHigh is for markers that need attention.
	PriorityHigh
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority parses "low", "normal" or "high" in any case.
// An empty string yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal", "medium", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// Errors returned when building tokens.
var (
	ErrEmptyToken      = errors.New("token text is empty")
	ErrTokenWhitespace = errors.New("token text contains whitespace")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Token is a configured marker word with its priority.
// Tokens are immutable once built.
type Token struct {
	Text          string
	Priority      Priority
	CaseSensitive bool
}

// TokenSpec is the configured form of a token before case-sensitivity is resolved.
type TokenSpec struct {
	Text     string
	Priority Priority
}

// NewTokens resolves case sensitivity for a configured token list.
//
// Exact duplicates collapse to the first occurrence. Tokens that are equal
// ignoring case (for example "TODO" and "todo") all become case-sensitive so
// each keeps its own priority; every other token matches case-insensitively.
func NewTokens(specs []TokenSpec) ([]Token, error) {
	tokens := make([]Token, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	folded := make(map[string]int, len(specs))

	for _, spec := range specs {
		text := strings.TrimSpace(spec.Text)
		if text == "" {
			return nil, ErrEmptyToken
		}
		if strings.IndexFunc(text, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrTokenWhitespace, text)
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		folded[strings.ToLower(text)]++
		tokens = append(tokens, Token{Text: text, Priority: spec.Priority})
	}

	for i := range tokens {
		tokens[i].CaseSensitive = folded[strings.ToLower(tokens[i].Text)] > 1
	}
	return tokens, nil
}
