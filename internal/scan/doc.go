// Package scan recognises annotation comments such as "TODO: fix this" in
// source text.
//
// Recognition is delimiter based rather than grammar based: every language
// maps to a set of comment delimiter rules, and every (rule, token,
// case-sensitivity) triple compiles to one cached Matcher. ScanLines applies
// the matchers to a file's lines and reports at most one match per line.
package scan
