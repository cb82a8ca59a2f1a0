// Package sqlclean decides whether a transformation statement is sent to the
// warehouse. With cleaning enabled it strips SQL comments and skips
// statements that are empty or begin with SELECT; with cleaning disabled the
// statement is sent verbatim unless it is blank.
package sqlclean

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"golang.org/x/text/cases"
)

// sqlLexer splits a script into the pieces comment stripping cares about.
// Literals and quoted identifiers are matched whole so that comment markers
// inside them survive. String literals accept both '' and backslash escapes
// (E'...' lexes as a Word followed by a String). Order matters: the first
// matching rule wins.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "LineComment", Pattern: `--[^\n]*`},
	{Name: "BlockComment", Pattern: `/\*(?s:.*?)(?:\*/|$)`}, // unterminated runs to the end
	{Name: "String", Pattern: `'(?:[^'\\]|\\[\s\S]|'')*'?`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"?`},
	{Name: "BacktickIdent", Pattern: "`[^`]*`?"},
	{Name: "DollarTag", Pattern: `\$(?:[A-Za-z_][A-Za-z0-9_]*)?\$`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Word", Pattern: "[^-/'\"`$\\s][^-/'\"`\\s]*"},
	{Name: "Char", Pattern: `[\s\S]`},
})

var (
	lineComment  = sqlLexer.Symbols()["LineComment"]
	blockComment = sqlLexer.Symbols()["BlockComment"]
	dollarTag    = sqlLexer.Symbols()["DollarTag"]
)

// StripComments removes "--" line comments and "/* */" block comments and
// trims surrounding whitespace. A block comment is replaced by one space so
// the tokens on either side stay apart. Dollar-quoted bodies ($$...$$ or
// $tag$...$tag$) are copied verbatim up to the matching closing tag; an
// unclosed body runs to the end of the query.
func StripComments(query string) (string, error) {
	var b strings.Builder
	b.Grow(len(query))

	rest := query
	for rest != "" {
		next, err := stripSegment(&b, rest)
		if err != nil {
			return "", err
		}
		rest = next
	}
	return strings.TrimSpace(b.String()), nil
}

// stripSegment copies src to b without comments until it reaches a dollar
// quote. It copies the quoted body whole and returns the unread remainder
// after the closing tag, or "" when src is exhausted.
func stripSegment(b *strings.Builder, src string) (string, error) {
	lex, err := sqlLexer.LexString("", src)
	if err != nil {
		return "", fmt.Errorf("sqlclean: tokenize: %w", err)
	}
	for {
		tok, err := lex.Next()
		if err != nil {
			return "", fmt.Errorf("sqlclean: tokenize: %w", err)
		}
		switch {
		case tok.EOF():
			return "", nil
		case tok.Type == lineComment:
		case tok.Type == blockComment:
			b.WriteByte(' ')
		case tok.Type == dollarTag:
			body := tok.Pos.Offset + len(tok.Value)
			end := strings.Index(src[body:], tok.Value)
			if end < 0 {
				b.WriteString(src[tok.Pos.Offset:])
				return "", nil
			}
			closeAt := body + end + len(tok.Value)
			b.WriteString(src[tok.Pos.Offset:closeAt])
			return src[closeAt:], nil
		default:
			b.WriteString(tok.Value)
		}
	}
}

// ShouldSkip returns the text to execute and whether to skip it.
//
// With cleaning disabled, runQuery is query unchanged and only a blank query
// is skipped. With cleaning enabled, runQuery is query with comments stripped
// and trimmed; it is skipped when empty or when its first six characters
// case-fold to "select".
func ShouldSkip(query string, cleaningEnabled bool) (runQuery string, skip bool) {
	if !cleaningEnabled {
		return query, strings.TrimSpace(query) == ""
	}
	stripped, err := StripComments(query)
	if err != nil {
		// The catch-all rule matches any input, so this is unreachable in
		// practice; fall back to the verbatim query.
		return query, strings.TrimSpace(query) == ""
	}
	if stripped == "" {
		return "", true
	}
	return stripped, IsSelect(stripped)
}

// IsSelect reports whether the first six characters of q case-fold to
// "select".
func IsSelect(q string) bool {
	r := []rune(q)
	if len(r) < 6 {
		return false
	}
	return cases.Fold().String(string(r[:6])) == "select"
}
