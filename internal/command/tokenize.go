package command

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrUnterminatedQuote is returned when a command string opens a quoted span
// that is never closed.
const ErrUnterminatedQuote = sentinel.Error("unterminated quote in command")

// ErrEmptyCommand is returned when an override alternative contains no tokens
// after tokenization (for example a lone pair of quotes).
const ErrEmptyCommand = sentinel.Error("command has no tokens")

// Tokenize splits command into arguments.
//
// Rules:
//   - whitespace outside quotes separates arguments;
//   - single and double quotes group characters, including whitespace;
//   - inside a quoted span, a backslash followed by the active quote character
//     yields that quote character; any other backslash is kept literally;
//   - quotes may be embedded in an argument (a"b c"d is one argument "ab cd");
//   - an unterminated quote is an error.
//
// An empty quoted span ("") counts as an argument only when it is adjacent to
// other characters; a standalone "" is dropped, matching the helper's
// historical parser.
func Tokenize(command string) ([]string, error) {
	var (
		parts   []string
		current strings.Builder
		quote   rune
	)

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if quote != 0 {
			switch {
			case c == quote:
				quote = 0
			case c == '\\' && i+1 < len(runes) && runes[i+1] == quote:
				current.WriteRune(quote)
				i++
			default:
				current.WriteRune(c)
			}
			continue
		}

		switch {
		case unicode.IsSpace(c):
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		case c == '"' || c == '\'':
			quote = c
		default:
			current.WriteRune(c)
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnterminatedQuote, command)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts, nil
}

// ParseOverrides splits raw on ';' and tokenizes each non-blank alternative.
// The first tokenization error aborts parsing.
func ParseOverrides(raw string) ([]Candidate, error) {
	var out []Candidate
	for alt := range strings.SplitSeq(raw, ";") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		parts, err := Tokenize(alt)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyCommand, alt)
		}
		out = append(out, Candidate(parts))
	}
	return out, nil
}
