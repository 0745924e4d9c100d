package sql

import (
	"strings"
	"unicode"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenPunct
)

// token carries byte offsets into the original statement so that
// dialect rewrites can splice replacements back in place.
type token struct {
	kind   tokenKind
	text   string
	quoted bool
	start  int
	end    int
}

// tokenize performs a quote-aware lexical scan. Comments are dropped,
// string literals keep their unquoted content, and quoted identifiers
// are marked so keyword checks skip them.
func tokenize(sqlQuery string) ([]token, error) {
	var tokens []token
	runes := []rune(sqlQuery)
	pos := 0
	byteAt := byteOffsets(sqlQuery)

	for pos < len(runes) {
		char := runes[pos]

		switch {
		case unicode.IsSpace(char):
			pos++

		case char == '-' && pos+1 < len(runes) && runes[pos+1] == '-':
			for pos < len(runes) && runes[pos] != '\n' {
				pos++
			}

		case char == '/' && pos+1 < len(runes) && runes[pos+1] == '*':
			depth := 1
			pos += 2
			for pos < len(runes) && depth > 0 {
				if runes[pos] == '*' && pos+1 < len(runes) && runes[pos+1] == '/' {
					depth--
					pos += 2
					continue
				}
				if runes[pos] == '/' && pos+1 < len(runes) && runes[pos+1] == '*' {
					depth++
					pos += 2
					continue
				}
				pos++
			}
			if depth > 0 {
				return nil, apperrors.NewValidation("unterminated comment", "block comment is not closed")
			}

		case char == '\'':
			start := pos
			pos++
			var builder strings.Builder
			closed := false
			for pos < len(runes) {
				if runes[pos] == '\'' {
					if pos+1 < len(runes) && runes[pos+1] == '\'' {
						builder.WriteRune('\'')
						pos += 2
						continue
					}
					pos++
					closed = true
					break
				}
				builder.WriteRune(runes[pos])
				pos++
			}
			if !closed {
				return nil, apperrors.NewValidation("unterminated string", "string literal is not closed")
			}
			tokens = append(tokens, token{
				kind:  tokenString,
				text:  builder.String(),
				start: byteAt[start],
				end:   byteAt[pos],
			})

		case char == '"' || char == '[' || char == '`':
			closer := char
			if char == '[' {
				closer = ']'
			}
			start := pos
			pos++
			var builder strings.Builder
			closed := false
			for pos < len(runes) {
				if runes[pos] == closer {
					pos++
					closed = true
					break
				}
				builder.WriteRune(runes[pos])
				pos++
			}
			if !closed {
				return nil, apperrors.NewValidation("unterminated identifier", "quoted identifier is not closed")
			}
			tokens = append(tokens, token{
				kind:   tokenIdent,
				text:   builder.String(),
				quoted: true,
				start:  byteAt[start],
				end:    byteAt[pos],
			})

		case unicode.IsDigit(char) || (char == '.' && pos+1 < len(runes) && unicode.IsDigit(runes[pos+1])):
			start := pos
			for pos < len(runes) && (unicode.IsDigit(runes[pos]) || runes[pos] == '.' ||
				runes[pos] == 'e' || runes[pos] == 'E' ||
				((runes[pos] == '+' || runes[pos] == '-') && pos > start && (runes[pos-1] == 'e' || runes[pos-1] == 'E'))) {
				pos++
			}
			tokens = append(tokens, token{
				kind:  tokenNumber,
				text:  string(runes[start:pos]),
				start: byteAt[start],
				end:   byteAt[pos],
			})

		case unicode.IsLetter(char) || char == '_':
			start := pos
			for pos < len(runes) && (unicode.IsLetter(runes[pos]) || unicode.IsDigit(runes[pos]) || runes[pos] == '_' || runes[pos] == '$') {
				pos++
			}
			tokens = append(tokens, token{
				kind:  tokenIdent,
				text:  string(runes[start:pos]),
				start: byteAt[start],
				end:   byteAt[pos],
			})

		default:
			start := pos
			// Two-character operators stay one token so comparison
			// detection sees them whole.
			if pos+1 < len(runes) {
				pair := string(runes[pos : pos+2])
				switch pair {
				case "<>", "<=", ">=", "!=", "||", "::":
					tokens = append(tokens, token{
						kind:  tokenPunct,
						text:  pair,
						start: byteAt[start],
						end:   byteAt[pos+2],
					})
					pos += 2
					continue
				}
			}
			tokens = append(tokens, token{
				kind:  tokenPunct,
				text:  string(char),
				start: byteAt[start],
				end:   byteAt[pos+1],
			})
			pos++
		}
	}

	return tokens, nil
}

// byteOffsets maps rune index to byte offset, with one extra entry for
// the end of the string.
func byteOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))
	return offsets
}
