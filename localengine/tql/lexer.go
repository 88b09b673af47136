package tql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tQuotedIdent
	tInt
	tFloat
	tString
	tOp    // = == != <> < <= > >= + - * / %
	tPunct // ( ) ,
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// keyword reports whether t is the given keyword, case-insensitively.
func (t token) keyword(kw string) bool {
	return t.kind == tIdent && strings.EqualFold(t.text, kw)
}

func (t token) String() string {
	if t.kind == tEOF {
		return "end of query"
	}
	return "\"" + t.text + "\""
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{tIdent, src[start:i], start})
		case r >= '0' && r <= '9' || (r == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			kind := tInt
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i < len(src) && src[i] == '.' {
				kind = tFloat
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					kind = tFloat
					i = j
					for i < len(src) && isDigit(src[i]) {
						i++
					}
				}
			}
			toks = append(toks, token{kind, src[start:i], start})
		case r == '\'' || r == '"':
			start := i
			s, n, ok := scanQuoted(src[i:], byte(r))
			if !ok {
				return nil, syntaxErrf(start, "unterminated %c", r)
			}
			i += n
			kind := tString
			if r == '"' {
				kind = tQuotedIdent
			}
			toks = append(toks, token{kind, s, start})
		case strings.ContainsRune("(),", r):
			toks = append(toks, token{tPunct, string(r), i})
			i++
		case strings.ContainsRune("=!<>+-*/%", r):
			start := i
			i++
			if i < len(src) {
				two := src[start : i+1]
				if two == "==" || two == "!=" || two == "<>" || two == "<=" || two == ">=" {
					i++
				}
			}
			op := src[start:i]
			if op == "!" {
				return nil, syntaxErrf(start, "unexpected \"!\"")
			}
			toks = append(toks, token{tOp, op, start})
		case r == ';':
			// a trailing semicolon is allowed
			rest := strings.TrimSpace(src[i+1:])
			if rest != "" {
				return nil, syntaxErrf(i, "unexpected input after \";\"")
			}
			i = len(src)
		default:
			return nil, syntaxErrf(i, "unexpected character %q", r)
		}
	}
	toks = append(toks, token{tEOF, "", len(src)})
	return toks, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// scanQuoted reads a quoted literal where a doubled quote stands for itself.
func scanQuoted(s string, q byte) (string, int, bool) {
	var buf strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == q {
			if i+1 < len(s) && s[i+1] == q {
				buf.WriteByte(q)
				i += 2
				continue
			}
			return buf.String(), i + 1, true
		}
		buf.WriteByte(c)
		i++
	}
	return "", 0, false
}
