package syntax

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int // start offset in the source
	end  int // offset just past the token
}

// lexer splits comment-free source into identifiers, string literals and
// single-character punctuation. Template and regular expression literals
// are consumed whole and reported as punctuation so their contents never
// produce keywords or strings.
type lexer struct {
	src  string
	pos  int
	prev token
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) next() token {
	t := l.scan()
	l.prev = t
	return t
}

func (l *lexer) scan() token {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: len(l.src), end: len(l.src)}
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '\'' || c == '"':
		return l.quoted(c)
	case c == '`':
		l.template()
		return token{kind: tokPunct, text: "`", pos: start, end: l.pos}
	case c == '/' && l.regexpAllowed() && l.regexp():
		return token{kind: tokPunct, text: "/", pos: start, end: l.pos}
	case isIdentStart(l.src, l.pos):
		for l.pos < len(l.src) && isIdentPart(l.src, l.pos) {
			_, w := utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += w
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start, end: l.pos}
	default:
		_, w := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += w
		return token{kind: tokPunct, text: l.src[start:l.pos], pos: start, end: l.pos}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, w := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += w
	}
}

// quoted reads a single or double quoted string. An unterminated literal ends
// at the line break and is reported as punctuation.
func (l *lexer) quoted(q byte) token {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			l.pos += 2
			continue
		case '\n':
			return token{kind: tokPunct, text: string(q), pos: start, end: l.pos}
		case q:
			l.pos++
			return token{kind: tokString, text: l.src[start:l.pos], pos: start, end: l.pos}
		}
		l.pos++
	}
	if l.pos > len(l.src) {
		l.pos = len(l.src)
	}
	return token{kind: tokPunct, text: string(q), pos: start, end: l.pos}
}

func (l *lexer) template() {
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '`':
			l.pos++
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
}

// regexpAllowed reports whether a slash at the current position starts a
// regular expression literal rather than a division, judged by the token
// before it.
func (l *lexer) regexpAllowed() bool {
	switch l.prev.kind {
	case tokEOF:
		return true
	case tokString:
		return false
	case tokIdent:
		return regexpKeywords[l.prev.text]
	}
	switch l.prev.text {
	case ")", "]", "`", ".":
		return false
	}
	r, _ := utf8.DecodeRuneInString(l.prev.text)
	return !unicode.IsDigit(r)
}

var regexpKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexp consumes a regular expression literal and its flags. It leaves the
// position untouched and returns false when the literal does not end on
// the same line.
func (l *lexer) regexp() bool {
	i := l.pos + 1
	class := false
	for i < len(l.src) {
		switch l.src[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			return false
		case '[':
			class = true
		case ']':
			class = false
		case '/':
			if !class {
				i++
				for i < len(l.src) && isIdentPart(l.src, i) {
					_, w := utf8.DecodeRuneInString(l.src[i:])
					i += w
				}
				l.pos = i
				return true
			}
		}
		i++
	}
	return false
}

func isIdentStart(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
