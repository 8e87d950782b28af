package syntax

import (
	"fmt"
	"sort"
	"strings"
)

// ScanError reports a statement that started a binding clause and then broke
// off. Constructs that merely look like a keyword (import.meta, dynamic
// import(), export declarations) are skipped without an error.
type ScanError struct {
	Line   int
	Offset int
	Msg    string
}

func (e ScanError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// declaration keywords that may follow "export" without introducing a
// specifier.
var declarationKeywords = map[string]bool{
	"const": true, "let": true, "var": true, "function": true,
	"class": true, "async": true, "default": true, "enum": true,
	"interface": true, "type": true, "abstract": true, "declare": true,
}

// Scan returns every import/export statement in src that names a module,
// in source order. Comments are ignored. Raw and Offset refer to src itself.
func Scan(src string) ([]Statement, []ScanError) {
	clean := StripComments(src)
	p := &stmtParser{
		src:   src,
		clean: clean,
		lines: lineStarts(src),
	}
	lx := newLexer(clean)
	for {
		t := lx.next()
		p.toks = append(p.toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	p.run()
	return p.stmts, p.errs
}

type stmtParser struct {
	src   string
	clean string
	toks  []token
	lines []int

	stmts []Statement
	errs  []ScanError
}

func (p *stmtParser) at(i int) token {
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *stmtParser) run() {
	for i := 0; i < len(p.toks); {
		t := p.toks[i]
		if t.kind == tokIdent && (t.text == "import" || t.text == "export") && !p.isMember(i) {
			if next, ok := p.statement(i); ok {
				i = next
				continue
			}
		}
		i++
	}
}

// isMember reports whether the keyword at i is a property access like x.import.
func (p *stmtParser) isMember(i int) bool {
	return i > 0 && p.toks[i-1].kind == tokPunct && p.toks[i-1].text == "."
}

// statement parses the statement whose keyword is at index i and returns the
// index of the first token after it.
func (p *stmtParser) statement(i int) (int, bool) {
	kw := p.toks[i]
	st := Statement{Kind: KindImport}
	if kw.text == "export" {
		st.Kind = KindExport
	}

	c := i + 1
	t := p.at(c)
	switch {
	case t.kind == tokString:
		return p.finish(&st, kw, c)

	case isPunct(t, "*"):
		ns, next, ok := p.namespace(c)
		if !ok {
			return 0, false
		}
		st.Namespace, c = ns, next

	case isPunct(t, "{"):
		named, next, ok := p.namedList(c)
		if !ok {
			return 0, false
		}
		st.Named, c = named, next

	case t.kind == tokIdent:
		if st.Kind == KindExport && declarationKeywords[t.text] {
			return 0, false
		}
		after := p.at(c + 1)
		if !isPunct(after, ",") && !isIdent(after, "from") {
			return 0, false
		}
		st.Default = &Binding{Name: t.text}
		c++
		if isPunct(p.at(c), ",") {
			c++
			switch rest := p.at(c); {
			case isPunct(rest, "*"):
				ns, next, ok := p.namespace(c)
				if !ok {
					return 0, false
				}
				st.Namespace, c = ns, next
			case isPunct(rest, "{"):
				named, next, ok := p.namedList(c)
				if !ok {
					return 0, false
				}
				st.Named, c = named, next
			default:
				p.fail(rest, "expected namespace or named bindings after ','")
				return 0, false
			}
		}

	default:
		return 0, false
	}

	// export { a, b }; without a source is a local export list.
	if !isIdent(p.at(c), "from") {
		if st.Kind == KindImport || st.Default != nil || st.Namespace != nil {
			p.fail(p.at(c), "expected 'from' after bindings")
		}
		return 0, false
	}
	c++
	if p.at(c).kind != tokString {
		p.fail(p.at(c), "expected module specifier after 'from'")
		return 0, false
	}
	return p.finish(&st, kw, c)
}

// namespace parses "*" with an optional "as alias" starting at c.
func (p *stmtParser) namespace(c int) (*Binding, int, bool) {
	ns := &Binding{Name: "*"}
	c++
	if !isIdent(p.at(c), "as") {
		return ns, c, true
	}
	c++
	alias := p.at(c)
	if alias.kind != tokIdent {
		p.fail(alias, "expected namespace alias after 'as'")
		return nil, 0, false
	}
	ns.Alias = alias.text
	return ns, c + 1, true
}

// namedList parses a brace-delimited binding list starting at the "{" at c.
func (p *stmtParser) namedList(c int) ([]Binding, int, bool) {
	var named []Binding
	c++
	for {
		t := p.at(c)
		if isPunct(t, "}") {
			return named, c + 1, true
		}
		if t.kind != tokIdent {
			p.fail(t, "expected binding name")
			return nil, 0, false
		}
		b := Binding{Name: t.text}
		c++
		if isIdent(p.at(c), "as") {
			alias := p.at(c + 1)
			if alias.kind != tokIdent {
				p.fail(alias, "expected alias after 'as'")
				return nil, 0, false
			}
			b.Alias = alias.text
			c += 2
		}
		named = append(named, b)

		switch sep := p.at(c); {
		case isPunct(sep, ","):
			c++
		case isPunct(sep, "}"):
			// closed on the next iteration
		default:
			p.fail(sep, "expected ',' or '}' in binding list")
			return nil, 0, false
		}
	}
}

// finish completes a statement whose specifier string token is at index c.
func (p *stmtParser) finish(st *Statement, kw token, c int) (int, bool) {
	lit := p.toks[c]
	spec := lit.text[1 : len(lit.text)-1]
	if spec == "" {
		p.fail(lit, "empty module specifier")
		return 0, false
	}
	if bang := strings.Index(spec, "!"); bang > 0 {
		st.Marker = spec[:bang]
		st.ModulePath = spec[bang+1:]
	} else {
		st.ModulePath = spec
	}
	// One marker at most, and never an empty one.
	if strings.Contains(st.ModulePath, "!") {
		p.fail(lit, "module specifier takes one marker prefix")
		return 0, false
	}

	end := lit.end
	if end < len(p.clean) && p.clean[end] == ';' {
		end++
	}
	st.Quote = lit.text[0]
	st.Raw = p.src[kw.pos:end]
	st.Offset = kw.pos
	st.Line = p.line(kw.pos)
	st.specStart = lit.pos + 1 - kw.pos
	st.specEnd = lit.end - 1 - kw.pos
	p.stmts = append(p.stmts, *st)
	return c + 1, true
}

func (p *stmtParser) fail(t token, msg string) {
	if t.kind == tokEOF {
		msg += ", got end of input"
	} else {
		msg += fmt.Sprintf(", got %q", t.text)
	}
	p.errs = append(p.errs, ScanError{Line: p.line(t.pos), Offset: t.pos, Msg: msg})
}

func (p *stmtParser) line(offset int) int {
	return sort.SearchInts(p.lines, offset+1)
}

// lineStarts returns the offset of the first byte of every line.
func lineStarts(src string) []int {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func isPunct(t token, s string) bool {
	return t.kind == tokPunct && t.text == s
}

func isIdent(t token, s string) bool {
	return t.kind == tokIdent && t.text == s
}
