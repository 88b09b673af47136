package tql

import (
	"strconv"
	"strings"
)

// Parse parses a single TQL statement. Supported forms (case-insensitive):
//
//	SELECT * [FROM c] [WHERE expr] [ORDER BY col [ASC|DESC], ...] [LIMIT n [OFFSET m]]
//	SELECT COUNT(*) | COUNT(col) | SUM(col) | AVG(col) | MIN(col) | MAX(col) ...
//	EXPLAIN [ANALYZE] SELECT ...
func Parse(text string) (*Statement, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	st, err := p.statement()
	if err != nil {
		return nil, err
	}
	st.Text = strings.TrimSpace(text)
	return st, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().keyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return syntaxErrf(p.peek().pos, "expected %s, got %v", kw, p.peek())
	}
	return nil
}

func (p *parser) accept(kind tokenKind, text string) bool {
	if p.peek().is(kind, text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.accept(kind, text) {
		return syntaxErrf(p.peek().pos, "expected %q, got %v", text, p.peek())
	}
	return nil
}

func (p *parser) statement() (*Statement, error) {
	st := &Statement{Limit: -1}
	if p.acceptKeyword("EXPLAIN") {
		st.Explain = true
		st.Analyze = p.acceptKeyword("ANALYZE")
	}
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if err := p.selectList(st); err != nil {
		return nil, err
	}
	if p.acceptKeyword("FROM") {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		st.From = name
	}
	if p.acceptKeyword("WHERE") {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		st.Where = e
	}
	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			name, err := p.identifier()
			if err != nil {
				return nil, err
			}
			term := OrderTerm{Column: &ColumnRef{Name: name, Index: -1}}
			if p.acceptKeyword("DESC") {
				term.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			st.OrderBy = append(st.OrderBy, term)
			if !p.accept(tPunct, ",") {
				break
			}
		}
	}
	if p.acceptKeyword("LIMIT") {
		n, err := p.count("LIMIT")
		if err != nil {
			return nil, err
		}
		st.Limit = n
		if p.acceptKeyword("OFFSET") {
			if st.Offset, err = p.count("OFFSET"); err != nil {
				return nil, err
			}
		}
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, syntaxErrf(t.pos, "unexpected %v", t)
	}
	return st, nil
}

func (p *parser) count(clause string) (int64, error) {
	t := p.next()
	if t.kind != tInt {
		return 0, syntaxErrf(t.pos, "%s: expected a non-negative integer, got %v", clause, t)
	}
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return 0, syntaxErrf(t.pos, "%s: %v", clause, err)
	}
	return n, nil
}

func (p *parser) identifier() (string, error) {
	t := p.next()
	if t.kind != tIdent && t.kind != tQuotedIdent {
		return "", syntaxErrf(t.pos, "expected a name, got %v", t)
	}
	return t.text, nil
}

func (p *parser) selectList(st *Statement) error {
	if p.accept(tOp, "*") {
		return nil
	}
	t := p.next()
	if t.kind != tIdent {
		return syntaxErrf(t.pos, "SELECT: expected * or an aggregation, got %v", t)
	}
	fn := AggFunc(strings.ToUpper(t.text))
	switch fn {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
	default:
		if p.peek().is(tPunct, "(") {
			return unsupportedErrf(t.pos, "SELECT: aggregation %s is not supported", t.text)
		}
		return unsupportedErrf(t.pos, "SELECT: column lists are not supported, use SELECT *")
	}
	if err := p.expect(tPunct, "("); err != nil {
		return err
	}
	agg := &Aggregate{Func: fn}
	if p.accept(tOp, "*") {
		if fn != AggCount {
			return syntaxErrf(t.pos, "SELECT: %s(*) is not valid", fn)
		}
	} else {
		name, err := p.identifier()
		if err != nil {
			return err
		}
		agg.Column = &ColumnRef{Name: name, Index: -1}
	}
	if err := p.expect(tPunct, ")"); err != nil {
		return err
	}
	st.Agg = agg
	return nil
}

func (p *parser) expr() (Expr, error) {
	return p.or()
}

func (p *parser) or() (Expr, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "OR", L: l, R: r}
	}
	return l, nil
}

func (p *parser) and() (Expr, error) {
	l, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		r, err := p.not()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "AND", L: l, R: r}
	}
	return l, nil
}

func (p *parser) not() (Expr, error) {
	if p.acceptKeyword("NOT") {
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", X: x}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Expr, error) {
	l, err := p.additive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tOp {
		op := t.text
		switch op {
		case "==":
			op = "="
		case "<>":
			op = "!="
		}
		switch op {
		case "=", "!=", "<", "<=", ">", ">=":
			p.pos++
			r, err := p.additive()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: op, L: l, R: r}, nil
		}
	}
	for _, kw := range []string{"IS", "LIKE", "IN", "BETWEEN"} {
		if t.keyword(kw) {
			return nil, unsupportedErrf(t.pos, "%s is not supported", kw)
		}
	}
	return l, nil
}

func (p *parser) additive() (Expr, error) {
	l, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.is(tOp, "+") && !t.is(tOp, "-") {
			return l, nil
		}
		p.pos++
		r, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: t.text, L: l, R: r}
	}
}

func (p *parser) multiplicative() (Expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.is(tOp, "*") && !t.is(tOp, "/") && !t.is(tOp, "%") {
			return l, nil
		}
		p.pos++
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: t.text, L: l, R: r}
	}
}

func (p *parser) unary() (Expr, error) {
	if p.accept(tOp, "-") {
		// fold negative numeric literals so MinInt64 parses
		if t := p.peek(); t.kind == tInt || t.kind == tFloat {
			p.pos++
			return numberLiteral(token{t.kind, "-" + t.text, t.pos})
		}
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", X: x}, nil
	}
	p.accept(tOp, "+")
	return p.primary()
}

func numberLiteral(t token) (Expr, error) {
	if t.kind == tInt {
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err == nil {
			return &Literal{Int(n)}, nil
		}
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, syntaxErrf(t.pos, "invalid number %s", t.text)
	}
	return &Literal{Float(f)}, nil
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tInt, tFloat:
		return numberLiteral(t)
	case tString:
		return &Literal{String(t.text)}, nil
	case tQuotedIdent:
		return &ColumnRef{Name: t.text, Index: -1}, nil
	case tPunct:
		if t.text == "(" {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tPunct, ")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	case tIdent:
		switch {
		case t.keyword("TRUE"):
			return &Literal{Bool(true)}, nil
		case t.keyword("FALSE"):
			return &Literal{Bool(false)}, nil
		case t.keyword("NULL"):
			return nil, unsupportedErrf(t.pos, "NULL is not supported")
		}
		if p.peek().is(tPunct, "(") {
			return p.call(t)
		}
		return &ColumnRef{Name: t.text, Index: -1}, nil
	}
	return nil, syntaxErrf(t.pos, "unexpected %v", t)
}

func (p *parser) call(name token) (Expr, error) {
	p.pos++ // (
	fn := strings.ToUpper(name.text)
	sig, ok := functions[fn]
	if !ok {
		return nil, unsupportedErrf(name.pos, "function %s is not supported", name.text)
	}
	c := &Call{Name: fn}
	if sig.unit {
		t := p.next()
		unit, ok := parseTimeUnit(t.text)
		if t.kind != tIdent || !ok {
			return nil, syntaxErrf(t.pos, "%s: expected a time unit, got %v", fn, t)
		}
		c.Unit = unit
		if sig.args > 0 {
			if err := p.expect(tPunct, ","); err != nil {
				return nil, err
			}
		}
	}
	for i := 0; i < sig.args; i++ {
		if i > 0 {
			if err := p.expect(tPunct, ","); err != nil {
				return nil, err
			}
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, e)
	}
	if err := p.expect(tPunct, ")"); err != nil {
		return nil, syntaxErrf(p.peek().pos, "%s takes %d arguments", fn, sig.args)
	}
	return c, nil
}
