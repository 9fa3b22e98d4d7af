// Package parser turns JHQL text into a Query. Parsing is purely syntactic:
// it never consults the index, and every field, comparator and value is
// validated here so that execution cannot fail on a parsed query.
//
//	query        := fetch_stmt | "refresh" | "exit" | "quit" | "help"
//	fetch_stmt   := "fetch" "jobs" [where_clause] [order_clause] [limit_clause]
//	where_clause := "where" condition (("and"|"or") condition)*
//	condition    := field comparator value
//	field        := "skill" | "seniority" | "company" | "title" | "date_posted" | "location"
//	comparator   := "=" | "!=" | "contains" | "<" | "<=" | ">" | ">="
//	value        := quoted_string | bare_word
//	order_clause := "order" "by" ("date_posted"|"company"|"title"|"seniority") ["asc"|"desc"]
//	limit_clause := "limit" positive_integer
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
)

// ErrSyntax is matched by every ParseError.
var ErrSyntax = errors.New("syntax error")

// ParseError locates a syntax error by byte offset into the query text.
type ParseError struct {
	Offset   int
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: expected %s, found %s", e.Offset, e.Expected, e.Found)
}

func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

var orderFields = map[string]Field{
	"date_posted": FieldDatePosted,
	"company":     FieldCompany,
	"title":       FieldTitle,
	"seniority":   FieldSeniority,
}

type parser struct {
	tokens []token
	pos    int
}

// Parse parses one JHQL statement. It is deterministic: the same text
// always yields the same Query or the same error.
func Parse(text string) (Query, error) {
	tokens, err := lex(text)
	if err != nil {
		return Query{}, err
	}
	p := &parser{tokens: tokens}
	q, err := p.statement()
	if err != nil {
		return Query{}, err
	}
	q.Raw = text
	return q, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, expected string, args ...any) *ParseError {
	return &ParseError{Offset: t.offset, Expected: fmt.Sprintf(expected, args...), Found: t.describe()}
}

func (p *parser) keyword(kw string) bool {
	if p.peek().lower() == kw {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.keyword(kw) {
		return p.errorf(p.peek(), "%q", kw)
	}
	return nil
}

func (p *parser) statement() (Query, error) {
	t := p.peek()
	var q Query
	switch t.lower() {
	case "fetch":
		p.next()
		stmt, err := p.fetch()
		if err != nil {
			return Query{}, err
		}
		q = Query{Kind: KindFetch, Fetch: stmt}
	case "refresh":
		p.next()
		q = Query{Kind: KindRefresh}
	case "exit", "quit":
		p.next()
		q = Query{Kind: KindExit}
	case "help":
		p.next()
		q = Query{Kind: KindHelp}
	default:
		return Query{}, p.errorf(t, "statement (fetch, refresh, exit or help)")
	}
	if end := p.peek(); end.kind != tokEOF {
		return Query{}, p.errorf(end, "%s", p.expectedAfter(q))
	}
	return q, nil
}

// expectedAfter describes what may still follow a complete statement.
func (p *parser) expectedAfter(q Query) string {
	if q.Kind != KindFetch {
		return "end of query"
	}
	var opts []string
	s := q.Fetch
	if len(s.Conditions) == 0 && s.Order == nil && s.Limit == 0 {
		opts = append(opts, "where")
	}
	if len(s.Conditions) > 0 && s.Order == nil && s.Limit == 0 {
		opts = append(opts, "and", "or")
	}
	if s.Order == nil && s.Limit == 0 {
		opts = append(opts, "order by")
	}
	if s.Limit == 0 {
		opts = append(opts, "limit")
	}
	opts = append(opts, "end of query")
	return strings.Join(opts, ", ")
}

func (p *parser) fetch() (*FetchStmt, error) {
	if err := p.expectKeyword("jobs"); err != nil {
		return nil, err
	}
	stmt := &FetchStmt{}
	if p.keyword("where") {
		if err := p.where(stmt); err != nil {
			return nil, err
		}
	}
	if p.keyword("order") {
		order, err := p.order()
		if err != nil {
			return nil, err
		}
		stmt.Order = order
	}
	if p.keyword("limit") {
		t := p.next()
		n, err := strconv.Atoi(t.value)
		if t.kind != tokWord || err != nil || n <= 0 {
			return nil, p.errorf(t, "positive integer")
		}
		stmt.Limit = n
	}
	return stmt, nil
}

func (p *parser) where(stmt *FetchStmt) error {
	cond, err := p.condition()
	if err != nil {
		return err
	}
	stmt.Conditions = append(stmt.Conditions, cond)
	for {
		var conn Connective
		switch {
		case p.keyword("and"):
			conn = And
		case p.keyword("or"):
			conn = Or
		default:
			return nil
		}
		cond, err := p.condition()
		if err != nil {
			return err
		}
		stmt.Connectives = append(stmt.Connectives, conn)
		stmt.Conditions = append(stmt.Conditions, cond)
	}
}

func (p *parser) condition() (Condition, error) {
	ft := p.next()
	field, ok := fieldNames[ft.lower()]
	if !ok {
		return Condition{}, p.errorf(ft, "field (skill, seniority, company, title, date_posted or location)")
	}
	ot := p.next()
	var op Comparator
	switch {
	case ot.kind == tokOp:
		op = opFromText(ot.text)
	case ot.lower() == "contains":
		op = OpContains
	}
	if op == 0 {
		return Condition{}, p.errorf(ot, "comparator (=, !=, contains, <, <=, >, >=)")
	}
	if !fieldAccepts(field, op) {
		return Condition{}, p.errorf(ot, "comparator valid for %s (%s)", field, joinOps(allowedOps[field]))
	}
	vt := p.next()
	if vt.kind != tokWord && vt.kind != tokString {
		return Condition{}, p.errorf(vt, "value")
	}
	cond := Condition{Field: field, Op: op, Offset: ft.offset}
	switch field {
	case FieldSkill:
		cond.Value = job.NormalizeSkill(vt.value)
	case FieldSeniority:
		level, ok := job.ParseSeniority(vt.value)
		if !ok || (op.Relational() && !level.Ranked()) {
			return Condition{}, p.errorf(vt, "seniority level (junior, mid, senior, lead%s)", unspecifiedHint(op))
		}
		cond.Seniority = level
		cond.Value = level.String()
	case FieldDatePosted:
		d, err := job.ParseISODate(vt.value)
		if err != nil {
			return Condition{}, p.errorf(vt, "date in YYYY-MM-DD form")
		}
		cond.Date = d
		cond.Value = d.String()
	default:
		cond.Value = strings.TrimSpace(vt.value)
	}
	if cond.Value == "" {
		return Condition{}, p.errorf(vt, "non-empty value")
	}
	return cond, nil
}

func (p *parser) order() (*OrderClause, error) {
	if err := p.expectKeyword("by"); err != nil {
		return nil, err
	}
	ft := p.next()
	field, ok := orderFields[ft.lower()]
	if !ok {
		return nil, p.errorf(ft, "order field (date_posted, company, title or seniority)")
	}
	clause := &OrderClause{Field: field, Desc: field == FieldDatePosted}
	switch {
	case p.keyword("asc"):
		clause.Desc = false
	case p.keyword("desc"):
		clause.Desc = true
	}
	return clause, nil
}

func opFromText(text string) Comparator {
	for op, name := range comparatorNames {
		if name == text {
			return op
		}
	}
	return 0
}

func joinOps(ops []Comparator) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return strings.Join(names, ", ")
}

func unspecifiedHint(op Comparator) string {
	if op.Relational() {
		return ""
	}
	return " or unspecified"
}
