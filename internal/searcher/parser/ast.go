package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
)

// Kind identifies the statement a Query holds.
type Kind int

const (
	KindFetch Kind = iota + 1
	KindRefresh
	KindExit
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindRefresh:
		return "refresh"
	case KindExit:
		return "exit"
	case KindHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Query is a parsed JHQL statement. Fetch is non-nil exactly when Kind is
// KindFetch.
type Query struct {
	Kind  Kind
	Fetch *FetchStmt
	Raw   string
}

// String renders the canonical form of the query. Two texts that parse to
// the same AST render identically.
func (q Query) String() string {
	if q.Kind == KindFetch && q.Fetch != nil {
		return q.Fetch.String()
	}
	return q.Kind.String()
}

// Field is a job attribute addressable from JHQL.
type Field int

const (
	FieldSkill Field = iota + 1
	FieldSeniority
	FieldCompany
	FieldTitle
	FieldDatePosted
	FieldLocation
)

var fieldNames = map[string]Field{
	"skill":       FieldSkill,
	"seniority":   FieldSeniority,
	"company":     FieldCompany,
	"title":       FieldTitle,
	"date_posted": FieldDatePosted,
	"location":    FieldLocation,
}

func (f Field) String() string {
	for name, v := range fieldNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Comparator is a condition operator.
type Comparator int

const (
	OpEq Comparator = iota + 1
	OpNe
	OpContains
	OpLt
	OpLe
	OpGt
	OpGe
)

var comparatorNames = map[Comparator]string{
	OpEq:       "=",
	OpNe:       "!=",
	OpContains: "contains",
	OpLt:       "<",
	OpLe:       "<=",
	OpGt:       ">",
	OpGe:       ">=",
}

func (c Comparator) String() string {
	if s, ok := comparatorNames[c]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(c))
}

// Relational reports whether c orders values rather than matching them.
func (c Comparator) Relational() bool {
	return c == OpLt || c == OpLe || c == OpGt || c == OpGe
}

// allowedOps lists the comparators each field accepts.
var allowedOps = map[Field][]Comparator{
	FieldSkill:      {OpEq, OpNe, OpContains},
	FieldCompany:    {OpEq, OpNe, OpContains},
	FieldTitle:      {OpEq, OpNe, OpContains},
	FieldLocation:   {OpEq, OpNe, OpContains},
	FieldSeniority:  {OpEq, OpNe, OpLt, OpLe, OpGt, OpGe},
	FieldDatePosted: {OpEq, OpNe, OpLt, OpLe, OpGt, OpGe},
}

func fieldAccepts(f Field, op Comparator) bool {
	for _, allowed := range allowedOps[f] {
		if allowed == op {
			return true
		}
	}
	return false
}

// Connective joins a condition to the running result.
type Connective int

const (
	And Connective = iota + 1
	Or
)

func (c Connective) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// Condition is one field/comparator/value test. Value holds the normalized
// text; Seniority and Date are set for the fields that use them.
type Condition struct {
	Field     Field
	Op        Comparator
	Value     string
	Seniority job.Seniority
	Date      job.Date
	Offset    int
}

func (c Condition) String() string {
	var v string
	switch c.Field {
	case FieldSeniority:
		v = c.Seniority.String()
	case FieldDatePosted:
		v = c.Date.String()
	default:
		v = strconv.Quote(c.Value)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, v)
}

// OrderClause re-sorts the result by one field.
type OrderClause struct {
	Field Field
	Desc  bool
}

// FetchStmt is "fetch jobs [where ...] [order by ...] [limit n]".
// Connectives[i] joins Conditions[i+1] to the result of the conditions
// before it; evaluation is strictly left to right.
type FetchStmt struct {
	Conditions  []Condition
	Connectives []Connective
	Order       *OrderClause
	Limit       int
}

func (s *FetchStmt) String() string {
	var b strings.Builder
	b.WriteString("fetch jobs")
	for i, c := range s.Conditions {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" " + s.Connectives[i-1].String() + " ")
		}
		b.WriteString(c.String())
	}
	if s.Order != nil {
		dir := "asc"
		if s.Order.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order by %s %s", s.Order.Field, dir)
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", s.Limit)
	}
	return b.String()
}
