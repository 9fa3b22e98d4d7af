package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/parser"
)

// ErrUnknownField is returned for a condition or order field the executor
// has no evaluation for.
var ErrUnknownField = errors.New("unknown field")

// Executor runs fetch statements against snapshots and logs each run.
type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates stmt against snap, returning ctx.Err() if the context is
// already done.
func (e *Executor) Execute(ctx context.Context, stmt *parser.FetchStmt, snap *index.Snapshot) ([]job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jobs, err := Execute(stmt, snap)
	if err != nil {
		e.logger.Warn("query failed", "query", stmt.String(), "error", err)
		return nil, err
	}
	e.logger.Debug("query executed",
		"query", stmt.String(),
		"generation", snap.Generation(),
		"results", len(jobs),
	)
	return jobs, nil
}

// Execute evaluates the where clause left to right, orders the survivors and
// applies the limit. The result is never nil.
func Execute(stmt *parser.FetchStmt, snap *index.Snapshot) ([]job.Job, error) {
	var candidates index.IDSet
	for i, cond := range stmt.Conditions {
		ids, err := evaluate(cond, snap)
		if err != nil {
			return nil, err
		}
		switch {
		case i == 0:
			candidates = ids
		case stmt.Connectives[i-1] == parser.Or:
			candidates = union(candidates, ids)
		default:
			candidates = intersect(candidates, ids)
		}
	}
	all := len(stmt.Conditions) == 0

	if stmt.Order == nil {
		return collect(snap, candidates, all, stmt.Limit), nil
	}
	less, err := orderLess(stmt.Order)
	if err != nil {
		return nil, err
	}
	jobs := collect(snap, candidates, all, 0)
	sort.SliceStable(jobs, func(i, j int) bool {
		return less(jobs[i], jobs[j])
	})
	if stmt.Limit > 0 && len(jobs) > stmt.Limit {
		jobs = jobs[:stmt.Limit]
	}
	return jobs, nil
}

// collect walks the default order, keeping members of ids (or everything
// when all is set) and stopping after limit jobs when limit is positive.
func collect(snap *index.Snapshot, ids index.IDSet, all bool, limit int) []job.Job {
	size := len(ids)
	if all {
		size = snap.Len()
	}
	if limit > 0 && limit < size {
		size = limit
	}
	out := make([]job.Job, 0, size)
	for _, id := range snap.AllSorted() {
		if !all && !ids.Has(id) {
			continue
		}
		j, _ := snap.Job(id)
		out = append(out, j)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// evaluate returns the IDs matching one condition. Index sets are returned
// as-is and must not be mutated.
func evaluate(cond parser.Condition, snap *index.Snapshot) (index.IDSet, error) {
	switch cond.Field {
	case parser.FieldSkill:
		return evalSkill(cond, snap), nil
	case parser.FieldSeniority:
		return evalSeniority(cond, snap), nil
	case parser.FieldCompany:
		return scan(snap, func(j job.Job) bool { return matchText(j.Company, cond) }), nil
	case parser.FieldTitle:
		return scan(snap, func(j job.Job) bool { return matchText(j.Title, cond) }), nil
	case parser.FieldDatePosted:
		return scan(snap, func(j job.Job) bool { return matchDate(j.DatePosted, cond) }), nil
	case parser.FieldLocation:
		return scan(snap, func(j job.Job) bool { return matchText(j.Location, cond) }), nil
	default:
		return nil, fmt.Errorf("evaluating %s: %w", cond.Field, ErrUnknownField)
	}
}

func evalSkill(cond parser.Condition, snap *index.Snapshot) index.IDSet {
	switch cond.Op {
	case parser.OpEq:
		return nonNil(snap.Skill(cond.Value))
	case parser.OpNe:
		return complement(snap, snap.Skill(cond.Value))
	default:
		out := make(index.IDSet)
		for _, tag := range snap.Skills() {
			if !strings.Contains(tag, cond.Value) {
				continue
			}
			for id := range snap.Skill(tag) {
				out[id] = struct{}{}
			}
		}
		return out
	}
}

func evalSeniority(cond parser.Condition, snap *index.Snapshot) index.IDSet {
	switch cond.Op {
	case parser.OpEq:
		return nonNil(snap.Seniority(cond.Seniority))
	case parser.OpNe:
		return complement(snap, snap.Seniority(cond.Seniority))
	}
	out := make(index.IDSet)
	want := cond.Seniority.Rank()
	for _, level := range job.Levels {
		r := level.Rank()
		var ok bool
		switch cond.Op {
		case parser.OpLt:
			ok = r < want
		case parser.OpLe:
			ok = r <= want
		case parser.OpGt:
			ok = r > want
		case parser.OpGe:
			ok = r >= want
		}
		if !ok {
			continue
		}
		for id := range snap.Seniority(level) {
			out[id] = struct{}{}
		}
	}
	return out
}

func matchText(text string, cond parser.Condition) bool {
	switch cond.Op {
	case parser.OpEq:
		return strings.EqualFold(text, cond.Value)
	case parser.OpNe:
		return !strings.EqualFold(text, cond.Value)
	case parser.OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(cond.Value))
	}
	return false
}

// matchDate compares a posting date with the condition's date. An unknown
// posting date satisfies only "!=".
func matchDate(d job.Date, cond parser.Condition) bool {
	if d.IsUnknown() {
		return cond.Op == parser.OpNe
	}
	c := d.Compare(cond.Date)
	switch cond.Op {
	case parser.OpEq:
		return c == 0
	case parser.OpNe:
		return c != 0
	case parser.OpLt:
		return c < 0
	case parser.OpLe:
		return c <= 0
	case parser.OpGt:
		return c > 0
	case parser.OpGe:
		return c >= 0
	}
	return false
}

func scan(snap *index.Snapshot, match func(job.Job) bool) index.IDSet {
	out := make(index.IDSet)
	snap.Scan(func(j job.Job) bool {
		if match(j) {
			out[j.ID] = struct{}{}
		}
		return true
	})
	return out
}

func complement(snap *index.Snapshot, exclude index.IDSet) index.IDSet {
	out := make(index.IDSet, snap.Len()-len(exclude))
	for _, id := range snap.AllSorted() {
		if !exclude.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func nonNil(s index.IDSet) index.IDSet {
	if s == nil {
		return index.IDSet{}
	}
	return s
}

// intersect builds a new set by probing the larger set with the smaller.
func intersect(a, b index.IDSet) index.IDSet {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(index.IDSet, len(a))
	for id := range a {
		if b.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func union(a, b index.IDSet) index.IDSet {
	out := make(index.IDSet, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

// orderLess returns the comparison for an order clause. Unknown dates and
// unspecified seniority sort last in both directions; remaining ties keep
// the default order because the sort is stable over default-ordered input.
func orderLess(o *parser.OrderClause) (func(a, b job.Job) bool, error) {
	dir := 1
	if o.Desc {
		dir = -1
	}
	switch o.Field {
	case parser.FieldDatePosted:
		return func(a, b job.Job) bool {
			return index.CompareDates(a.DatePosted, b.DatePosted, dir) < 0
		}, nil
	case parser.FieldCompany:
		return func(a, b job.Job) bool {
			return dir*index.CompareFold(a.Company, b.Company) < 0
		}, nil
	case parser.FieldTitle:
		return func(a, b job.Job) bool {
			return dir*index.CompareFold(a.Title, b.Title) < 0
		}, nil
	case parser.FieldSeniority:
		return func(a, b job.Job) bool {
			ar, br := a.Seniority.Ranked(), b.Seniority.Ranked()
			if ar != br {
				return ar
			}
			return dir*(a.Seniority.Rank()-b.Seniority.Rank()) < 0
		}, nil
	default:
		return nil, fmt.Errorf("ordering by %s: %w", o.Field, ErrUnknownField)
	}
}
