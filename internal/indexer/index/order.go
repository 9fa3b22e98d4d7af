package index

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
)

// CompareDates orders known dates by dir (1 ascending, -1 descending) and
// always places unknown dates last.
func CompareDates(a, b job.Date, dir int) int {
	switch au, bu := a.IsUnknown(), b.IsUnknown(); {
	case au && bu:
		return 0
	case au:
		return 1
	case bu:
		return -1
	}
	return dir * a.Compare(b)
}

// CompareFold compares strings case-insensitively, falling back to a
// byte-wise comparison so that distinct strings never tie.
func CompareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// CompareDefault is the canonical snapshot order: posting date descending
// (unknown last), then company ascending, then title ascending, then ID.
func CompareDefault(a, b job.Job) int {
	if c := CompareDates(a.DatePosted, b.DatePosted, -1); c != 0 {
		return c
	}
	if c := CompareFold(a.Company, b.Company); c != 0 {
		return c
	}
	if c := CompareFold(a.Title, b.Title); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// DefaultLess reports whether a sorts before b in the canonical order.
func DefaultLess(a, b job.Job) bool {
	return CompareDefault(a, b) < 0
}
