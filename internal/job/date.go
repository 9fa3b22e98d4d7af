package job

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day. The zero value is the
// unknown date.
type Date struct {
	t time.Time
}

// UnknownDate is assigned to records whose posting date is missing or
// unparseable.
var UnknownDate = Date{}

// NewDate returns the calendar date y-m-d.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return UnknownDate
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseISODate parses YYYY-MM-DD strictly.
func ParseISODate(text string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return UnknownDate, fmt.Errorf("parsing date %q: %w", text, err)
	}
	return DateOf(t), nil
}

func (d Date) IsUnknown() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of the date, or the zero time when unknown.
func (d Date) Time() time.Time {
	return d.t
}

// Compare orders known dates chronologically. Unknown sorts before every
// known date; callers that need unknown-last handle it explicitly.
func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

func (d Date) String() string {
	if d.IsUnknown() {
		return "unknown"
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsUnknown() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = UnknownDate
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("decoding date: %w", err)
	}
	parsed, err := ParseISODate(text)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var absoluteLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// relativePattern matches "3 days", "2 weeks ago", "1d", "4w", "5 hrs".
var relativePattern = regexp.MustCompile(`^(\d+)\s*([a-z]+)(?:\s+ago)?$`)

var relativeUnits = map[string]time.Duration{
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       24 * time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"w":       7 * 24 * time.Hour,
	"wk":      7 * 24 * time.Hour,
	"wks":     7 * 24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
	"m":       30 * 24 * time.Hour,
	"mo":      30 * 24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"months":  30 * 24 * time.Hour,
	"y":       365 * 24 * time.Hour,
	"yr":      365 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
	"years":   365 * 24 * time.Hour,
}

// ParseDate interprets absolute and relative posting dates. Relative forms
// ("today", "3 days ago", "2w") are resolved against ref; with a zero ref
// they yield UnknownDate, as does anything unparseable.
func ParseDate(text string, ref time.Time) Date {
	text = strings.TrimSpace(text)
	if text == "" {
		return UnknownDate
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return DateOf(t)
		}
	}
	if first, _, found := strings.Cut(text, " "); found {
		if t, err := time.Parse(dateLayout, first); err == nil {
			return DateOf(t)
		}
	}
	return parseRelative(strings.ToLower(text), ref)
}

func parseRelative(text string, ref time.Time) Date {
	if ref.IsZero() {
		return UnknownDate
	}
	switch text {
	case "today", "just now", "new", "now":
		return DateOf(ref)
	case "yesterday":
		return DateOf(ref.AddDate(0, 0, -1))
	}
	m := relativePattern.FindStringSubmatch(text)
	if m == nil {
		return UnknownDate
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return UnknownDate
	}
	unit, ok := relativeUnits[m[2]]
	if !ok {
		return UnknownDate
	}
	return DateOf(ref.Add(-time.Duration(n) * unit))
}
