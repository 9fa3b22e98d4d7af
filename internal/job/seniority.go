package job

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Seniority is the closed set of experience levels.
type Seniority int

const (
	Unspecified Seniority = iota
	Junior
	Mid
	Senior
	Lead
)

// Levels lists every ranked level in ascending order.
var Levels = []Seniority{Junior, Mid, Senior, Lead}

var seniorityNames = map[Seniority]string{
	Unspecified: "unspecified",
	Junior:      "junior",
	Mid:         "mid",
	Senior:      "senior",
	Lead:        "lead",
}

// synonyms maps free-text labels found on job boards to a level.
var synonyms = map[string]Seniority{
	"unspecified":  Unspecified,
	"jr":           Junior,
	"jr.":          Junior,
	"junior":       Junior,
	"entry":        Junior,
	"entry level":  Junior,
	"entry-level":  Junior,
	"graduate":     Junior,
	"intern":       Junior,
	"mid":          Mid,
	"middle":       Mid,
	"mid level":    Mid,
	"mid-level":    Mid,
	"intermediate": Mid,
	"regular":      Mid,
	"sr":           Senior,
	"sr.":          Senior,
	"snr":          Senior,
	"senior":       Senior,
	"staff":        Senior,
	"principal":    Senior,
	"principle":    Senior,
	"lead":         Lead,
	"tech lead":    Lead,
	"team lead":    Lead,
	"manager":      Lead,
	"head":         Lead,
}

// ParseSeniority maps a label through the synonym table. Unrecognized or
// blank labels return Unspecified with ok == false.
func ParseSeniority(text string) (Seniority, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	s, ok := synonyms[key]
	if !ok {
		return Unspecified, false
	}
	return s, true
}

// SeniorityFromTitle infers a level from the words of a job title, for boards
// that publish no level of their own. Single words and adjacent word pairs
// are looked up in the synonym table and the highest level found wins, so
// "Senior Engineering Manager" is Lead.
func SeniorityFromTitle(title string) Seniority {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	best := Unspecified
	for i, w := range words {
		candidates := []string{w}
		if i+1 < len(words) {
			candidates = append(candidates, w+" "+words[i+1])
		}
		for _, c := range candidates {
			if level, ok := synonyms[c]; ok && level > best {
				best = level
			}
		}
	}
	return best
}

// Rank orders ranked levels; Unspecified has rank 0 and no ordering.
func (s Seniority) Rank() int {
	return int(s)
}

// Ranked reports whether s takes part in relational comparisons.
func (s Seniority) Ranked() bool {
	return s != Unspecified
}

func (s Seniority) String() string {
	if name, ok := seniorityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("seniority(%d)", int(s))
}

func (s Seniority) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Seniority) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("decoding seniority: %w", err)
	}
	*s, _ = ParseSeniority(text)
	return nil
}

// SeniorityLabels returns every accepted label, sorted, for help output.
func SeniorityLabels() []string {
	labels := make([]string, 0, len(synonyms))
	for k := range synonyms {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}
