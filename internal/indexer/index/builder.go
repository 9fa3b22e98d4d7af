package index

import (
	"errors"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
)

// SkippedRecord identifies an input record that failed normalization.
type SkippedRecord struct {
	Index     int    `json:"index"`
	SourceURL string `json:"source_url,omitempty"`
	Field     string `json:"field"`
}

// BuildReport accounts for every input record of a build. Total always
// equals Accepted + SkippedInvalid + Duplicates.
type BuildReport struct {
	Total          int             `json:"total"`
	Accepted       int             `json:"accepted"`
	SkippedInvalid int             `json:"skipped_invalid"`
	Duplicates     int             `json:"duplicates"`
	UnknownDates   int             `json:"unknown_dates"`
	Skipped        []SkippedRecord `json:"skipped,omitempty"`
}

// Build normalizes records, collapses duplicates by source URL and indexes
// the survivors. It never fails: invalid records are counted and skipped, and
// an empty batch yields an empty snapshot.
//
// When two records share a source URL the one with the later posting date
// wins; a known date beats an unknown one and on equal dates the first
// record seen is kept.
func Build(records []job.RawJob) (*Snapshot, BuildReport) {
	report := BuildReport{Total: len(records)}
	byURL := make(map[string]job.Job, len(records))
	order := make([]string, 0, len(records))

	for i, raw := range records {
		j, err := job.Normalize(raw)
		if err != nil {
			report.SkippedInvalid++
			skipped := SkippedRecord{Index: i, SourceURL: strings.TrimSpace(raw.SourceURL)}
			var nerr *job.NormalizationError
			if errors.As(err, &nerr) {
				skipped.Field = nerr.Field
			}
			report.Skipped = append(report.Skipped, skipped)
			continue
		}
		existing, dup := byURL[j.SourceURL]
		if !dup {
			byURL[j.SourceURL] = j
			order = append(order, j.SourceURL)
			continue
		}
		report.Duplicates++
		if supersedes(j, existing) {
			byURL[j.SourceURL] = j
		}
	}

	snap := Empty()
	for _, u := range order {
		j := byURL[u]
		snap.byID[j.ID] = j
		snap.allSorted = append(snap.allSorted, j.ID)
		for _, tag := range j.Skills {
			set, ok := snap.bySkill[tag]
			if !ok {
				set = make(IDSet)
				snap.bySkill[tag] = set
			}
			set[j.ID] = struct{}{}
		}
		set, ok := snap.bySeniority[j.Seniority]
		if !ok {
			set = make(IDSet)
			snap.bySeniority[j.Seniority] = set
		}
		set[j.ID] = struct{}{}
		if j.DatePosted.IsUnknown() {
			report.UnknownDates++
		}
	}
	sort.SliceStable(snap.allSorted, func(a, b int) bool {
		return DefaultLess(snap.byID[snap.allSorted[a]], snap.byID[snap.allSorted[b]])
	})
	for i, id := range snap.allSorted {
		snap.position[id] = i
	}
	report.Accepted = len(snap.byID)
	return snap, report
}

// supersedes reports whether candidate replaces current for the same URL.
func supersedes(candidate, current job.Job) bool {
	if candidate.DatePosted.IsUnknown() {
		return false
	}
	if current.DatePosted.IsUnknown() {
		return true
	}
	return candidate.DatePosted.Compare(current.DatePosted) > 0
}
