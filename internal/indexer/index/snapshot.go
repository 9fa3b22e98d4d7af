// Package index builds the immutable, indexed snapshot that JHQL queries run
// against. A snapshot is constructed once from a batch of raw records and is
// never modified afterwards; refreshing the store means building a new one.
package index

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
)

// IDSet is a set of job IDs.
type IDSet map[string]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy of the set.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Snapshot holds one generation of indexed jobs. All maps and slices are
// owned by the snapshot; accessors that expose them must not be mutated by
// callers.
type Snapshot struct {
	id          string
	generation  uint64
	byID        map[string]job.Job
	bySkill     map[string]IDSet
	bySeniority map[job.Seniority]IDSet
	allSorted   []string
	position    map[string]int
}

// Empty returns a snapshot with no jobs.
func Empty() *Snapshot {
	return &Snapshot{
		id:          uuid.NewString(),
		byID:        make(map[string]job.Job),
		bySkill:     make(map[string]IDSet),
		bySeniority: make(map[job.Seniority]IDSet),
		allSorted:   make([]string, 0),
		position:    make(map[string]int),
	}
}

// WithGeneration returns a copy of the snapshot stamped with gen and a fresh
// ID. The index structures are shared, which is safe because neither copy
// mutates them.
func (s *Snapshot) WithGeneration(gen uint64) *Snapshot {
	c := *s
	c.generation = gen
	c.id = uuid.NewString()
	return &c
}

// ID identifies this snapshot across processes. Generations restart at zero
// in every store, so anything shared between stores keys on the ID instead.
func (s *Snapshot) ID() string {
	return s.id
}

// Generation is the store-assigned sequence number of this snapshot.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Len returns the number of jobs.
func (s *Snapshot) Len() int {
	return len(s.byID)
}

// Job looks up a job by ID.
func (s *Snapshot) Job(id string) (job.Job, bool) {
	j, ok := s.byID[id]
	return j, ok
}

// AllSorted returns every ID in the default order. The slice is shared.
func (s *Snapshot) AllSorted() []string {
	return s.allSorted
}

// Position returns the index of id within AllSorted, or -1.
func (s *Snapshot) Position(id string) int {
	if p, ok := s.position[id]; ok {
		return p
	}
	return -1
}

// Skill returns the IDs tagged with the normalized skill. The set is shared.
func (s *Snapshot) Skill(tag string) IDSet {
	return s.bySkill[tag]
}

// Skills returns every indexed skill tag in ascending order.
func (s *Snapshot) Skills() []string {
	tags := make([]string, 0, len(s.bySkill))
	for tag := range s.bySkill {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Seniority returns the IDs at the given level. The set is shared.
func (s *Snapshot) Seniority(level job.Seniority) IDSet {
	return s.bySeniority[level]
}

// Scan calls fn for every job in default order until fn returns false.
func (s *Snapshot) Scan(fn func(job.Job) bool) {
	for _, id := range s.allSorted {
		if !fn(s.byID[id]) {
			return
		}
	}
}

// Stats summarises the snapshot's index sizes.
type Stats struct {
	Generation  uint64         `json:"generation"`
	Jobs        int            `json:"jobs"`
	Skills      int            `json:"skills"`
	BySeniority map[string]int `json:"by_seniority"`
}

func (s *Snapshot) Stats() Stats {
	st := Stats{
		Generation:  s.generation,
		Jobs:        len(s.byID),
		Skills:      len(s.bySkill),
		BySeniority: make(map[string]int, len(s.bySeniority)),
	}
	for level, ids := range s.bySeniority {
		st.BySeniority[level.String()] = len(ids)
	}
	return st
}
