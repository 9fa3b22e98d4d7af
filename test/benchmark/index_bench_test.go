// Package benchmark contains Go benchmarks for snapshot building, JHQL
// parsing and query execution, measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
)

var (
	benchSkills    = []string{"go", "rust", "python", "typescript", "kafka", "postgresql", "kubernetes", "solana"}
	benchLevels    = []string{"junior", "mid", "senior", "lead", ""}
	benchCompanies = []string{"Acme", "Beta", "Gamma", "Delta", "Helios", "Orbit"}
)

// corpus returns n synthetic records with about 5% duplicate source URLs.
func corpus(n int) []job.RawJob {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	records := make([]job.RawJob, n)
	for i := range records {
		url := fmt.Sprintf("https://jobs.example/%d", i)
		if i%20 == 19 {
			url = fmt.Sprintf("https://jobs.example/%d", i-1)
		}
		records[i] = job.RawJob{
			Title:      fmt.Sprintf("Engineer %d", i),
			Company:    benchCompanies[i%len(benchCompanies)],
			Skills:     []string{benchSkills[i%len(benchSkills)], benchSkills[(i*3+1)%len(benchSkills)]},
			Seniority:  benchLevels[i%len(benchLevels)],
			DatePosted: base.AddDate(0, 0, -(i % 90)).Format("2006-01-02"),
			SourceURL:  url,
		}
	}
	return records
}

// BenchmarkBuild measures a full rebuild at several corpus sizes.
func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{1000, 10000, 50000} {
		records := corpus(n)
		b.Run(fmt.Sprintf("records_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				snap, _ := index.Build(records)
				_ = snap
			}
		})
	}
}
