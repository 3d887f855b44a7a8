// Package observability provides run statistics for the pipeline tools:
// per-label record tallies and human-readable run summaries.
package observability

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// LabelStats holds the record count for one label.
type LabelStats struct {
	Label   string
	Records int64
}

// ChunkStats tracks how many records each label received during a run.
// Thread-safe; workers report their per-label tallies after finishing.
type ChunkStats struct {
	mu     sync.Mutex
	labels map[string]int64
}

// NewChunkStats creates an empty tally.
func NewChunkStats() *ChunkStats {
	return &ChunkStats{labels: make(map[string]int64)}
}

// Record adds per-label counts from one worker.
func (s *ChunkStats) Record(counts map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for label, n := range counts {
		s.labels[label] += n
	}
}

// Labels returns the number of distinct labels seen.
func (s *ChunkStats) Labels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.labels)
}

// TopLabels returns the n busiest labels, by record count descending, ties
// broken by label for stable output.
func (s *ChunkStats) TopLabels(n int) []LabelStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]LabelStats, 0, len(s.labels))
	for label, records := range s.labels {
		stats = append(stats, LabelStats{Label: label, Records: records})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Records != stats[j].Records {
			return stats[i].Records > stats[j].Records
		}
		return stats[i].Label < stats[j].Label
	})

	if n > 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// Summary formats a one-line run summary: counts, skips, and throughput.
func Summary(records, skipped int64, duration time.Duration) string {
	rate := float64(records)
	if seconds := duration.Seconds(); seconds > 0 {
		rate = float64(records) / seconds
	}
	return fmt.Sprintf("%s records (%s skipped) in %s, %s records/sec",
		humanize.Comma(records),
		humanize.Comma(skipped),
		duration.Round(time.Millisecond),
		humanize.CommafWithDigits(rate, 0))
}
