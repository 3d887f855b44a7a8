// Package progress aggregates per-worker progress events onto a single
// terminal display owned by the driver. Workers never touch the terminal;
// they send events over a channel keyed by their job slot, which keeps the
// per-slot counts exact without shared cursor state.
package progress

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Kind discriminates progress events.
type Kind int

const (
	// KindRecord marks one record routed to its chunk.
	KindRecord Kind = iota
	// KindSkipped marks one malformed record skipped with a warning.
	KindSkipped
	// KindFileDone marks one input file fully consumed.
	KindFileDone
)

// Event is one progress report from a worker slot.
type Event struct {
	Job  int
	Kind Kind
}

// SlotCounts holds the running totals for one worker slot.
type SlotCounts struct {
	Records int64
	Skipped int64
	Files   int64
}

// Tracker owns the progress display. Exactly one goroutine (started by
// NewTracker) consumes events and mutates the slot counters; Stop reads them
// only after that goroutine has exited.
type Tracker struct {
	events chan Event
	done   chan struct{}
	slots  []SlotCounts

	bar *progressbar.ProgressBar
}

// NewTracker starts a tracker for the given number of worker slots and total
// input files. Pass io.Discard to suppress display (tests, quiet mode).
func NewTracker(jobs int, totalFiles int64, out io.Writer) *Tracker {
	if out == nil {
		out = io.Discard
	}

	t := &Tracker{
		events: make(chan Event, 1024),
		done:   make(chan struct{}),
		slots:  make([]SlotCounts, jobs),
		bar: progressbar.NewOptions64(totalFiles,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("chunking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("file"),
			progressbar.OptionThrottle(0),
		),
	}

	go t.run()
	return t
}

// Report sends one event for a worker slot. Safe for concurrent use.
func (t *Tracker) Report(job int, kind Kind) {
	t.events <- Event{Job: job, Kind: kind}
}

// Stop drains outstanding events, finishes the display, and returns the
// final per-slot counts in slot order.
func (t *Tracker) Stop() []SlotCounts {
	close(t.events)
	<-t.done

	out := make([]SlotCounts, len(t.slots))
	copy(out, t.slots)
	return out
}

func (t *Tracker) run() {
	defer close(t.done)

	var records int64
	for ev := range t.events {
		if ev.Job < 0 || ev.Job >= len(t.slots) {
			continue
		}

		switch ev.Kind {
		case KindRecord:
			t.slots[ev.Job].Records++
			records++
			if records%10000 == 0 {
				t.bar.Describe("chunking (" + humanize.Comma(records) + " records)")
			}
		case KindSkipped:
			t.slots[ev.Job].Skipped++
		case KindFileDone:
			t.slots[ev.Job].Files++
			_ = t.bar.Add(1)
		}
	}

	_ = t.bar.Finish()
}
