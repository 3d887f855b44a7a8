package observability

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestChunkStatsTopLabels(t *testing.T) {
	s := NewChunkStats()
	s.Record(map[string]int64{"2021-05-01": 10, "2021-05-02": 3})
	s.Record(map[string]int64{"2021-05-02": 4, "2021-05-03": 7})

	if s.Labels() != 3 {
		t.Errorf("labels = %d, want 3", s.Labels())
	}

	got := s.TopLabels(2)
	want := []LabelStats{
		{Label: "2021-05-01", Records: 10},
		{Label: "2021-05-02", Records: 7},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("top labels = %v, want %v", got, want)
	}
}

func TestChunkStatsTiesBreakByLabel(t *testing.T) {
	s := NewChunkStats()
	s.Record(map[string]int64{"bbb": 5, "aaa": 5})

	got := s.TopLabels(0)
	if got[0].Label != "aaa" || got[1].Label != "bbb" {
		t.Errorf("tie order = %v", got)
	}
}

func TestSummary(t *testing.T) {
	got := Summary(1234567, 42, 2*time.Second)
	for _, part := range []string{"1,234,567 records", "42 skipped", "2s"} {
		if !strings.Contains(got, part) {
			t.Errorf("summary %q missing %q", got, part)
		}
	}
}
