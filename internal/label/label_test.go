package label

import (
	"errors"
	"testing"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

func TestDayLabel(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
	}{
		{
			name:   "basic",
			record: `{"created_at":"Sat May 01 12:34:56 +0000 2021","text":"hi"}`,
			want:   "2021-05-01",
		},
		{
			name:   "december",
			record: `{"created_at":"Fri Dec 31 23:59:59 +0000 2021"}`,
			want:   "2021-12-31",
		},
		{
			name:   "non-utc offset ignored",
			record: `{"created_at":"Wed Jan 15 08:00:00 +0900 2020"}`,
			want:   "2020-01-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DayLabeler{}.Label([]byte(tt.record))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDayLabelMalformed(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"missing created_at", `{"text":"hi"}`},
		{"numeric created_at", `{"created_at":1619866496}`},
		{"unknown month token", `{"created_at":"Sat Mai 01 12:34:56 +0000 2021"}`},
		{"truncated timestamp", `{"created_at":"Sat May"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DayLabeler{}.Label([]byte(tt.record))
			if err == nil {
				t.Fatal("expected error")
			}
			if !pkgerrors.IsMalformedRecord(err) {
				t.Errorf("expected malformed-record error, got %v", err)
			}
		})
	}
}

func TestHashLabelWidthAndDeterminism(t *testing.T) {
	labeler, err := NewHashLabeler(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := []byte(`{"user":{"id":1234567890}}`)
	first, err := labeler.Label(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 3 {
		t.Errorf("label %q has width %d, want 3", first, len(first))
	}

	// Same user must bucket identically on every call.
	for i := 0; i < 10; i++ {
		got, err := labeler.Label(record)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Errorf("labeling not deterministic: %q vs %q", got, first)
		}
	}
}

func TestHashLabelNumberLongMatchesPlain(t *testing.T) {
	labeler, err := NewHashLabeler(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plain, err := labeler.Label([]byte(`{"user":{"id":987654321}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wrapped, err := labeler.Label([]byte(`{"user":{"id":{"$numberLong":"987654321"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain != wrapped {
		t.Errorf("wrapped id bucketed differently: %q vs %q", wrapped, plain)
	}
}

func TestHashLabelMalformed(t *testing.T) {
	labeler, err := NewHashLabeler(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, record := range []string{
		`{"text":"no user"}`,
		`{"user":{"id":"not-a-number-at-all"}}`,
		`{"user":{"id":null}}`,
	} {
		_, err := labeler.Label([]byte(record))
		if err == nil {
			t.Fatalf("expected error for %s", record)
		}
		if !pkgerrors.IsMalformedRecord(err) {
			t.Errorf("expected malformed-record error for %s, got %v", record, err)
		}
	}
}

func TestHashLabelInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1, 65} {
		_, err := NewHashLabeler(length)
		if err == nil {
			t.Fatalf("expected error for length %d", length)
		}
		var pe *pkgerrors.PipelineError
		if !errors.As(err, &pe) || pe.Code != pkgerrors.CodeInvalidHashLength {
			t.Errorf("expected INVALID_HASH_LENGTH for length %d, got %v", length, err)
		}
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	day, err := New(Config{Strategy: StrategyDay})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Name() != "day" {
		t.Errorf("got %q, want day", day.Name())
	}

	// Empty strategy defaults to calendar-day.
	def, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name() != "day" {
		t.Errorf("default strategy is %q, want day", def.Name())
	}

	hash, err := New(Config{Strategy: StrategyHash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hl, ok := hash.(HashLabeler)
	if !ok {
		t.Fatalf("expected HashLabeler, got %T", hash)
	}
	if hl.Length() != DefaultHashLength {
		t.Errorf("default hash length %d, want %d", hl.Length(), DefaultHashLength)
	}

	_, err = New(Config{Strategy: "plugin"})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	var pe *pkgerrors.PipelineError
	if !errors.As(err, &pe) || pe.Code != pkgerrors.CodeUnknownStrategy {
		t.Errorf("expected UNKNOWN_STRATEGY, got %v", err)
	}
}
