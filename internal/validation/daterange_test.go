package validation

import (
	"errors"
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name      string
		startDate string
		endDate   string
		wantErr   error
		wantFrom  string
		wantTo    string
	}{
		{
			name: "both empty",
		},
		{
			name:      "only start",
			startDate: "2026-01-01",
			wantFrom:  "2026-01-01T00:00:00Z",
		},
		{
			name:    "only end",
			endDate: "2026-01-31",
			wantTo:  "2026-02-01T00:00:00Z",
		},
		{
			name:      "full range",
			startDate: "2026-01-01",
			endDate:   "2026-01-31",
			wantFrom:  "2026-01-01T00:00:00Z",
			wantTo:    "2026-02-01T00:00:00Z",
		},
		{
			name:      "single day",
			startDate: "2026-01-15",
			endDate:   "2026-01-15",
			wantFrom:  "2026-01-15T00:00:00Z",
			wantTo:    "2026-01-16T00:00:00Z",
		},
		{
			name:      "start after end",
			startDate: "2026-02-01",
			endDate:   "2026-01-01",
			wantErr:   ErrInvalidRange,
		},
		{
			name:      "bad start format",
			startDate: "01.02.2026",
			wantErr:   ErrInvalidDate,
		},
		{
			name:    "bad end format",
			endDate: "not-a-date",
			wantErr: ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseDateRange(tt.startDate, tt.endDate)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			checkBound(t, "from", from, tt.wantFrom)
			checkBound(t, "to", to, tt.wantTo)
		})
	}
}

func checkBound(t *testing.T, label string, got *time.Time, want string) {
	t.Helper()

	if want == "" {
		if got != nil {
			t.Fatalf("%s = %v, want nil", label, got)
		}
		return
	}

	if got == nil {
		t.Fatalf("%s = nil, want %s", label, want)
	}
	if formatted := got.UTC().Format(time.RFC3339); formatted != want {
		t.Fatalf("%s = %s, want %s", label, formatted, want)
	}
}
