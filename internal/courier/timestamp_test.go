package courier

import (
	"testing"
	"time"
)

func TestParseStatusTime(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	tests := []struct {
		raw    string
		want   time.Time
		wantOK bool
	}{
		{"2024-01-15T10:30:00.000", time.Date(2024, 1, 15, 10, 30, 0, 0, ist), true},
		{"2024-01-15T10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, ist), true},
		{"2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, ist), true},
		{"2024-01-15T05:00:00Z", time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC), true},
		{"2024-01-15T10:30:00+05:30", time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC), true},
		{"15-01-2024 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, ist), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseStatusTime(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
