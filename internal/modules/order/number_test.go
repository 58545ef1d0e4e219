package order

import (
	"testing"
	"time"
)

func TestFormatNumber(t *testing.T) {
	day := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		seq  int
		want string
	}{
		{1, "ORD260831-001"},
		{42, "ORD260831-042"},
		{999, "ORD260831-999"},
		{1000, "ORD260831-1000"}, // padding grows past three digits
	}
	for _, tc := range cases {
		if got := FormatNumber(day, tc.seq); got != tc.want {
			t.Errorf("FormatNumber(day, %d) = %q, want %q", tc.seq, got, tc.want)
		}
	}
}
