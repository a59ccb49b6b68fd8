package youtube

import "testing"

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"PT15S", 15},
		{"PT1M", 60},
		{"PT1M30S", 90},
		{"PT1H", 3600},
		{"PT1H2M3S", 3723},
		{"PT10H", 36000},
		{"", 0},
		{"P1D", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := ParseISO8601Duration(tt.raw); got != tt.want {
			t.Errorf("ParseISO8601Duration(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
