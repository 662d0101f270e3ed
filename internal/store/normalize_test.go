package store

import "testing"

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"jan-novák", "jan novak"},
		{"Žluťoučký kůň", "zlutoucky kun"},
		{"  padded  ", "padded"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeDisplayName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeDisplayName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestOutcomeValid(t *testing.T) {
	for _, o := range Outcomes {
		if !o.Valid() {
			t.Errorf("expected %s to be valid", o)
		}
	}
	if Outcome("SOMETHING_ELSE").Valid() {
		t.Error("expected unknown outcome to be invalid")
	}
}

func TestLogStatsMatchRate(t *testing.T) {
	tests := []struct {
		name     string
		stats    LogStats
		expected float64
	}{
		{"empty", LogStats{}, 0},
		{"half", LogStats{TotalAttempts: 10, MatchedAttempts: 5}, 50},
		{"all", LogStats{TotalAttempts: 3, MatchedAttempts: 3}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.MatchRate(); got != tt.expected {
				t.Errorf("MatchRate() = %v, want %v", got, tt.expected)
			}
		})
	}
}
