package worker

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{PhaseUninitialized, PhaseInitializing, true},
		{PhaseInitializing, PhaseReady, true},
		{PhaseInitializing, PhaseDegraded, true},
		{PhaseDegraded, PhaseInitializing, true},

		{PhaseUninitialized, PhaseReady, false},
		{PhaseUninitialized, PhaseDegraded, false},
		{PhaseReady, PhaseInitializing, false},
		{PhaseReady, PhaseDegraded, false},
		{PhaseReady, PhaseUninitialized, false},
		{PhaseDegraded, PhaseReady, false},
		{PhaseInitializing, PhaseUninitialized, false},
		{"bogus", PhaseReady, false},
		{PhaseReady, "bogus", false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
