package playback

import "testing"

func TestRateSteps(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) float64
		in   float64
		want float64
	}{
		{"faster from normal", Faster, 1.0, 1.25},
		{"faster between steps", Faster, 1.1, 1.25},
		{"faster at max", Faster, 2.0, 2.0},
		{"slower from normal", Slower, 1.0, 0.75},
		{"slower between steps", Slower, 1.1, 1.0},
		{"slower at min", Slower, 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRate(t *testing.T) {
	for _, r := range []float64{0.5, 1, 1.3, 2} {
		if err := ValidateRate(r); err != nil {
			t.Errorf("ValidateRate(%v) = %v", r, err)
		}
	}
	for _, r := range []float64{0, 0.49, 2.01} {
		if err := ValidateRate(r); err == nil {
			t.Errorf("ValidateRate(%v) should fail", r)
		}
	}
}

func TestRateLabel(t *testing.T) {
	if got := RateLabel(1.0); got != "1.0x (Normal)" {
		t.Errorf("RateLabel(1) = %q", got)
	}
	if got := RateLabel(1.25); got != "1.25x" {
		t.Errorf("RateLabel(1.25) = %q", got)
	}
}

func TestStateString(t *testing.T) {
	if StateSpeaking.String() != "speaking" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
