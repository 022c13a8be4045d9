package models

import "testing"

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
		count   int
	}{
		{name: "single port", spec: "80", count: 1},
		{name: "list", spec: "80,443,8080", count: 3},
		{name: "span", spec: "1-1024", count: 1024},
		{name: "mixed", spec: "22,80-82,443", count: 5},
		{name: "overlapping merges", spec: "1-10,5-20", count: 20},
		{name: "adjacent merges", spec: "1-10,11-20", count: 20},
		{name: "empty", spec: "", wantErr: true},
		{name: "bad span", spec: "100-50", wantErr: true},
		{name: "bad number", spec: "not-a-port", wantErr: true},
		{name: "out of range", spec: "70000", wantErr: true},
		{name: "trailing comma", spec: "80,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := ParsePortRange(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePortRange(%q) = nil error, want error", tt.spec)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParsePortRange(%q) error = %v", tt.spec, err)
			}

			if got := pr.Count(); got != tt.count {
				t.Errorf("Count() = %d, want %d", got, tt.count)
			}
		})
	}
}

func TestPortRangeContains(t *testing.T) {
	pr, err := ParsePortRange("22,80-82,443")
	if err != nil {
		t.Fatalf("ParsePortRange error = %v", err)
	}

	for _, p := range []uint16{22, 80, 81, 82, 443} {
		if !pr.Contains(p) {
			t.Errorf("Contains(%d) = false, want true", p)
		}
	}

	for _, p := range []uint16{21, 79, 83, 442, 444} {
		if pr.Contains(p) {
			t.Errorf("Contains(%d) = true, want false", p)
		}
	}
}

// TestPortRangeIterContains is property P2: every port Iter yields must
// satisfy Contains, and fall within 0..65535.
func TestPortRangeIterContains(t *testing.T) {
	specs := []string{"1", "1-100", "1,3,5-10", "65530-65535"}

	for _, spec := range specs {
		pr, err := ParsePortRange(spec)
		if err != nil {
			t.Fatalf("ParsePortRange(%q) error = %v", spec, err)
		}

		seen := 0

		pr.Iter(func(p uint16) bool {
			seen++

			if !pr.Contains(p) {
				t.Errorf("spec %q: Iter yielded %d but Contains(%d) = false", spec, p, p)
			}

			return true
		})

		if seen != pr.Count() {
			t.Errorf("spec %q: Iter yielded %d ports, Count() = %d", spec, seen, pr.Count())
		}
	}
}

func TestIPIDDeltaWrapping(t *testing.T) {
	// P4: measurements {65534, 65535, 0, 1} produce deltas {1,1,1}.
	measurements := []uint16{65534, 65535, 0, 1}

	for i := 1; i < len(measurements); i++ {
		d := IPIDDelta(measurements[i-1], measurements[i])
		if d != 1 {
			t.Errorf("IPIDDelta(%d, %d) = %d, want 1", measurements[i-1], measurements[i], d)
		}
	}
}

func TestClassifyIPIDSequence(t *testing.T) {
	tests := []struct {
		name   string
		deltas []uint16
		want   IPIDPattern
	}{
		{name: "sequential", deltas: []uint16{1, 1, 1, 1}, want: PatternSequential},
		{name: "broken256", deltas: []uint16{256, 256, 256}, want: PatternBroken256},
		{name: "random", deltas: []uint16{1, 9000, 300, 40000}, want: PatternRandom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyIPIDSequence(tt.deltas); got != tt.want {
				t.Errorf("ClassifyIPIDSequence(%v) = %v, want %v", tt.deltas, got, tt.want)
			}
		})
	}
}

func TestInferPortState(t *testing.T) {
	tests := []struct {
		pattern IPIDPattern
		delta   uint16
		want    IdleScanInference
	}{
		{PatternSequential, 1, InferenceClosedFiltered},
		{PatternSequential, 2, InferenceOpen},
		{PatternSequential, 5, InferenceOpen},
		{PatternBroken256, 256, InferenceClosedFiltered},
		{PatternBroken256, 512, InferenceOpen},
		{PatternRandom, 1, InferenceNoisy},
	}

	for _, tt := range tests {
		got := InferPortState(tt.pattern, tt.delta)
		if got != tt.want {
			t.Errorf("InferPortState(%v, %d) = %v, want %v", tt.pattern, tt.delta, got, tt.want)
		}
	}
}
