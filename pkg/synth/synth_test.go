// ABOUTME: Tests for static and transition block generation
// ABOUTME: Covers empty sets, single-tone identity and length mismatches
package synth

import (
	"errors"
	"math"
	"testing"
)

func TestStaticEmptySet(t *testing.T) {
	samples := Static(nil, 128)

	if len(samples) != 256 {
		t.Fatalf("expected 256 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("sample %d: expected 0, got %f", i, s)
		}
	}
}

func TestStaticSingleTone(t *testing.T) {
	const f = 2.5
	samples := Static([]float64{f}, 512)

	for i := 0; i < 512; i++ {
		wantI := float32(math.Cos(f * AngularScale * float64(i)))
		wantQ := float32(math.Sin(f * AngularScale * float64(i)))
		if samples[2*i] != wantI {
			t.Errorf("I[%d]: expected %f, got %f", i, wantI, samples[2*i])
		}
		if samples[2*i+1] != wantQ {
			t.Errorf("Q[%d]: expected %f, got %f", i, wantQ, samples[2*i+1])
		}
	}
}

func TestStaticNormalized(t *testing.T) {
	samples := Static([]float64{0, 0, 0}, 4)

	// Three DC tones sum to 3, divided by the tone count
	for i := 0; i < 4; i++ {
		if samples[2*i] != 1 {
			t.Errorf("I[%d]: expected 1, got %f", i, samples[2*i])
		}
		if samples[2*i+1] != 0 {
			t.Errorf("Q[%d]: expected 0, got %f", i, samples[2*i+1])
		}
	}

	samples = Static([]float64{1, 3.3, 7, 12.25}, 2048)
	for i, s := range samples {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}
}

func TestTransitionLengthMismatch(t *testing.T) {
	_, err := Transition([]float64{1, 2}, []float64{1}, 100)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestTransitionRunningFrequency(t *testing.T) {
	const steps = 10
	start := []float64{1}
	end := []float64{5}

	samples, err := Transition(start, end, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2*steps {
		t.Fatalf("expected %d samples, got %d", 2*steps, len(samples))
	}

	running := 1.0
	for i := 0; i < steps; i++ {
		phase := running * AngularScale * float64(i)
		if want := float32(math.Cos(phase)); samples[2*i] != want {
			t.Errorf("I[%d]: expected %f, got %f", i, want, samples[2*i])
		}
		if want := float32(math.Sin(phase)); samples[2*i+1] != want {
			t.Errorf("Q[%d]: expected %f, got %f", i, want, samples[2*i+1])
		}
		running += 5.0 / steps
	}
}

func TestTransitionDoesNotMutateInputs(t *testing.T) {
	start := []float64{1, 2}
	end := []float64{3, 4}

	if _, err := Transition(start, end, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if start[0] != 1 || start[1] != 2 {
		t.Errorf("start set was modified: %v", start)
	}
	if end[0] != 3 || end[1] != 4 {
		t.Errorf("end set was modified: %v", end)
	}
}

func TestTransitionEmptySets(t *testing.T) {
	samples, err := Transition(nil, nil, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 16 {
		t.Fatalf("expected 16 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("sample %d: expected 0, got %f", i, s)
		}
	}
}
