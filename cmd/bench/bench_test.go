package main

import (
	"fmt"
	"math"
	"testing"
)

func TestApplyCartesian(t *testing.T) {
	var got []string
	applyCartesian(func(args []interface{}) {
		got = append(got, fmt.Sprintf("%v %v %v", args...))
	}, [][]interface{}{{1, 2}, {"a"}, {true, false}})
	want := []string{"1 a true", "1 a false", "2 a true", "2 a false"}
	if len(got) != len(want) {
		t.Fatalf("applyCartesian visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("combination %d == %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMeanStdDev(t *testing.T) {
	tcs := []struct {
		in         []float64
		eMean, eSD float64
	}{
		{nil, 0, 0},
		{[]float64{2.5}, 2.5, 0},
		{[]float64{1, 3}, 2, math.Sqrt2},
		{[]float64{2, 2, 2, 2}, 2, 0},
	}
	for _, tc := range tcs {
		m, sd := meanStdDev(tc.in)
		if math.Abs(m-tc.eMean) > 1e-12 || math.Abs(sd-tc.eSD) > 1e-12 {
			t.Errorf("meanStdDev(%v) == (%v, %v), want (%v, %v)", tc.in, m, sd, tc.eMean, tc.eSD)
		}
	}
}
