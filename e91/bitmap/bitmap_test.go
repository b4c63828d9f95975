package bitmap

import (
	"bytes"
	"reflect"
	"testing"
)

func mustDense(t *testing.T, s string) Dense {
	d, err := FromString(s)
	if err != nil {
		t.Fatalf("bugged test setup: %v", err)
	}
	return d
}

func TestSelect(t *testing.T) {
	tcs := []struct {
		name string
		data Dense
		mask Dense
		eout Dense
	}{
		{
			name: "all",
			data: mustDense(t, "101"),
			mask: mustDense(t, "111"),
			eout: mustDense(t, "101"),
		}, {
			name: "some",
			data: mustDense(t, "10100011"),
			mask: mustDense(t, "11111100"),
			eout: mustDense(t, "101000"),
		}, {
			name: "none",
			data: mustDense(t, "10100011 111"),
			mask: mustDense(t, "00000000 000"),
			eout: mustDense(t, ""),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := Select(tc.data, tc.mask)
			if out.len != tc.eout.len {
				t.Errorf("got bitmap of len %d, want %d", out.len, tc.eout.len)
			}
			if !bytes.Equal(out.bits, tc.eout.bits) {
				t.Errorf("Select(%v, %v) == %v, want %v", tc.data.bits, tc.mask.bits, out.bits, tc.eout.bits)
			}
		})
	}
}

func TestCountOnes(t *testing.T) {
	tcs := []struct {
		name string
		data Dense
		eout int
	}{
		{"short", mustDense(t, "101"), 2},
		{"empty", mustDense(t, ""), 0},
		{"multibyte one", mustDense(t, "1111 1111 11"), 10},
		{"multibyte two", mustDense(t, "1011 1011 10"), 7},
		{"negated tail", Not(mustDense(t, "101")), 1},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := CountOnes(tc.data)
			if out != tc.eout {
				t.Errorf("CountOnes(%v) == %v, want %v", tc.data.bits, out, tc.eout)
			}
		})
	}
}

func TestHamming(t *testing.T) {
	tcs := []struct {
		name string
		a, b Dense
		eout int
	}{
		{"identical", mustDense(t, "1011 0110 1"), mustDense(t, "1011 0110 1"), 0},
		{"one off", mustDense(t, "1011"), mustDense(t, "1111"), 1},
		{"all off", mustDense(t, "0000 0000 00"), mustDense(t, "1111 1111 11"), 10},
		{"short pads with zeros", mustDense(t, "11"), mustDense(t, "1101"), 1},
		{"empty", Dense{}, Dense{}, 0},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if got := Hamming(tc.a, tc.b); got != tc.eout {
				t.Errorf("Hamming(%v, %v) == %d, want %d", tc.a, tc.b, got, tc.eout)
			}
			if got := Hamming(tc.b, tc.a); got != tc.eout {
				t.Errorf("Hamming(%v, %v) == %d, want %d", tc.b, tc.a, got, tc.eout)
			}
		})
	}
}

func TestStringForms(t *testing.T) {
	d := mustDense(t, "1011 0010 1")
	if got, want := d.String(), "101100101"; got != want {
		t.Errorf("String() == %q, want %q", got, want)
	}
	if got, want := d.Ints(), []int{1, 0, 1, 1, 0, 0, 1, 0, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("Ints() == %v, want %v", got, want)
	}
	if _, err := FromString("10x"); err == nil {
		t.Errorf("FromString(10x) did not fail")
	}
}
