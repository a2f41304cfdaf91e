package core

import (
	"math"
	"testing"
)

func TestDTypeSize(t *testing.T) {
	cases := map[DType]uintptr{
		Float16: 2, Float32: 4, Float64: 8,
		Int8: 1, Int32: 4, Int64: 8, Uint8: 1,
	}
	for dt, want := range cases {
		if got := dt.Size(); got != want {
			t.Errorf("%s.Size() = %d, want %d", dt, got, want)
		}
	}
}

func TestDTypeString(t *testing.T) {
	if Float16.String() != "float16" || Int32.String() != "int32" {
		t.Errorf("unexpected dtype names: %s %s", Float16, Int32)
	}
}

func TestFloat16RoundTrip(t *testing.T) {
	for _, f := range []float32{0, 1, -1, 0.5, 1024, -0.25} {
		h := Float16FromFloat32(f)
		if got := h.Float32(); got != f {
			t.Errorf("half round trip of %v = %v", f, got)
		}
	}
	// Values outside exact half range must still come back finite.
	h := Float16FromFloat32(1.0001)
	if math.IsNaN(float64(h.Float32())) {
		t.Error("inexact half conversion produced NaN")
	}
}
