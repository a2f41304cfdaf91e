package core

import (
	"fmt"

	"github.com/x448/float16"
)

// DType represents the data type of tensor elements.
type DType uint8

const (
	Float16 DType = iota
	Float32
	Float64
	Int8
	Int32
	Int64
	Uint8
)

// Size returns the byte size of one element.
func (d DType) Size() uintptr {
	switch d {
	case Float16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Int8, Uint8:
		return 1
	default:
		panic(fmt.Sprintf("unknown dtype: %d", d))
	}
}

func (d DType) String() string {
	names := [...]string{
		"float16", "float32", "float64",
		"int8", "int32", "int64", "uint8",
	}
	if int(d) < len(names) {
		return names[d]
	}
	return fmt.Sprintf("dtype(%d)", d)
}

// IsFloat returns true for floating point types.
func (d DType) IsFloat() bool {
	return d == Float16 || d == Float32 || d == Float64
}

// Float16Value represents an IEEE 754 half-precision number.
// Stored as the raw 16-bit pattern.
type Float16Value uint16

func Float16FromFloat32(f float32) Float16Value {
	return Float16Value(float16.Fromfloat32(f).Bits())
}

func (h Float16Value) Float32() float32 {
	return float16.Frombits(uint16(h)).Float32()
}
