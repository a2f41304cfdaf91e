package tensor

import "github.com/djeday123/godnn/core"

// Re-export core types so tensor.Shape, tensor.DType etc. still work.
type Shape = core.Shape
type Strides = core.Strides
type DType = core.DType
type Float16Value = core.Float16Value

const (
	Float16 = core.Float16
	Float32 = core.Float32
	Float64 = core.Float64
	Int8    = core.Int8
	Int32   = core.Int32
	Int64   = core.Int64
	Uint8   = core.Uint8
)

var (
	ContiguousStrides  = core.ContiguousStrides
	IsContiguous       = core.IsContiguous
	Float16FromFloat32 = core.Float16FromFloat32
)
