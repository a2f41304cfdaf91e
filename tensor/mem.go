package tensor

import (
	"unsafe"

	"github.com/djeday123/godnn/core"
)

// copySliceToStorage copies a Go slice into a storage buffer safely.
func copySliceToStorage[T any](data []T, dst []byte) {
	if len(data) == 0 || len(dst) == 0 {
		return
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	srcLen := len(data) * elemSize
	if srcLen > len(dst) {
		srcLen = len(dst)
	}
	srcBytes := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), srcLen)
	copy(dst, srcBytes)
}

// ptrSlice interprets a storage's memory as a typed slice.
// Uses Bytes() for safe access on CPU.
func ptrSlice[T any](b []byte, n int) []T {
	if n == 0 || len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

// sliceFromPtr interprets raw memory as a Go slice (for device storage
// mapped into the host address space; nil Bytes means device-only).
func sliceFromPtr[T any](ptr unsafe.Pointer, n int) []T {
	if n == 0 || ptr == nil {
		return nil
	}
	return unsafe.Slice((*T)(ptr), n)
}

// Float32s returns the tensor data as []float32.
func (t *Tensor) Float32s() []float32 {
	if b := t.storage.Bytes(); b != nil {
		return ptrSlice[float32](b, t.NumElements())
	}
	return sliceFromPtr[float32](t.storage.Ptr(), t.NumElements())
}

// Float16s returns the tensor data as raw half values.
func (t *Tensor) Float16s() []core.Float16Value {
	if b := t.storage.Bytes(); b != nil {
		return ptrSlice[core.Float16Value](b, t.NumElements())
	}
	return sliceFromPtr[core.Float16Value](t.storage.Ptr(), t.NumElements())
}

// Int32s returns the tensor data as []int32.
func (t *Tensor) Int32s() []int32 {
	if b := t.storage.Bytes(); b != nil {
		return ptrSlice[int32](b, t.NumElements())
	}
	return sliceFromPtr[int32](t.storage.Ptr(), t.NumElements())
}
