package cpu

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/djeday123/godnn/backend"
	"github.com/djeday123/godnn/core"
)

// Backend implements backend.Backend for CPU.
type Backend struct{}

func init() {
	backend.Register(&Backend{})
}

func (b *Backend) Name() string                   { return "cpu" }
func (b *Backend) DeviceType() backend.DeviceType { return backend.CPU }

func (b *Backend) Alloc(byteLen int) (backend.Storage, error) {
	return newStorage(byteLen), nil
}

func (b *Backend) Free(s backend.Storage) {
	s.Free()
}

func (b *Backend) Copy(dst, src backend.Storage, byteLen int) error {
	d := dst.Bytes()
	s := src.Bytes()
	if len(d) < byteLen || len(s) < byteLen {
		return fmt.Errorf("copy of %d bytes exceeds storage (dst %d, src %d)", byteLen, len(d), len(s))
	}
	copy(d[:byteLen], s[:byteLen])
	return nil
}

func (b *Backend) ToDevice(dst backend.Device, src backend.Storage) (backend.Storage, error) {
	if dst.Type != backend.CPU {
		return nil, fmt.Errorf("cpu backend can only transfer to cpu, got %s", dst)
	}
	out := newStorage(src.ByteLen())
	copy(out.data, src.Bytes())
	return out, nil
}

func (b *Backend) Fill(dst backend.Storage, shape core.Shape, value float64, dtype core.DType) error {
	n := shape.NumElements()
	buf := dst.Bytes()
	if need := n * int(dtype.Size()); len(buf) < need {
		return fmt.Errorf("fill of %d %s elements exceeds storage (%d bytes)", n, dtype, len(buf))
	}
	if n == 0 {
		return nil
	}
	switch dtype {
	case core.Float32:
		out := unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), n)
		v := float32(value)
		for i := range out {
			out[i] = v
		}
	case core.Float64:
		out := unsafe.Slice((*float64)(unsafe.Pointer(&buf[0])), n)
		for i := range out {
			out[i] = value
		}
	case core.Float16:
		out := unsafe.Slice((*core.Float16Value)(unsafe.Pointer(&buf[0])), n)
		v := core.Float16FromFloat32(float32(value))
		for i := range out {
			out[i] = v
		}
	case core.Int32:
		out := unsafe.Slice((*int32)(unsafe.Pointer(&buf[0])), n)
		v := int32(math.Round(value))
		for i := range out {
			out[i] = v
		}
	case core.Int64:
		out := unsafe.Slice((*int64)(unsafe.Pointer(&buf[0])), n)
		v := int64(math.Round(value))
		for i := range out {
			out[i] = v
		}
	case core.Int8, core.Uint8:
		v := byte(int(math.Round(value)))
		for i := 0; i < n; i++ {
			buf[i] = v
		}
	default:
		return fmt.Errorf("fill: unsupported dtype %s", dtype)
	}
	return nil
}
