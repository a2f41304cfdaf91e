package tensor

import (
	"fmt"
	"math/rand"

	"github.com/djeday123/godnn/backend"
)

// Tensor is the core n-dimensional array.
// It owns its storage and can live on any registered device.
type Tensor struct {
	storage backend.Storage
	shape   Shape
	strides Strides
	dtype   DType
}

// ---- Constructors ----

// NewTensor creates a tensor with given storage and metadata.
func NewTensor(storage backend.Storage, shape Shape, dtype DType) *Tensor {
	strides := ContiguousStrides(shape, dtype.Size())
	return &Tensor{
		storage: storage,
		shape:   shape.Clone(),
		strides: strides,
		dtype:   dtype,
	}
}

// New creates an uninitialized tensor on the given device.
func New(shape Shape, dtype DType, device backend.Device) (*Tensor, error) {
	b, err := backend.GetForDevice(device)
	if err != nil {
		return nil, err
	}
	store, err := b.Alloc(shape.NumElements() * int(dtype.Size()))
	if err != nil {
		return nil, err
	}
	return NewTensor(store, shape, dtype), nil
}

// FromSlice creates a CPU tensor from a Go slice.
func FromSlice[T float32 | float64 | int32 | int64](data []T, shape Shape) (*Tensor, error) {
	n := shape.NumElements()
	if len(data) != n {
		return nil, fmt.Errorf("data length %d != shape elements %d", len(data), n)
	}

	var dtype DType
	switch any(data).(type) {
	case []float32:
		dtype = Float32
	case []float64:
		dtype = Float64
	case []int32:
		dtype = Int32
	case []int64:
		dtype = Int64
	}

	t, err := New(shape, dtype, backend.CPU0)
	if err != nil {
		return nil, err
	}
	copySliceToStorage(data, t.storage.Bytes())
	return t, nil
}

// FromFloat32 creates a CPU tensor of the given dtype from float32 data,
// converting elementwise. Float16 goes through half conversion.
func FromFloat32(data []float32, shape Shape, dtype DType) (*Tensor, error) {
	n := shape.NumElements()
	if len(data) != n {
		return nil, fmt.Errorf("data length %d != shape elements %d", len(data), n)
	}

	switch dtype {
	case Float32:
		return FromSlice(data, shape)
	case Float16:
		t, err := New(shape, Float16, backend.CPU0)
		if err != nil {
			return nil, err
		}
		out := t.Float16s()
		for i, f := range data {
			out[i] = Float16FromFloat32(f)
		}
		return t, nil
	}
	return nil, fmt.Errorf("FromFloat32: unsupported dtype %s", dtype)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DType, device backend.Device) (*Tensor, error) {
	b, err := backend.GetForDevice(device)
	if err != nil {
		return nil, err
	}
	t, err := New(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	if err := b.Fill(t.storage, shape, 0, dtype); err != nil {
		t.Free()
		return nil, err
	}
	return t, nil
}

// Rand creates a CPU tensor with uniform values in [0, 1).
func Rand(shape Shape, dtype DType, rng *rand.Rand) (*Tensor, error) {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = rng.Float32()
	}
	return FromFloat32(data, shape, dtype)
}

// ---- Accessors ----

func (t *Tensor) Shape() Shape              { return t.shape }
func (t *Tensor) Strides() Strides          { return t.strides }
func (t *Tensor) DType() DType              { return t.dtype }
func (t *Tensor) NDim() int                 { return len(t.shape) }
func (t *Tensor) NumElements() int          { return t.shape.NumElements() }
func (t *Tensor) Device() backend.Device    { return t.storage.Device() }
func (t *Tensor) Storage() backend.Storage  { return t.storage }

func (t *Tensor) IsContiguous() bool {
	return IsContiguous(t.shape, t.strides, t.dtype.Size())
}

// ---- Mutation ----

// ResizeLike resizes t in place so its shape and dtype match other.
// Storage is reallocated only when the byte length actually changes,
// so resizing to an identical shape is free.
func (t *Tensor) ResizeLike(other *Tensor) error {
	newByteLen := other.NumElements() * int(other.DType().Size())
	if t.storage == nil || t.storage.ByteLen() < newByteLen {
		dev := backend.CPU0
		if t.storage != nil {
			dev = t.storage.Device()
		}
		b, err := backend.GetForDevice(dev)
		if err != nil {
			return err
		}
		store, err := b.Alloc(newByteLen)
		if err != nil {
			return err
		}
		if t.storage != nil {
			b.Free(t.storage)
		}
		t.storage = store
	}
	t.shape = other.Shape().Clone()
	t.dtype = other.DType()
	t.strides = ContiguousStrides(t.shape, t.dtype.Size())
	return nil
}

// To moves the tensor to another device, returning a new tensor.
// A transfer to the tensor's own device returns the tensor unchanged.
func (t *Tensor) To(device backend.Device) (*Tensor, error) {
	if t.Device() == device {
		return t, nil
	}
	// The accelerator side of the pair owns the transfer.
	via := device
	if device.Type == backend.CPU {
		via = t.Device()
	}
	b, err := backend.GetForDevice(via)
	if err != nil {
		return nil, err
	}
	store, err := b.ToDevice(device, t.storage)
	if err != nil {
		return nil, err
	}
	return NewTensor(store, t.shape, t.dtype), nil
}

// Free releases the underlying storage.
func (t *Tensor) Free() {
	if t.storage != nil {
		t.storage.Free()
		t.storage = nil
	}
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s)",
		t.shape, t.dtype, t.Device())
}
