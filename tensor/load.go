package tensor

import (
	"fmt"

	"golang.org/x/exp/mmap"

	"github.com/djeday123/godnn/backend"
)

// LoadRaw reads a raw little-endian tensor file into a CPU tensor.
// The file must contain exactly shape.NumElements() elements of the
// given dtype, no header. Large inputs are read through a memory map
// rather than buffered IO.
func LoadRaw(path string, shape Shape, dtype DType) (*Tensor, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer r.Close()

	want := shape.NumElements() * int(dtype.Size())
	if r.Len() != want {
		return nil, fmt.Errorf("%s: file is %d bytes, shape %v of %s needs %d",
			path, r.Len(), shape, dtype, want)
	}

	t, err := New(shape, dtype, backend.CPU0)
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadAt(t.storage.Bytes(), 0); err != nil {
		t.Free()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}
