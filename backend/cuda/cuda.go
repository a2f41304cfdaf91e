package cuda

// CUDA backend — implements backend.Backend for NVIDIA GPUs.
//
// Architecture:
//   - Memory -> CUDA Driver API via purego (zero cgo), size-bucketed Pool
//   - Compute -> none here; DNN primitives go through dnn/cudnn, which
//     shares this backend's stream
//
// Registration: import _ "github.com/djeday123/godnn/backend/cuda"
// This triggers init() which calls backend.Register(&Backend{}).
// The backend is initialized lazily on first use.

import (
	"fmt"
	"sync"

	"github.com/djeday123/godnn/backend"
	"github.com/djeday123/godnn/core"
)

// Backend implements backend.Backend for NVIDIA GPUs.
type Backend struct {
	mu          sync.Mutex
	initialized bool

	deviceIdx int
	device    int32
	ctx       uintptr
	stream    uintptr
	info      *DeviceInfo

	pool *Pool
}

func init() {
	// Only register if CUDA driver is available.
	// This allows the binary to run on machines without NVIDIA GPUs.
	if err := initDriver(); err != nil {
		return // silently skip — CPU backend will be used
	}
	if r := cuInit(0); r != CUDA_SUCCESS {
		return // no CUDA devices
	}
	backend.Register(&Backend{})
}

func (b *Backend) Name() string                   { return "cuda" }
func (b *Backend) DeviceType() backend.DeviceType { return backend.CUDA }

// ensureInit performs lazy initialization on first use.
func (b *Backend) ensureInit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		cuCtxSetCurrent(b.ctx)
		return nil
	}

	if r := cuDeviceGet(&b.device, int32(b.deviceIdx)); r != CUDA_SUCCESS {
		return fmt.Errorf("cuDeviceGet(%d): %s", b.deviceIdx, r.Error())
	}

	if r := cuCtxCreate(&b.ctx, 0, b.device); r != CUDA_SUCCESS {
		return fmt.Errorf("cuCtxCreate: %s", r.Error())
	}

	if r := cuStreamCreate(&b.stream, CU_STREAM_NON_BLOCKING); r != CUDA_SUCCESS {
		return fmt.Errorf("cuStreamCreate: %s", r.Error())
	}

	var err error
	b.info, err = QueryDevice(b.deviceIdx)
	if err != nil {
		return fmt.Errorf("QueryDevice: %w", err)
	}

	b.pool = NewPool(backend.CUDADevice(b.deviceIdx))

	b.initialized = true
	fmt.Printf("[godnn] CUDA backend initialized: %s\n", b.info)
	return nil
}

// Stream returns the backend's execution stream.
// DNN primitives bound to this stream serialize correctly against
// memory transfers issued here.
func (b *Backend) Stream() (uintptr, error) {
	if err := b.ensureInit(); err != nil {
		return 0, err
	}
	return b.stream, nil
}

// Synchronize blocks until all queued work on the stream completes.
func (b *Backend) Synchronize() error {
	if err := b.ensureInit(); err != nil {
		return err
	}
	return check(cuStreamSynchronize(b.stream), "cuStreamSynchronize")
}

// devPtr extracts the raw device pointer (uintptr) from a Storage.
func devPtr(s backend.Storage) uintptr {
	if cs, ok := s.(*Storage); ok {
		return cs.DevicePtr()
	}
	return uintptr(s.Ptr())
}

// ---- backend.Backend memory interface ----

func (b *Backend) Alloc(byteLen int) (backend.Storage, error) {
	if err := b.ensureInit(); err != nil {
		return nil, err
	}
	return b.pool.Get(byteLen)
}

func (b *Backend) Free(s backend.Storage) {
	if cs, ok := s.(*Storage); ok {
		b.pool.Put(cs)
		return
	}
	s.Free()
}

func (b *Backend) Copy(dst, src backend.Storage, byteLen int) error {
	if err := b.ensureInit(); err != nil {
		return err
	}
	return check(cuMemcpyDtoD(devPtr(dst), devPtr(src), uint64(byteLen)), "cuMemcpyDtoD")
}

// ToDevice transfers storage across the host/device boundary.
// Supports cpu->cuda and cuda->cpu; same-device transfer duplicates the buffer.
func (b *Backend) ToDevice(dst backend.Device, src backend.Storage) (backend.Storage, error) {
	if err := b.ensureInit(); err != nil {
		return nil, err
	}

	switch {
	case dst.Type == backend.CUDA && src.Device().Type == backend.CPU:
		out, err := b.pool.Get(src.ByteLen())
		if err != nil {
			return nil, err
		}
		if err := CopyHtoD(out, src.Bytes()); err != nil {
			b.pool.Put(out)
			return nil, err
		}
		return out, nil

	case dst.Type == backend.CPU && src.Device().Type == backend.CUDA:
		cpuBackend, err := backend.Get(backend.CPU)
		if err != nil {
			return nil, err
		}
		out, err := cpuBackend.Alloc(src.ByteLen())
		if err != nil {
			return nil, err
		}
		// Drain the stream first so queued writes are visible.
		if err := b.Synchronize(); err != nil {
			out.Free()
			return nil, err
		}
		if err := CopyDtoH(out.Bytes(), src.(*Storage)); err != nil {
			out.Free()
			return nil, err
		}
		return out, nil

	case dst.Type == backend.CUDA && src.Device().Type == backend.CUDA:
		out, err := b.pool.Get(src.ByteLen())
		if err != nil {
			return nil, err
		}
		if err := CopyDtoD(out, src.(*Storage), src.ByteLen()); err != nil {
			b.pool.Put(out)
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("cuda backend cannot transfer %s -> %s", src.Device(), dst)
}

// Fill writes value into every element of dst.
// Zero goes through cuMemsetD8; other values are staged on the host.
func (b *Backend) Fill(dst backend.Storage, shape core.Shape, value float64, dtype core.DType) error {
	if err := b.ensureInit(); err != nil {
		return err
	}
	byteLen := shape.NumElements() * int(dtype.Size())
	if value == 0 {
		return check(cuMemsetD8(devPtr(dst), 0, uint64(byteLen)), "cuMemsetD8")
	}

	cpuBackend, err := backend.Get(backend.CPU)
	if err != nil {
		return err
	}
	staging, err := cpuBackend.Alloc(byteLen)
	if err != nil {
		return err
	}
	defer staging.Free()
	if err := cpuBackend.Fill(staging, shape, value, dtype); err != nil {
		return err
	}
	cs, ok := dst.(*Storage)
	if !ok {
		return fmt.Errorf("fill: destination is not cuda storage")
	}
	return CopyHtoD(cs, staging.Bytes())
}

// Close tears down the pool, stream and context.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	b.pool.FreeAll()
	cuStreamDestroy(b.stream)
	cuCtxDestroy(b.ctx)
	b.initialized = false
}
