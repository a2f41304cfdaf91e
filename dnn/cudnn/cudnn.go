package cudnn

// cuDNN bindings via purego.
// No cgo required — loads libcudnn.so at runtime via dlopen.
//
// We bind only the LRN slice of the API:
//   - Handle: cudnnCreate, cudnnDestroy, cudnnSetStream
//   - Tensor descriptors: create/set4d/destroy
//   - LRN descriptors: create/set/destroy
//   - Compute: cudnnLRNCrossChannelForward, cudnnLRNCrossChannelBackward

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// cudnnStatus error codes.
type cudnnStatus int32

const (
	CUDNN_STATUS_SUCCESS          cudnnStatus = 0
	CUDNN_STATUS_NOT_INITIALIZED  cudnnStatus = 1
	CUDNN_STATUS_ALLOC_FAILED     cudnnStatus = 2
	CUDNN_STATUS_BAD_PARAM        cudnnStatus = 3
	CUDNN_STATUS_INTERNAL_ERROR   cudnnStatus = 4
	CUDNN_STATUS_INVALID_VALUE    cudnnStatus = 5
	CUDNN_STATUS_ARCH_MISMATCH    cudnnStatus = 6
	CUDNN_STATUS_MAPPING_ERROR    cudnnStatus = 7
	CUDNN_STATUS_EXECUTION_FAILED cudnnStatus = 8
	CUDNN_STATUS_NOT_SUPPORTED    cudnnStatus = 9
	CUDNN_STATUS_LICENSE_ERROR    cudnnStatus = 10
)

func (s cudnnStatus) Error() string {
	names := map[cudnnStatus]string{
		0: "SUCCESS", 1: "NOT_INITIALIZED", 2: "ALLOC_FAILED",
		3: "BAD_PARAM", 4: "INTERNAL_ERROR", 5: "INVALID_VALUE",
		6: "ARCH_MISMATCH", 7: "MAPPING_ERROR", 8: "EXECUTION_FAILED",
		9: "NOT_SUPPORTED", 10: "LICENSE_ERROR",
	}
	if name, ok := names[s]; ok {
		return fmt.Sprintf("CUDNN_STATUS_%s", name)
	}
	return fmt.Sprintf("CUDNN_ERROR(%d)", s)
}

// cuDNN enums
const (
	CUDNN_TENSOR_NCHW = 0

	CUDNN_DATA_FLOAT = 0
	CUDNN_DATA_HALF  = 2

	CUDNN_LRN_CROSS_CHANNEL_DIM1 = 0
)

// LRN descriptor parameter ranges, as cuDNN documents them.
const (
	lrnMinN    = 1
	lrnMaxN    = 16
	lrnMinK    = 1e-5
	lrnMinBeta = 0.01
)

// Opaque cuDNN handles.
type (
	cudnnHandle           uintptr
	cudnnTensorDescriptor uintptr
	cudnnLRNDescriptor    uintptr
)

// ──────────────────────────────────────────────────────────
// Function pointers — populated by initCUDNN()
// ──────────────────────────────────────────────────────────

var (
	cudnnOnce sync.Once
	cudnnErr  error

	cudnnCreate    func(handle *cudnnHandle) cudnnStatus
	cudnnDestroy   func(handle cudnnHandle) cudnnStatus
	cudnnSetStream func(handle cudnnHandle, stream uintptr) cudnnStatus

	cudnnCreateTensorDescriptor func(desc *cudnnTensorDescriptor) cudnnStatus
	cudnnSetTensor4dDescriptor  func(desc cudnnTensorDescriptor, format, dataType, n, c, h, w int32) cudnnStatus
	cudnnDestroyTensorDescriptor func(desc cudnnTensorDescriptor) cudnnStatus

	cudnnCreateLRNDescriptor  func(desc *cudnnLRNDescriptor) cudnnStatus
	cudnnSetLRNDescriptor     func(desc cudnnLRNDescriptor, lrnN uint32, lrnAlpha, lrnBeta, lrnK float64) cudnnStatus
	cudnnDestroyLRNDescriptor func(desc cudnnLRNDescriptor) cudnnStatus

	cudnnLRNCrossChannelForward func(
		handle cudnnHandle,
		normDesc cudnnLRNDescriptor,
		lrnMode int32,
		alpha unsafe.Pointer,
		xDesc cudnnTensorDescriptor, x uintptr,
		beta unsafe.Pointer,
		yDesc cudnnTensorDescriptor, y uintptr,
	) cudnnStatus

	cudnnLRNCrossChannelBackward func(
		handle cudnnHandle,
		normDesc cudnnLRNDescriptor,
		lrnMode int32,
		alpha unsafe.Pointer,
		yDesc cudnnTensorDescriptor, y uintptr,
		dyDesc cudnnTensorDescriptor, dy uintptr,
		xDesc cudnnTensorDescriptor, x uintptr,
		beta unsafe.Pointer,
		dxDesc cudnnTensorDescriptor, dx uintptr,
	) cudnnStatus
)

// initCUDNN loads libcudnn.so and registers all function pointers.
func initCUDNN() error {
	cudnnOnce.Do(func() {
		var lib uintptr
		for _, name := range []string{"libcudnn.so.9", "libcudnn.so.8", "libcudnn.so"} {
			lib, cudnnErr = purego.Dlopen(name, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
			if cudnnErr == nil {
				break
			}
		}
		if cudnnErr != nil {
			cudnnErr = fmt.Errorf("cannot load libcudnn.so: %w (is cuDNN installed?)", cudnnErr)
			return
		}

		purego.RegisterLibFunc(&cudnnCreate, lib, "cudnnCreate")
		purego.RegisterLibFunc(&cudnnDestroy, lib, "cudnnDestroy")
		purego.RegisterLibFunc(&cudnnSetStream, lib, "cudnnSetStream")
		purego.RegisterLibFunc(&cudnnCreateTensorDescriptor, lib, "cudnnCreateTensorDescriptor")
		purego.RegisterLibFunc(&cudnnSetTensor4dDescriptor, lib, "cudnnSetTensor4dDescriptor")
		purego.RegisterLibFunc(&cudnnDestroyTensorDescriptor, lib, "cudnnDestroyTensorDescriptor")
		purego.RegisterLibFunc(&cudnnCreateLRNDescriptor, lib, "cudnnCreateLRNDescriptor")
		purego.RegisterLibFunc(&cudnnSetLRNDescriptor, lib, "cudnnSetLRNDescriptor")
		purego.RegisterLibFunc(&cudnnDestroyLRNDescriptor, lib, "cudnnDestroyLRNDescriptor")
		purego.RegisterLibFunc(&cudnnLRNCrossChannelForward, lib, "cudnnLRNCrossChannelForward")
		purego.RegisterLibFunc(&cudnnLRNCrossChannelBackward, lib, "cudnnLRNCrossChannelBackward")
	})
	return cudnnErr
}

func status(s cudnnStatus, op string) error {
	if s != CUDNN_STATUS_SUCCESS {
		return fmt.Errorf("%s: %s", op, s.Error())
	}
	return nil
}
