package cudnn

import (
	"fmt"
	"unsafe"

	"github.com/djeday123/godnn/dnn"
)

// Blend factors for the compute calls. Both supported element kinds
// accumulate in float, so the factors are host float32 pointers.
var (
	blendOne  = float32(1)
	blendZero = float32(0)
)

// Library implements dnn.Library over cuDNN.
// One Library wraps one cudnnHandle bound to one execution stream;
// it is not safe for concurrent use.
type Library struct {
	handle cudnnHandle
}

// New creates a cuDNN handle bound to the given execution stream.
// Pass stream 0 for the default stream.
func New(stream uintptr) (*Library, error) {
	if err := initCUDNN(); err != nil {
		return nil, err
	}
	l := &Library{}
	if err := status(cudnnCreate(&l.handle), "cudnnCreate"); err != nil {
		return nil, err
	}
	if stream != 0 {
		if err := status(cudnnSetStream(l.handle, stream), "cudnnSetStream"); err != nil {
			cudnnDestroy(l.handle)
			return nil, err
		}
	}
	return l, nil
}

// Close destroys the cuDNN handle. Descriptors created through the
// library must be destroyed before calling Close.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := status(cudnnDestroy(l.handle), "cudnnDestroy")
	l.handle = 0
	return err
}

func dataTypeEnum(dt dnn.DataType) (int32, error) {
	switch dt {
	case dnn.DataFloat:
		return CUDNN_DATA_FLOAT, nil
	case dnn.DataHalf:
		return CUDNN_DATA_HALF, nil
	}
	return 0, fmt.Errorf("cudnn: no data type enum for %s", dt)
}

func (l *Library) CreateTensorDesc() (dnn.TensorDesc, error) {
	var d cudnnTensorDescriptor
	if err := status(cudnnCreateTensorDescriptor(&d), "cudnnCreateTensorDescriptor"); err != nil {
		return 0, err
	}
	return dnn.TensorDesc(d), nil
}

func (l *Library) SetTensorDesc4D(td dnn.TensorDesc, dt dnn.DataType, n, c, h, w int) error {
	enum, err := dataTypeEnum(dt)
	if err != nil {
		return err
	}
	return status(cudnnSetTensor4dDescriptor(
		cudnnTensorDescriptor(td),
		CUDNN_TENSOR_NCHW,
		enum,
		int32(n), int32(c), int32(h), int32(w),
	), "cudnnSetTensor4dDescriptor")
}

func (l *Library) DestroyTensorDesc(td dnn.TensorDesc) error {
	return status(cudnnDestroyTensorDescriptor(cudnnTensorDescriptor(td)), "cudnnDestroyTensorDescriptor")
}

func (l *Library) CreateLRNDesc() (dnn.LRNDesc, error) {
	var d cudnnLRNDescriptor
	if err := status(cudnnCreateLRNDescriptor(&d), "cudnnCreateLRNDescriptor"); err != nil {
		return 0, err
	}
	return dnn.LRNDesc(d), nil
}

func (l *Library) SetLRNDesc(ld dnn.LRNDesc, size int, alpha, beta, bias float64) error {
	// Reject out-of-range parameters here with a readable message;
	// cuDNN itself would only answer CUDNN_STATUS_BAD_PARAM.
	if size < lrnMinN || size > lrnMaxN {
		return fmt.Errorf("cudnn: lrn window %d outside [%d, %d]", size, lrnMinN, lrnMaxN)
	}
	if bias < lrnMinK {
		return fmt.Errorf("cudnn: lrn bias %g below minimum %g", bias, lrnMinK)
	}
	if beta < lrnMinBeta {
		return fmt.Errorf("cudnn: lrn beta %g below minimum %g", beta, lrnMinBeta)
	}
	return status(cudnnSetLRNDescriptor(
		cudnnLRNDescriptor(ld), uint32(size), alpha, beta, bias,
	), "cudnnSetLRNDescriptor")
}

func (l *Library) DestroyLRNDesc(ld dnn.LRNDesc) error {
	return status(cudnnDestroyLRNDescriptor(cudnnLRNDescriptor(ld)), "cudnnDestroyLRNDescriptor")
}

func (l *Library) LRNForward(ld dnn.LRNDesc, xDesc dnn.TensorDesc, x uintptr, yDesc dnn.TensorDesc, y uintptr) error {
	return status(cudnnLRNCrossChannelForward(
		l.handle,
		cudnnLRNDescriptor(ld),
		CUDNN_LRN_CROSS_CHANNEL_DIM1,
		unsafe.Pointer(&blendOne),
		cudnnTensorDescriptor(xDesc), x,
		unsafe.Pointer(&blendZero),
		cudnnTensorDescriptor(yDesc), y,
	), "cudnnLRNCrossChannelForward")
}

func (l *Library) LRNBackward(ld dnn.LRNDesc,
	yDesc dnn.TensorDesc, y uintptr,
	dyDesc dnn.TensorDesc, dy uintptr,
	xDesc dnn.TensorDesc, x uintptr,
	dxDesc dnn.TensorDesc, dx uintptr) error {
	return status(cudnnLRNCrossChannelBackward(
		l.handle,
		cudnnLRNDescriptor(ld),
		CUDNN_LRN_CROSS_CHANNEL_DIM1,
		unsafe.Pointer(&blendOne),
		cudnnTensorDescriptor(yDesc), y,
		cudnnTensorDescriptor(dyDesc), dy,
		cudnnTensorDescriptor(xDesc), x,
		unsafe.Pointer(&blendZero),
		cudnnTensorDescriptor(dxDesc), dx,
	), "cudnnLRNCrossChannelBackward")
}

// interface check
var _ dnn.Library = (*Library)(nil)
