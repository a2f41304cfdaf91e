// Package dnn defines the vendor DNN primitives surface the operator
// adapters program against. Implementations own opaque descriptor
// handles and a device execution context; callers only ever hold the
// handles returned here and must destroy what they create.
package dnn

// DataType tags the element layout described to the vendor library.
type DataType int32

const (
	DataFloat DataType = iota // 32-bit IEEE float
	DataHalf                  // 16-bit IEEE float, float accumulation
)

func (d DataType) String() string {
	switch d {
	case DataFloat:
		return "float"
	case DataHalf:
		return "half"
	}
	return "unknown"
}

// TensorDesc is an opaque handle describing a 4D tensor layout
// (batch, channel, height, width) plus element type.
type TensorDesc uintptr

// LRNDesc is an opaque handle encoding local response normalization
// parameters (window, alpha, beta, bias).
type LRNDesc uintptr

// Library is the vendor numeric library interface. Every call returns
// an error derived from the library's status code; a non-nil error is
// terminal for the operation that issued it.
//
// Data arguments are raw pointers in the library's address space:
// device pointers for accelerator implementations, host pointers for
// test doubles.
type Library interface {
	CreateTensorDesc() (TensorDesc, error)
	// SetTensorDesc4D describes an NCHW tensor of the given element type.
	SetTensorDesc4D(td TensorDesc, dt DataType, n, c, h, w int) error
	DestroyTensorDesc(td TensorDesc) error

	CreateLRNDesc() (LRNDesc, error)
	// SetLRNDesc encodes the normalization window and coefficients.
	SetLRNDesc(ld LRNDesc, size int, alpha, beta, bias float64) error
	DestroyLRNDesc(ld LRNDesc) error

	// LRNForward computes Y = LRN(X) across channels.
	LRNForward(ld LRNDesc, xDesc TensorDesc, x uintptr, yDesc TensorDesc, y uintptr) error

	// LRNBackward computes dX from the forward pair (X, Y) and dY.
	LRNBackward(ld LRNDesc,
		yDesc TensorDesc, y uintptr,
		dyDesc TensorDesc, dy uintptr,
		xDesc TensorDesc, x uintptr,
		dxDesc TensorDesc, dx uintptr) error
}
