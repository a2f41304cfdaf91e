package ops

// Local Response Normalization, forward and gradient.
//
// Both operators are shallow adapters over the vendor DNN library: they
// own two vendor descriptors (tensor layout + normalization parameters),
// re-derive the layout descriptor lazily when the input shape changes,
// and dispatch the compute call by element type. The normalization math
// itself never runs in Go.

import (
	"errors"
	"fmt"

	"github.com/djeday123/godnn/core"
	"github.com/djeday123/godnn/dnn"
	"github.com/djeday123/godnn/tensor"
)

// ErrUnsupportedType is returned when an input tensor's element kind
// has no vendor compute path.
var ErrUnsupportedType = errors.New("unsupported input type")

// lrnBase carries the descriptor state shared by the forward and
// gradient operators.
type lrnBase struct {
	lib dnn.Library

	dataDesc dnn.TensorDesc
	normDesc dnn.LRNDesc

	// Last shape described to the vendor library. The layout
	// descriptor is rebuilt only when the observed shape differs,
	// so steady-state calls with stable shapes skip the rebuild.
	lastShape core.Shape

	size  int
	alpha float64
	beta  float64
	bias  float64
}

func newLRNBase(lib dnn.Library, args Arguments) (*lrnBase, error) {
	b := &lrnBase{
		lib:   lib,
		size:  args.Int("size", 0),
		alpha: args.Float("alpha", 0),
		beta:  args.Float("beta", 0),
		bias:  args.Float("bias", 1),
	}
	if b.size <= 0 {
		return nil, fmt.Errorf("lrn: window size must be positive, got %d", b.size)
	}

	var err error
	b.dataDesc, err = lib.CreateTensorDesc()
	if err != nil {
		return nil, fmt.Errorf("lrn: create tensor descriptor: %w", err)
	}
	b.normDesc, err = lib.CreateLRNDesc()
	if err != nil {
		lib.DestroyTensorDesc(b.dataDesc)
		return nil, fmt.Errorf("lrn: create lrn descriptor: %w", err)
	}
	if err := lib.SetLRNDesc(b.normDesc, b.size, b.alpha, b.beta, b.bias); err != nil {
		b.Close()
		return nil, fmt.Errorf("lrn: set lrn descriptor: %w", err)
	}
	return b, nil
}

// dataType maps an element kind onto the vendor compute path.
// Half data is computed with float accumulation inside the library.
func (b *lrnBase) dataType(dt core.DType) (dnn.DataType, error) {
	switch dt {
	case core.Float32:
		return dnn.DataFloat, nil
	case core.Float16:
		return dnn.DataHalf, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
	}
}

// syncDesc brings the layout descriptor in line with shape. No vendor
// call is issued when the cached shape already matches.
func (b *lrnBase) syncDesc(shape core.Shape, dt dnn.DataType) error {
	if shape.NDim() != 4 {
		return fmt.Errorf("lrn: want rank-4 NCHW input, got rank %d %v", shape.NDim(), shape)
	}
	if shape.Equal(b.lastShape) {
		return nil
	}
	if err := b.lib.SetTensorDesc4D(b.dataDesc, dt, shape[0], shape[1], shape[2], shape[3]); err != nil {
		return fmt.Errorf("lrn: set tensor descriptor: %w", err)
	}
	b.lastShape = shape.Clone()
	return nil
}

// Close destroys both vendor descriptors.
func (b *lrnBase) Close() error {
	var errs []error
	if b.dataDesc != 0 {
		if err := b.lib.DestroyTensorDesc(b.dataDesc); err != nil {
			errs = append(errs, err)
		}
		b.dataDesc = 0
	}
	if b.normDesc != 0 {
		if err := b.lib.DestroyLRNDesc(b.normDesc); err != nil {
			errs = append(errs, err)
		}
		b.normDesc = 0
	}
	return errors.Join(errs...)
}

func dataPtr(t *tensor.Tensor) uintptr {
	return uintptr(t.Storage().Ptr())
}

// LRN is the forward operator: Y = LRN(X) across channels.
// Input: X. Output: Y, resized to X's shape.
type LRN struct {
	*lrnBase
}

func NewLRN(lib dnn.Library, args Arguments) (*LRN, error) {
	base, err := newLRNBase(lib, args)
	if err != nil {
		return nil, err
	}
	return &LRN{lrnBase: base}, nil
}

func (op *LRN) Run(inputs, outputs []*tensor.Tensor) error {
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("lrn: want 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	x, y := inputs[0], outputs[0]

	if err := y.ResizeLike(x); err != nil {
		return err
	}
	dt, err := op.dataType(x.DType())
	if err != nil {
		return err
	}
	if err := op.syncDesc(x.Shape(), dt); err != nil {
		return err
	}
	return op.lib.LRNForward(op.normDesc, op.dataDesc, dataPtr(x), op.dataDesc, dataPtr(y))
}

// LRNGradient is the backward operator.
// Inputs: X, Y, dY (identical shape). Output: dX, resized to dY's shape.
// The layout cache keys off dY.
type LRNGradient struct {
	*lrnBase
}

func NewLRNGradient(lib dnn.Library, args Arguments) (*LRNGradient, error) {
	base, err := newLRNBase(lib, args)
	if err != nil {
		return nil, err
	}
	return &LRNGradient{lrnBase: base}, nil
}

func (op *LRNGradient) Run(inputs, outputs []*tensor.Tensor) error {
	if len(inputs) != 3 || len(outputs) != 1 {
		return fmt.Errorf("lrn gradient: want 3 inputs and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	x, y, dy := inputs[0], inputs[1], inputs[2]
	dx := outputs[0]

	if err := dx.ResizeLike(dy); err != nil {
		return err
	}
	dt, err := op.dataType(dy.DType())
	if err != nil {
		return err
	}
	if err := op.syncDesc(dy.Shape(), dt); err != nil {
		return err
	}
	return op.lib.LRNBackward(op.normDesc,
		op.dataDesc, dataPtr(y),
		op.dataDesc, dataPtr(dy),
		op.dataDesc, dataPtr(x),
		op.dataDesc, dataPtr(dx))
}

// RegisterLRNOperators installs the forward and gradient factories.
// Called once from the embedding program's bootstrap.
func RegisterLRNOperators(r *Registry) error {
	if err := r.Register("LRN", func(lib dnn.Library, args Arguments) (Operator, error) {
		return NewLRN(lib, args)
	}); err != nil {
		return err
	}
	return r.Register("LRNGradient", func(lib dnn.Library, args Arguments) (Operator, error) {
		return NewLRNGradient(lib, args)
	})
}
