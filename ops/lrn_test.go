package ops

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/djeday123/godnn/backend"
	_ "github.com/djeday123/godnn/backend/cpu"
	"github.com/djeday123/godnn/core"
	"github.com/djeday123/godnn/dnn"
	"github.com/djeday123/godnn/tensor"
)

// fakeLibrary implements dnn.Library against host memory, recording
// every call so tests can observe descriptor traffic. Compute calls
// copy input to output; the adapter under test never depends on the
// numerics, only on shapes, dispatch and call sequencing.
type fakeLibrary struct {
	nextHandle uintptr

	descDims map[dnn.TensorDesc][4]int
	descType map[dnn.TensorDesc]dnn.DataType

	lrnParams map[dnn.LRNDesc][4]float64

	setTensorCalls int
	forwardCalls   int
	backwardCalls  int
	liveTensor     int
	liveLRN        int

	failSetTensor error
	failForward   error
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		descDims:  make(map[dnn.TensorDesc][4]int),
		descType:  make(map[dnn.TensorDesc]dnn.DataType),
		lrnParams: make(map[dnn.LRNDesc][4]float64),
	}
}

func (f *fakeLibrary) CreateTensorDesc() (dnn.TensorDesc, error) {
	f.nextHandle++
	f.liveTensor++
	return dnn.TensorDesc(f.nextHandle), nil
}

func (f *fakeLibrary) SetTensorDesc4D(td dnn.TensorDesc, dt dnn.DataType, n, c, h, w int) error {
	if f.failSetTensor != nil {
		return f.failSetTensor
	}
	f.setTensorCalls++
	f.descDims[td] = [4]int{n, c, h, w}
	f.descType[td] = dt
	return nil
}

func (f *fakeLibrary) DestroyTensorDesc(td dnn.TensorDesc) error {
	f.liveTensor--
	return nil
}

func (f *fakeLibrary) CreateLRNDesc() (dnn.LRNDesc, error) {
	f.nextHandle++
	f.liveLRN++
	return dnn.LRNDesc(f.nextHandle), nil
}

func (f *fakeLibrary) SetLRNDesc(ld dnn.LRNDesc, size int, alpha, beta, bias float64) error {
	f.lrnParams[ld] = [4]float64{float64(size), alpha, beta, bias}
	return nil
}

func (f *fakeLibrary) DestroyLRNDesc(ld dnn.LRNDesc) error {
	f.liveLRN--
	return nil
}

func (f *fakeLibrary) elemCount(td dnn.TensorDesc) int {
	d := f.descDims[td]
	return d[0] * d[1] * d[2] * d[3]
}

func (f *fakeLibrary) copyData(desc dnn.TensorDesc, src, dst uintptr) {
	n := f.elemCount(desc)
	switch f.descType[desc] {
	case dnn.DataHalf:
		s := unsafe.Slice((*uint16)(unsafe.Pointer(src)), n)
		d := unsafe.Slice((*uint16)(unsafe.Pointer(dst)), n)
		copy(d, s)
	default:
		s := unsafe.Slice((*float32)(unsafe.Pointer(src)), n)
		d := unsafe.Slice((*float32)(unsafe.Pointer(dst)), n)
		copy(d, s)
	}
}

func (f *fakeLibrary) LRNForward(ld dnn.LRNDesc, xDesc dnn.TensorDesc, x uintptr, yDesc dnn.TensorDesc, y uintptr) error {
	if f.failForward != nil {
		return f.failForward
	}
	f.forwardCalls++
	f.copyData(xDesc, x, y)
	return nil
}

func (f *fakeLibrary) LRNBackward(ld dnn.LRNDesc,
	yDesc dnn.TensorDesc, y uintptr,
	dyDesc dnn.TensorDesc, dy uintptr,
	xDesc dnn.TensorDesc, x uintptr,
	dxDesc dnn.TensorDesc, dx uintptr) error {
	f.backwardCalls++
	f.copyData(dyDesc, dy, dx)
	return nil
}

var _ dnn.Library = (*fakeLibrary)(nil)

func lrnArgs() Arguments {
	return Arguments{"size": 5, "alpha": 0.0001, "beta": 0.75, "bias": 1.0}
}

func randInput(t *testing.T, shape core.Shape, dtype core.DType) *tensor.Tensor {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	x, err := tensor.Rand(shape, dtype, rng)
	if err != nil {
		t.Fatalf("rand input: %v", err)
	}
	return x
}

func emptyOutput(t *testing.T, dtype core.DType) *tensor.Tensor {
	t.Helper()
	y, err := tensor.Zeros(core.Shape{1}, dtype, backend.CPU0)
	if err != nil {
		t.Fatalf("output alloc: %v", err)
	}
	return y
}

func TestLRNForwardFloat32(t *testing.T) {
	lib := newFakeLibrary()
	op, err := NewLRN(lib, lrnArgs())
	if err != nil {
		t.Fatalf("NewLRN: %v", err)
	}
	defer op.Close()

	x := randInput(t, core.Shape{2, 8, 4, 4}, core.Float32)
	y := emptyOutput(t, core.Float32)
	defer x.Free()
	defer y.Free()

	if err := op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !y.Shape().Equal(x.Shape()) {
		t.Errorf("output shape %v, want %v", y.Shape(), x.Shape())
	}
	if y.DType() != core.Float32 {
		t.Errorf("output dtype %s, want float32", y.DType())
	}
	for i, v := range y.Float32s() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("output elem %d not finite: %v", i, v)
		}
	}
	if lib.forwardCalls != 1 {
		t.Errorf("forward calls = %d, want 1", lib.forwardCalls)
	}
}

func TestLRNForwardHalf(t *testing.T) {
	lib := newFakeLibrary()
	op, err := NewLRN(lib, lrnArgs())
	if err != nil {
		t.Fatalf("NewLRN: %v", err)
	}
	defer op.Close()

	x := randInput(t, core.Shape{1, 4, 2, 2}, core.Float16)
	y := emptyOutput(t, core.Float16)
	defer x.Free()
	defer y.Free()

	if err := op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !y.Shape().Equal(core.Shape{1, 4, 2, 2}) {
		t.Errorf("output shape %v, want [1 4 2 2]", y.Shape())
	}
	if got := lib.descType[op.dataDesc]; got != dnn.DataHalf {
		t.Errorf("descriptor data type %s, want half", got)
	}
	for i, h := range y.Float16s() {
		f := float64(h.Float32())
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("output elem %d not finite: %v", i, f)
		}
	}
}

func TestLRNShapeCacheHit(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRN(lib, lrnArgs())
	defer op.Close()

	x := randInput(t, core.Shape{2, 8, 4, 4}, core.Float32)
	y := emptyOutput(t, core.Float32)
	defer x.Free()
	defer y.Free()

	for i := 0; i < 2; i++ {
		if err := op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	if lib.setTensorCalls != 1 {
		t.Errorf("set tensor calls = %d, want 1 (second run must hit the shape cache)", lib.setTensorCalls)
	}
	if lib.forwardCalls != 2 {
		t.Errorf("forward calls = %d, want 2", lib.forwardCalls)
	}
}

func TestLRNShapeCacheMiss(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRN(lib, lrnArgs())
	defer op.Close()

	y := emptyOutput(t, core.Float32)
	defer y.Free()

	for _, shape := range []core.Shape{{2, 8, 4, 4}, {4, 8, 4, 4}} {
		x := randInput(t, shape, core.Float32)
		if err := op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err != nil {
			t.Fatalf("Run %v: %v", shape, err)
		}
		x.Free()
	}

	if lib.setTensorCalls != 2 {
		t.Errorf("set tensor calls = %d, want 2 (shape change must rebuild the descriptor)", lib.setTensorCalls)
	}
	if got := lib.descDims[op.dataDesc]; got != [4]int{4, 8, 4, 4} {
		t.Errorf("descriptor dims = %v, want [4 8 4 4]", got)
	}
}

func TestLRNUnsupportedType(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRN(lib, lrnArgs())
	defer op.Close()

	x, err := tensor.FromSlice([]int32{1, 2, 3, 4}, core.Shape{1, 1, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	y := emptyOutput(t, core.Int32)
	defer x.Free()
	defer y.Free()

	err = op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
	if lib.setTensorCalls != 0 || lib.forwardCalls != 0 {
		t.Errorf("vendor calls after type failure: set=%d forward=%d, want 0/0",
			lib.setTensorCalls, lib.forwardCalls)
	}
}

func TestLRNRankCheck(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRN(lib, lrnArgs())
	defer op.Close()

	x := randInput(t, core.Shape{4, 4}, core.Float32)
	y := emptyOutput(t, core.Float32)
	defer x.Free()
	defer y.Free()

	if err := op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err == nil {
		t.Error("rank-2 input should fail")
	}
	if lib.forwardCalls != 0 {
		t.Error("no compute call expected after rank failure")
	}
}

func TestLRNArity(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRN(lib, lrnArgs())
	defer op.Close()

	if err := op.Run(nil, nil); err == nil {
		t.Error("empty input/output lists should fail")
	}
}

func TestLRNVendorFailureIsFatal(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRN(lib, lrnArgs())
	defer op.Close()

	lib.failForward = errors.New("CUDNN_STATUS_EXECUTION_FAILED")

	x := randInput(t, core.Shape{2, 8, 4, 4}, core.Float32)
	y := emptyOutput(t, core.Float32)
	defer x.Free()
	defer y.Free()

	if err := op.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err == nil {
		t.Fatal("vendor failure must propagate")
	}
}

func TestNewLRNRequiresPositiveSize(t *testing.T) {
	lib := newFakeLibrary()
	if _, err := NewLRN(lib, Arguments{"alpha": 0.0001}); err == nil {
		t.Error("default size 0 should fail construction")
	}
	if _, err := NewLRN(lib, Arguments{"size": -3}); err == nil {
		t.Error("negative size should fail construction")
	}
	if lib.liveTensor != 0 || lib.liveLRN != 0 {
		t.Errorf("descriptors leaked on failed construction: tensor=%d lrn=%d",
			lib.liveTensor, lib.liveLRN)
	}
}

func TestLRNCloseDestroysDescriptors(t *testing.T) {
	lib := newFakeLibrary()
	op, err := NewLRN(lib, lrnArgs())
	if err != nil {
		t.Fatal(err)
	}
	if err := op.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if lib.liveTensor != 0 || lib.liveLRN != 0 {
		t.Errorf("descriptors still live after Close: tensor=%d lrn=%d",
			lib.liveTensor, lib.liveLRN)
	}
	// Close twice is harmless.
	if err := op.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLRNGradient(t *testing.T) {
	lib := newFakeLibrary()
	op, err := NewLRNGradient(lib, lrnArgs())
	if err != nil {
		t.Fatalf("NewLRNGradient: %v", err)
	}
	defer op.Close()

	shape := core.Shape{2, 8, 4, 4}
	x := randInput(t, shape, core.Float32)
	y := randInput(t, shape, core.Float32)
	dy := randInput(t, shape, core.Float32)
	dx := emptyOutput(t, core.Float32)
	defer x.Free()
	defer y.Free()
	defer dy.Free()
	defer dx.Free()

	if err := op.Run([]*tensor.Tensor{x, y, dy}, []*tensor.Tensor{dx}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !dx.Shape().Equal(dy.Shape()) {
		t.Errorf("dX shape %v, want %v", dx.Shape(), dy.Shape())
	}
	if lib.backwardCalls != 1 {
		t.Errorf("backward calls = %d, want 1", lib.backwardCalls)
	}
	for i, v := range dx.Float32s() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("dX elem %d not finite: %v", i, v)
		}
	}
}

func TestLRNGradientCacheKeysOffDY(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRNGradient(lib, lrnArgs())
	defer op.Close()

	dx := emptyOutput(t, core.Float32)
	defer dx.Free()

	for _, shape := range []core.Shape{{2, 8, 4, 4}, {2, 8, 4, 4}, {1, 8, 4, 4}} {
		x := randInput(t, shape, core.Float32)
		y := randInput(t, shape, core.Float32)
		dy := randInput(t, shape, core.Float32)
		if err := op.Run([]*tensor.Tensor{x, y, dy}, []*tensor.Tensor{dx}); err != nil {
			t.Fatalf("Run %v: %v", shape, err)
		}
		x.Free()
		y.Free()
		dy.Free()
	}

	if lib.setTensorCalls != 2 {
		t.Errorf("set tensor calls = %d, want 2 (repeat shape hits cache, new shape rebuilds)", lib.setTensorCalls)
	}
	if lib.backwardCalls != 3 {
		t.Errorf("backward calls = %d, want 3", lib.backwardCalls)
	}
}

func TestLRNGradientUnsupportedType(t *testing.T) {
	lib := newFakeLibrary()
	op, _ := NewLRNGradient(lib, lrnArgs())
	defer op.Close()

	mk := func() *tensor.Tensor {
		ten, err := tensor.FromSlice([]int64{1, 2, 3, 4}, core.Shape{1, 1, 2, 2})
		if err != nil {
			t.Fatal(err)
		}
		return ten
	}
	x, y, dy := mk(), mk(), mk()
	dx := emptyOutput(t, core.Int64)
	defer x.Free()
	defer y.Free()
	defer dy.Free()
	defer dx.Free()

	err := op.Run([]*tensor.Tensor{x, y, dy}, []*tensor.Tensor{dx})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
	if lib.backwardCalls != 0 {
		t.Error("no vendor call expected for unsupported dtype")
	}
}
