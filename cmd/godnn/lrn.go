package main

// godnn lrn — run the cuDNN-backed LRN operators on a real device.
// Useful as a smoke test and a rough benchmark; needs an NVIDIA GPU
// with cuDNN installed.

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/djeday123/godnn/backend"
	_ "github.com/djeday123/godnn/backend/cpu"
	"github.com/djeday123/godnn/backend/cuda"
	"github.com/djeday123/godnn/core"
	"github.com/djeday123/godnn/dnn/cudnn"
	"github.com/djeday123/godnn/ops"
	"github.com/djeday123/godnn/tensor"
)

type lrnFlags struct {
	size     int
	alpha    float64
	beta     float64
	bias     float64
	shape    string
	dtype    string
	iters    int
	input    string
	backward bool
	seed     int64
}

func newLRNCmd() *cobra.Command {
	var f lrnFlags
	cmd := &cobra.Command{
		Use:   "lrn",
		Short: "Run LRN forward (and optionally backward) on the GPU",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLRN(&f)
		},
	}
	cmd.Flags().IntVar(&f.size, "size", 5, "normalization window size")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0.0001, "scale factor")
	cmd.Flags().Float64Var(&f.beta, "beta", 0.75, "exponent")
	cmd.Flags().Float64Var(&f.bias, "bias", 1.0, "additive bias")
	cmd.Flags().StringVar(&f.shape, "shape", "2,8,4,4", "input shape N,C,H,W")
	cmd.Flags().StringVar(&f.dtype, "dtype", "float32", "element type: float32 or float16")
	cmd.Flags().IntVar(&f.iters, "iters", 100, "timed iterations")
	cmd.Flags().StringVar(&f.input, "input", "", "raw input file (little-endian, no header); random when empty")
	cmd.Flags().BoolVar(&f.backward, "backward", false, "also run the gradient operator")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "rng seed for random input")
	return cmd
}

func parseShape(s string) (core.Shape, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("shape %q: want 4 comma-separated dims (N,C,H,W)", s)
	}
	shape := make(core.Shape, 4)
	for i, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("shape %q: bad dim %q", s, p)
		}
		shape[i] = d
	}
	return shape, nil
}

func parseDType(s string) (core.DType, error) {
	switch s {
	case "float32", "f32":
		return core.Float32, nil
	case "float16", "f16", "half":
		return core.Float16, nil
	}
	return 0, fmt.Errorf("dtype %q: want float32 or float16", s)
}

func runLRN(f *lrnFlags) error {
	runtime.LockOSThread()

	shape, err := parseShape(f.shape)
	if err != nil {
		return err
	}
	dtype, err := parseDType(f.dtype)
	if err != nil {
		return err
	}

	// Host input.
	var host *tensor.Tensor
	if f.input != "" {
		host, err = tensor.LoadRaw(f.input, shape, dtype)
	} else {
		host, err = tensor.Rand(shape, dtype, rand.New(rand.NewSource(f.seed)))
	}
	if err != nil {
		return err
	}
	defer host.Free()

	// Device and vendor library.
	bk, err := backend.Get(backend.CUDA)
	if err != nil {
		return fmt.Errorf("cuda backend unavailable: %w", err)
	}
	cb, ok := bk.(*cuda.Backend)
	if !ok {
		return fmt.Errorf("unexpected cuda backend implementation %T", bk)
	}
	stream, err := cb.Stream()
	if err != nil {
		return err
	}
	lib, err := cudnn.New(stream)
	if err != nil {
		return err
	}
	defer lib.Close()

	// Operator bootstrap.
	registry := ops.NewRegistry()
	if err := ops.RegisterLRNOperators(registry); err != nil {
		return err
	}
	args := ops.Arguments{"size": float64(f.size), "alpha": f.alpha, "beta": f.beta, "bias": f.bias}

	x, err := host.To(backend.CUDADevice(0))
	if err != nil {
		return err
	}
	defer x.Free()
	y, err := tensor.New(shape, dtype, backend.CUDADevice(0))
	if err != nil {
		return err
	}
	defer y.Free()

	fwd, err := registry.Create("LRN", lib, args)
	if err != nil {
		return err
	}
	defer fwd.Close()

	// Warmup builds the layout descriptor; timed runs hit the cache.
	if err := fwd.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err != nil {
		return err
	}
	start := time.Now()
	for i := 0; i < f.iters; i++ {
		if err := fwd.Run([]*tensor.Tensor{x}, []*tensor.Tensor{y}); err != nil {
			return err
		}
	}
	if err := cb.Synchronize(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	sum, finite, err := checksum(y)
	if err != nil {
		return err
	}
	fmt.Printf("LRN forward %v %s: %d iters in %v (%.1f µs/iter), checksum %.6g, finite=%v\n",
		shape, dtype, f.iters, elapsed, float64(elapsed.Microseconds())/float64(f.iters), sum, finite)

	if !f.backward {
		return nil
	}

	dyHost, err := tensor.Rand(shape, dtype, rand.New(rand.NewSource(f.seed+1)))
	if err != nil {
		return err
	}
	defer dyHost.Free()
	dy, err := dyHost.To(backend.CUDADevice(0))
	if err != nil {
		return err
	}
	defer dy.Free()
	dx, err := tensor.New(shape, dtype, backend.CUDADevice(0))
	if err != nil {
		return err
	}
	defer dx.Free()

	bwd, err := registry.Create("LRNGradient", lib, args)
	if err != nil {
		return err
	}
	defer bwd.Close()

	if err := bwd.Run([]*tensor.Tensor{x, y, dy}, []*tensor.Tensor{dx}); err != nil {
		return err
	}
	start = time.Now()
	for i := 0; i < f.iters; i++ {
		if err := bwd.Run([]*tensor.Tensor{x, y, dy}, []*tensor.Tensor{dx}); err != nil {
			return err
		}
	}
	if err := cb.Synchronize(); err != nil {
		return err
	}
	elapsed = time.Since(start)

	sum, finite, err = checksum(dx)
	if err != nil {
		return err
	}
	fmt.Printf("LRN backward %v %s: %d iters in %v (%.1f µs/iter), checksum %.6g, finite=%v\n",
		shape, dtype, f.iters, elapsed, float64(elapsed.Microseconds())/float64(f.iters), sum, finite)
	return nil
}

// checksum copies a device tensor back to the host and reduces it.
func checksum(t *tensor.Tensor) (float64, bool, error) {
	host, err := t.To(backend.CPU0)
	if err != nil {
		return 0, false, err
	}
	defer host.Free()

	sum := 0.0
	finite := true
	switch host.DType() {
	case core.Float32:
		for _, v := range host.Float32s() {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				finite = false
			}
			sum += f
		}
	case core.Float16:
		for _, h := range host.Float16s() {
			f := float64(h.Float32())
			if math.IsNaN(f) || math.IsInf(f, 0) {
				finite = false
			}
			sum += f
		}
	default:
		return 0, false, fmt.Errorf("checksum: unsupported dtype %s", host.DType())
	}
	return sum, finite, nil
}
