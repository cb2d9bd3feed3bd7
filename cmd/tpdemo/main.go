// tpdemo runs AddMM with row-parallel and column-parallel weights over an in-process world, and
// compares the results with the dense computation.
//
// Example:
//
//	go run ./cmd/tpdemo -size=4 -m=8 -k=16 -n=12 -mode=both -gather -v=1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorparallel"
	"github.com/gomlx/tensorparallel/backends"
	_ "github.com/gomlx/tensorparallel/backends/cpu"
	"github.com/gomlx/tensorparallel/comm/local"
	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/internal/utils"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types"
	"github.com/gomlx/tensorparallel/types/distspec"
	"github.com/gomlx/tensorparallel/types/optypes"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagSize      = flag.Int("size", 2, "Number of processes in each tensor-parallel group.")
	flagReplicas  = flag.Int("replicas", 1, "Number of tensor-parallel groups: the world has -replicas x -size processes.")
	flagM         = flag.Int("m", 4, "Rows of mat1.")
	flagK         = flag.Int("k", 8, "Columns of mat1, rows of mat2. Must be divisible by -size for the row mode.")
	flagN         = flag.Int("n", 6, "Columns of mat2. Must be divisible by -size for the col mode.")
	flagMode      = flag.String("mode", "both", "Parallel mode to run: row, col or both.")
	flagGather    = flag.Bool("gather", false, "Gather the output of the column-parallel mode.")
	flagDType     = flag.String("dtype", "float32", "DType of the operands: float64, float32 or float16.")
	flagBeta      = flag.Float64("beta", 1, "Scale of the input.")
	flagAlpha     = flag.Float64("alpha", 1, "Scale of mat1 @ mat2.")
	flagTolerance = flag.Float64("tolerance", 1e-3, "Maximum difference to the dense result.")
	flagTrace     = flag.Bool("trace", false, "Print the dispatched calls of rank 0.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	dtype := must.M1(utils.ParseFloatDType(*flagDType))
	backend := must.M1(backends.New())
	klog.Infof("backend: %s", backend.Description())

	var modes []tensorparallel.AddMMMode
	switch *flagMode {
	case "both":
		modes = []tensorparallel.AddMMMode{tensorparallel.AddMMRow, tensorparallel.AddMMCol}
	default:
		modes = []tensorparallel.AddMMMode{must.M1(tensorparallel.AddMMModeString(*flagMode))}
	}

	for _, mode := range modes {
		trace := tensorparallel.NewTrace()
		if err := run(backend, dtype, mode, trace); err != nil {
			klog.Errorf("%s: %+v", mode, err)
			os.Exit(1)
		}
		if *flagTrace {
			fmt.Print(trace)
		}
	}
}

// operands creates the full operands for mode, with the same values on every process.
func operands(dtype dtypes.DType, mode tensorparallel.AddMMMode) (input, mat1, mat2 *tensor.Tensor, err error) {
	m, k, n := *flagM, *flagK, *flagN
	inputDims := []int{m, n}
	if mode == tensorparallel.AddMMCol {
		inputDims = []int{n}
	}
	if input, err = sequence(dtype, 1, inputDims...); err != nil {
		return
	}
	if mat1, err = sequence(dtype, 2, m, k); err != nil {
		return
	}
	mat2, err = sequence(dtype, 3, k, n)
	return
}

func sequence(dtype dtypes.DType, seed int, dims ...int) (*tensor.Tensor, error) {
	size := 1
	for _, d := range dims {
		size *= d
	}
	flat := make([]float64, size)
	for i := range flat {
		flat[i] = float64((i*seed+1)%13-6) / 8
	}
	return tensor.FromFlat(dtype, flat, dims...)
}

// run computes AddMM in mode over a world of -replicas x -size processes, laid out in a mesh with
// axes "dp" and "tp". Each "tp" group computes the same AddMM. The calls of rank 0 are recorded in trace.
func run(backend backends.Backend, dtype dtypes.DType, mode tensorparallel.AddMMMode, trace *tensorparallel.Trace) error {
	input, mat1, mat2, err := operands(dtype, mode)
	if err != nil {
		return err
	}
	want, err := backend.AddMM(input, mat1, mat2, *flagBeta, *flagAlpha)
	if err != nil {
		return err
	}

	mesh, err := topology.NewMesh("mesh", []int{*flagReplicas, *flagSize}, []string{"dp", "tp"})
	if err != nil {
		return err
	}
	world, err := local.NewWorld(mesh.NumProcesses())
	if err != nil {
		return err
	}
	outputs := make([]*dtensor.Tensor, world.Size())
	positions := make([]int, world.Size())
	err = world.Run(context.Background(), func(ctx context.Context, rank int) error {
		tp, err := mesh.GroupFor(rank, "tp")
		if err != nil {
			return err
		}
		if positions[rank], err = tp.IndexOf(rank); err != nil {
			return err
		}
		c, err := world.Communicator(tp, rank)
		if err != nil {
			return err
		}
		env, err := tensorparallel.NewEnv(backend, c)
		if err != nil {
			return err
		}
		x, weight, err := distribute(input, mat2, tp, mode, positions[rank])
		if err != nil {
			return err
		}
		registry := tensorparallel.NewRegistry()
		tensorparallel.RegisterDefaults(registry)
		if rank == 0 {
			registry.AddObserver(trace)
		}
		result, err := registry.Dispatch(ctx, env, optypes.AddMM, []any{x, mat1, weight},
			map[string]any{"beta": *flagBeta, "alpha": *flagAlpha})
		if err != nil {
			return err
		}
		var ok bool
		if outputs[rank], ok = result.(*dtensor.Tensor); !ok {
			return errors.Errorf("addmm returned %T", result)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for rank, output := range outputs {
		expected := want
		if !output.Spec().IsGathered() {
			if expected, err = want.Chunk(-1, *flagSize, positions[rank]); err != nil {
				return err
			}
		}
		if !tensor.InDelta(expected, output.Local(), *flagTolerance) {
			return errors.Errorf("rank #%d: result %s differs from the dense %s", rank, output.Local(), expected)
		}
		klog.V(1).Infof("%s, rank #%d: %s", mode, rank, output)
	}
	fmt.Printf("%s: %s, output %s, %d collectives (%d all-reduce, %d all-gather): ok\n",
		mode, mesh, outputs[0].Spec(), world.NumCollectives(), world.NumAllReduce(), world.NumAllGather())
	return nil
}

// distribute returns the input and mat2 operands of the process at position pos of tp for mode.
func distribute(input, mat2 *tensor.Tensor, tp *topology.Group, mode tensorparallel.AddMMMode, pos int) (x, weight *dtensor.Tensor, err error) {
	size := tp.Size()
	action := types.ParallelAction{Priority: 1, Pattern: types.TP1D, Group: tp, GatherOutput: *flagGather}
	switch mode {
	case tensorparallel.AddMMRow:
		x = dtensor.FromPlain(input)
		var block *tensor.Tensor
		if block, err = mat2.Chunk(0, size, pos); err != nil {
			return
		}
		weight, err = dtensor.FromLocal(block, types.NewTensorSpec(distspec.ShardAlong(tp, 0), action))
	case tensorparallel.AddMMCol:
		var block *tensor.Tensor
		if block, err = input.Chunk(-1, size, pos); err != nil {
			return
		}
		if x, err = dtensor.FromLocal(block, types.NewTensorSpec(distspec.ShardAlong(tp, -1))); err != nil {
			return
		}
		if block, err = mat2.Chunk(-1, size, pos); err != nil {
			return
		}
		weight, err = dtensor.FromLocal(block, types.NewTensorSpec(distspec.ShardAlong(tp, -1), action))
	default:
		err = errors.Errorf("mode %s has no parallel operands", mode)
	}
	return
}
