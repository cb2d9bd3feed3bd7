// Package tensorparallel dispatches logical tensor operators over distributed tensors, choosing for
// each call the combination of local compute and collective communication that implements it.
//
// Among its features:
//
//   - A Registry mapping each operator (optypes.OpType) to its distributed Handler, with a plain
//     local fallback when no argument is distributed.
//   - Row- and column-parallel AddMM (1-D tensor parallelism), selected from the operands' specs.
//   - Elementwise operators (Gelu, Relu, Clone, Detach) that preserve the distribution of their input.
//   - Observers notified of every distributed call, e.g. Trace to record the computation graph.
//
// Process groups are never ambient: every call gets an Env with the local numeric backend and the
// communicators of the groups this process belongs to.
//
// Typical use, on every process of a group:
//
//	env, err := tensorparallel.NewEnv(backend, communicator)
//	weight, err := dtensor.FromLocal(localRows, types.NewTensorSpec(distspec.ShardAlong(tp, 0),
//		types.ParallelAction{Priority: 1, Pattern: types.TP1D, Group: tp}))
//	output, err := tensorparallel.AddMM(ctx, env, bias, activations, weight, 1, 1)
package tensorparallel

import "github.com/gomlx/tensorparallel/internal/utils"

// NormalizeIdentifier converts a name (e.g. of a process group) to a valid identifier: only letters,
// digits, and underscores are allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	return utils.NormalizeIdentifier(name)
}
