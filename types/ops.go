// Package types defines the parallel metadata attached to distributed tensors: the ComputePattern
// of a strategy, ParallelAction and TensorSpec.
package types

import (
	"fmt"

	"github.com/gomlx/tensorparallel/types/topology"
)

// ComputePattern enum names a parallelization strategy.
type ComputePattern int

//go:generate go tool enumer -type=ComputePattern -output=gen_computepattern_enumer.go ops.go

const (
	// NoPattern is the zero value: no parallelization strategy.
	NoPattern ComputePattern = iota

	// TP1D is 1-D tensor parallelism: a weight is split along a single axis over one group.
	TP1D

	// TP2D, TP2P5D and TP3D are reserved for composed strategies, no operator implements them yet.
	TP2D
	TP2P5D
	TP3D
)

// ParallelAction selects a ComputePattern for a tensor and carries what is needed to execute it.
type ParallelAction struct {
	// Priority orders resolution when more than one action matches: higher values win.
	Priority int

	// Pattern of the strategy.
	Pattern ComputePattern

	// Group over which the strategy runs. A nil Group means topology.Self().
	Group *topology.Group

	// GatherOutput requests that the output be redistributed to Replicated before returning.
	GatherOutput bool
}

// ProcessGroup returns the action's group, topology.Self() if none was set.
func (a ParallelAction) ProcessGroup() *topology.Group {
	if a.Group == nil {
		return topology.Self()
	}
	return a.Group
}

// Equal returns whether both actions are the same.
func (a ParallelAction) Equal(other ParallelAction) bool {
	return a.Priority == other.Priority && a.Pattern == other.Pattern &&
		a.GatherOutput == other.GatherOutput && a.ProcessGroup().Equal(other.ProcessGroup())
}

// String implements fmt.Stringer.
func (a ParallelAction) String() string {
	s := fmt.Sprintf("%s(priority=%d, group=%s", a.Pattern, a.Priority, a.ProcessGroup().Name())
	if a.GatherOutput {
		s += ", gather_output"
	}
	return s + ")"
}
