package types

import (
	"slices"
	"strings"

	"github.com/gomlx/tensorparallel/types/distspec"
)

// TensorSpec binds a distribution to zero or more ParallelAction of a logical tensor.
//
// It is a value: methods never modify it, and the With* methods return modified copies.
type TensorSpec struct {
	dist    distspec.Spec
	actions []ParallelAction
}

// NewTensorSpec returns a TensorSpec with the given distribution and actions.
// A nil dist means distspec.Default(). Actions are kept sorted by descending priority,
// preserving the given order among equal priorities.
func NewTensorSpec(dist distspec.Spec, actions ...ParallelAction) TensorSpec {
	if dist == nil {
		dist = distspec.Default()
	}
	sorted := slices.Clone(actions)
	slices.SortStableFunc(sorted, func(a, b ParallelAction) int {
		return b.Priority - a.Priority
	})
	return TensorSpec{dist: dist, actions: sorted}
}

// DefaultTensorSpec is the spec of a plain tensor: replicated over topology.Self(), no actions.
func DefaultTensorSpec() TensorSpec {
	return NewTensorSpec(distspec.Default())
}

// Distribution of the tensor.
func (ts TensorSpec) Distribution() distspec.Spec {
	if ts.dist == nil {
		return distspec.Default()
	}
	return ts.dist
}

// Actions returns a copy of the actions, ordered by descending priority.
func (ts TensorSpec) Actions() []ParallelAction {
	return slices.Clone(ts.actions)
}

// IsGathered returns whether the full value is available on every process: the distribution is
// Replicated, hence neither sharded nor pending a reduction.
func (ts TensorSpec) IsGathered() bool {
	return ts.Distribution().Kind() == distspec.KindReplicated
}

// IsRowSharded returns whether the tensor is sharded only along axis 0.
func (ts TensorSpec) IsRowSharded() bool {
	s, ok := ts.Distribution().(distspec.Sharded)
	return ok && s.IsAlong(0)
}

// IsColSharded returns whether the tensor is sharded only along its last axis.
func (ts TensorSpec) IsColSharded() bool {
	s, ok := ts.Distribution().(distspec.Sharded)
	return ok && s.IsAlong(-1)
}

// HasComputePattern returns whether any action implements the pattern.
func (ts TensorSpec) HasComputePattern(pattern ComputePattern) bool {
	_, found := ts.ActionFor(pattern)
	return found
}

// ActionFor returns the highest priority action implementing the pattern.
func (ts TensorSpec) ActionFor(pattern ComputePattern) (action ParallelAction, found bool) {
	for _, a := range ts.actions {
		if a.Pattern == pattern {
			return a, true
		}
	}
	return
}

// HasParallelSpec returns whether the tensor carries any parallel information: an action or a
// distribution other than Replicated over topology.Self().
func (ts TensorSpec) HasParallelSpec() bool {
	if len(ts.actions) > 0 {
		return true
	}
	dist := ts.Distribution()
	return dist.Kind() != distspec.KindReplicated || !dist.Group().IsSelf()
}

// WithDistribution returns a copy of the spec with the distribution replaced and the same actions.
func (ts TensorSpec) WithDistribution(dist distspec.Spec) TensorSpec {
	return NewTensorSpec(dist, ts.actions...)
}

// WithActions returns a copy of the spec with the same distribution and the given actions.
func (ts TensorSpec) WithActions(actions ...ParallelAction) TensorSpec {
	return NewTensorSpec(ts.dist, actions...)
}

// Equal returns whether both specs have equal distributions and actions.
func (ts TensorSpec) Equal(other TensorSpec) bool {
	if !ts.Distribution().Equal(other.Distribution()) {
		return false
	}
	return slices.EqualFunc(ts.actions, other.actions, ParallelAction.Equal)
}

// String implements fmt.Stringer.
func (ts TensorSpec) String() string {
	var sb strings.Builder
	sb.WriteString("TensorSpec(")
	sb.WriteString(ts.Distribution().String())
	for _, a := range ts.actions {
		sb.WriteString(", ")
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}
