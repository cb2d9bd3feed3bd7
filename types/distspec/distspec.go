// Package distspec defines how a logical tensor's data is laid out across a process group.
//
// A distribution Spec is one of three kinds:
//
//   - Replicated: the full data is duplicated on every process of the group.
//   - Sharded: the data is partitioned along one or more axes, one block per process.
//   - Partial: every process holds an un-reduced contribution; the logical value is their sum.
//
// Spec is a closed union: consumers handle every kind with Match, so adding a kind changes Match's
// signature and every consumer fails to compile until it is handled.
package distspec

import (
	"fmt"

	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
)

// Kind of distribution.
type Kind int

//go:generate go tool enumer -type=Kind -trimprefix=Kind -output=gen_kind_enumer.go distspec.go

const (
	KindReplicated Kind = iota
	KindSharded
	KindPartial
)

// Spec describes the distribution of one tensor over a process group.
// It is implemented only by Replicated, Sharded and Partial.
type Spec interface {
	// Kind of the distribution.
	Kind() Kind

	// Group over which the tensor is distributed. Never nil: topology.Self() for plain tensors.
	Group() *topology.Group

	// Equal returns whether both specs describe the same distribution.
	Equal(other Spec) bool

	// Validate checks the spec is internally consistent.
	Validate() error

	fmt.Stringer

	isSpec()
}

// Match calls the function for the kind of s and returns its result.
func Match[T any](s Spec, onReplicated func(Replicated) T, onSharded func(Sharded) T, onPartial func(Partial) T) T {
	switch v := s.(type) {
	case Replicated:
		return onReplicated(v)
	case Sharded:
		return onSharded(v)
	case Partial:
		return onPartial(v)
	}
	panic(errors.Errorf("distspec.Match: unknown Spec implementation %T", s))
}

func orSelf(g *topology.Group) *topology.Group {
	if g == nil {
		return topology.Self()
	}
	return g
}

// Replicated distribution: full data duplicated on every process of the group.
type Replicated struct {
	group *topology.Group
}

var _ Spec = Replicated{}

// Replicate returns the Replicated distribution over g. A nil g means topology.Self().
func Replicate(g *topology.Group) Replicated {
	return Replicated{group: orSelf(g)}
}

// Default returns the distribution of a plain tensor: replicated over the trivial Self group.
func Default() Replicated {
	return Replicate(topology.Self())
}

func (Replicated) isSpec() {}

// Kind implements Spec.
func (Replicated) Kind() Kind { return KindReplicated }

// Group implements Spec.
func (r Replicated) Group() *topology.Group { return orSelf(r.group) }

// Validate implements Spec.
func (r Replicated) Validate() error { return nil }

// Equal implements Spec.
func (r Replicated) Equal(other Spec) bool {
	o, ok := other.(Replicated)
	return ok && r.Group().Equal(o.Group())
}

// String implements fmt.Stringer.
func (r Replicated) String() string {
	return fmt.Sprintf("Replicated(%s)", r.Group().Name())
}

// Partial distribution: each process holds an un-reduced contribution and the logical value is
// the sum over the group. It must be reduced before it can be used as a value.
type Partial struct {
	group *topology.Group
}

var _ Spec = Partial{}

// PartialSum returns the Partial distribution over g. A nil g means topology.Self().
func PartialSum(g *topology.Group) Partial {
	return Partial{group: orSelf(g)}
}

func (Partial) isSpec() {}

// Kind implements Spec.
func (Partial) Kind() Kind { return KindPartial }

// Group implements Spec.
func (p Partial) Group() *topology.Group { return orSelf(p.group) }

// Validate implements Spec.
func (p Partial) Validate() error { return nil }

// Equal implements Spec.
func (p Partial) Equal(other Spec) bool {
	o, ok := other.(Partial)
	return ok && p.Group().Equal(o.Group())
}

// String implements fmt.Stringer.
func (p Partial) String() string {
	return fmt.Sprintf("Partial(%s)", p.Group().Name())
}
