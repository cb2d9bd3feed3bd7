package topology

import (
	"fmt"
	"slices"

	"github.com/gomlx/tensorparallel/internal/utils"
	"github.com/pkg/errors"
)

// Group is an immutable descriptor of a set of cooperating processes: the process group over which
// a tensor's distribution is defined and over which collectives run.
//
// Two Group values describe the same group if they are Equal: same name and same ranks, in the same
// order. The position of a rank in the group (see IndexOf) is what determines which shard it holds.
type Group struct {
	name  string
	ranks []int
}

// selfGroupName is the name of the trivial single-member group.
const selfGroupName = "self"

var selfGroup = &Group{name: selfGroupName}

// Self returns the trivial group with only the calling process.
// Plain (non-distributed) tensors are described as replicated over it.
func Self() *Group {
	return selfGroup
}

// NewGroup creates a group with the given name and ordered global process ranks.
func NewGroup(name string, ranks ...int) (*Group, error) {
	if name == "" || name != utils.NormalizeIdentifier(name) {
		return nil, errors.Errorf("group name %q is not a valid identifier, suggestion %q",
			name, utils.NormalizeIdentifier(name))
	}
	if name == selfGroupName {
		return nil, errors.Errorf("group name %q is reserved, use topology.Self()", name)
	}
	if len(ranks) == 0 {
		return nil, errors.Errorf("group %q must have at least one process", name)
	}
	seen := utils.MakeSet[int](len(ranks))
	for _, rank := range ranks {
		if rank < 0 {
			return nil, errors.Errorf("group %q: ranks must be non-negative, got %d", name, rank)
		}
		if seen.Has(rank) {
			return nil, errors.Errorf("group %q: process rank #%d is duplicated", name, rank)
		}
		seen.Insert(rank)
	}
	return &Group{name: name, ranks: slices.Clone(ranks)}, nil
}

// Name of the group.
func (g *Group) Name() string {
	return g.name
}

// IsSelf returns whether g is the trivial single-member group.
func (g *Group) IsSelf() bool {
	return g == nil || g.name == selfGroupName
}

// Size returns the number of processes in the group.
func (g *Group) Size() int {
	if g.IsSelf() {
		return 1
	}
	return len(g.ranks)
}

// Ranks returns a copy of the global ranks of the group members, in group order.
// It returns nil for the Self group.
func (g *Group) Ranks() []int {
	if g.IsSelf() {
		return nil
	}
	return slices.Clone(g.ranks)
}

// IndexOf returns the position of the process with the given global rank within the group.
// Any rank is at position 0 of the Self group.
func (g *Group) IndexOf(rank int) (int, error) {
	if g.IsSelf() {
		return 0, nil
	}
	idx := slices.Index(g.ranks, rank)
	if idx < 0 {
		return 0, errors.Errorf("process rank %d is not a member of %s", rank, g)
	}
	return idx, nil
}

// Equal returns whether g and other describe the same process group.
func (g *Group) Equal(other *Group) bool {
	if g.IsSelf() || other.IsSelf() {
		return g.IsSelf() && other.IsSelf()
	}
	return g.name == other.name && slices.Equal(g.ranks, other.ranks)
}

// String implements fmt.Stringer.
func (g *Group) String() string {
	if g.IsSelf() {
		return "Group(self)"
	}
	return fmt.Sprintf("Group(%s: %v)", g.name, g.ranks)
}
