// Package topology describes how the cooperating processes are organized: a Mesh of processes
// with named axes, and the process Groups collectives run over.
package topology

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tensorparallel/internal/utils"
	"github.com/pkg/errors"
)

// Mesh defines the logical topology of a set of processes.
//
// Processes are identified by their global rank. A Mesh arranges them along one or more named axes
// (e.g. {"data": 2, "model": 4}), and process groups for collectives are derived from those axes.
type Mesh struct {
	name string

	// axesNames are the names of the mesh axes.
	axesNames []string

	// axesSizes defines the number of processes along each mesh axis.
	axesSizes []int

	// nameToAxis maps axis names to their index.
	nameToAxis map[string]int

	// numProcesses is the total number of processes in the mesh.
	numProcesses int

	// rankAssignment is the list of global process ranks, in the order they appear in the mesh.
	// If nil, the mapping is sequential: mesh position i is rank i.
	rankAssignment []int
}

// NewMesh creates a new logical topology of a set of processes.
//
//   - name: the name of the mesh, it must be a valid identifier (see utils.NormalizeIdentifier).
//   - axesSizes: the number of processes along each mesh axis, one value per axis.
//   - axesNames: the names of the mesh axes, one value per axis. They must also be valid identifiers.
//
// The default mapping of process ranks to the mesh is sequential, starting from 0, but it can be
// changed with Mesh.SetRankAssignment.
func NewMesh(name string, axesSizes []int, axesNames []string) (*Mesh, error) {
	if len(axesSizes) != len(axesNames) {
		return nil, errors.Errorf("axesSizes and axesNames must have the same length, got %d and %d",
			len(axesSizes), len(axesNames))
	}
	if len(axesSizes) == 0 {
		return nil, errors.New("Mesh axesSizes cannot be empty")
	}
	if name != utils.NormalizeIdentifier(name) {
		return nil, errors.Errorf("Mesh name %q is not a valid identifier, suggestion %q",
			name, utils.NormalizeIdentifier(name))
	}

	numProcesses := 1
	nameToAxis := make(map[string]int, len(axesSizes))
	for i, axisName := range axesNames {
		if axisName == "" {
			return nil, errors.Errorf("Mesh axis name at index %d cannot be empty", i)
		}
		if axisName != utils.NormalizeIdentifier(axisName) {
			return nil, errors.Errorf("Mesh axis name %q at index %d is not a valid identifier, suggestion %q",
				axisName, i, utils.NormalizeIdentifier(axisName))
		}
		if _, found := nameToAxis[axisName]; found {
			return nil, errors.Errorf("Mesh axis name %q is duplicated", axisName)
		}
		if axesSizes[i] <= 0 {
			return nil, errors.Errorf("Mesh axis %q must have a positive size, got %d", axisName, axesSizes[i])
		}
		nameToAxis[axisName] = i
		numProcesses *= axesSizes[i]
	}

	return &Mesh{
		name:         name,
		axesNames:    slices.Clone(axesNames),
		axesSizes:    slices.Clone(axesSizes),
		nameToAxis:   nameToAxis,
		numProcesses: numProcesses,
	}, nil
}

// Name of the mesh.
func (m *Mesh) Name() string {
	return m.name
}

// NumProcesses returns the total number of processes in the mesh.
func (m *Mesh) NumProcesses() int {
	return m.numProcesses
}

// NumAxes returns the number of axes in the mesh.
func (m *Mesh) NumAxes() int {
	return len(m.axesSizes)
}

// AxesNames returns a copy of the mesh's axis names.
func (m *Mesh) AxesNames() []string {
	return slices.Clone(m.axesNames)
}

// AxesSizes returns a copy of the mesh's axes sizes.
func (m *Mesh) AxesSizes() []int {
	return slices.Clone(m.axesSizes)
}

// AxisSize returns the number of processes along the given mesh axis.
func (m *Mesh) AxisSize(axisName string) (int, error) {
	idx, found := m.nameToAxis[axisName]
	if !found {
		return 0, errors.Errorf("mesh axis %q not found", axisName)
	}
	return m.axesSizes[idx], nil
}

// String implements the fmt.Stringer interface.
func (m *Mesh) String() string {
	var sb strings.Builder
	sb.WriteString("Mesh(axes={")
	for i, name := range m.axesNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "%s: %d", name, m.axesSizes[i])
	}
	sb.WriteString("})")
	return sb.String()
}

// SetRankAssignment sets which global process rank sits at each position of the mesh.
//
// The number of ranks must be equal to NumProcesses(), and ranks must be unique and non-negative.
// Calling it with no ranks resets the mapping to sequential.
func (m *Mesh) SetRankAssignment(ranks ...int) error {
	if len(ranks) == 0 {
		m.rankAssignment = nil
		return nil
	}
	if len(ranks) != m.numProcesses {
		return errors.Errorf("ranks must have %d elements, got %d", m.numProcesses, len(ranks))
	}
	seen := utils.MakeSet[int](m.numProcesses)
	for _, rank := range ranks {
		if rank < 0 {
			return errors.Errorf("ranks must be non-negative, got %d", rank)
		}
		if seen.Has(rank) {
			return errors.Errorf("process rank #%d is duplicated in assignment", rank)
		}
		seen.Insert(rank)
	}
	m.rankAssignment = slices.Clone(ranks)
	return nil
}

// rankAt returns the global rank of the process at the flat mesh position.
func (m *Mesh) rankAt(flatIdx int) int {
	if m.rankAssignment == nil {
		return flatIdx
	}
	return m.rankAssignment[flatIdx]
}

// RankToMesh returns the flat mesh position of the process with the given global rank, and its
// index along each mesh axis.
func (m *Mesh) RankToMesh(rank int) (flatIdx int, axisIndices []int, err error) {
	flatIdx = -1
	if m.rankAssignment == nil {
		if rank >= 0 && rank < m.numProcesses {
			flatIdx = rank
		}
	} else {
		flatIdx = slices.Index(m.rankAssignment, rank)
	}
	if flatIdx < 0 {
		return 0, nil, errors.Errorf("process rank %d is not part of the mesh %s", rank, m)
	}
	axisIndices = make([]int, len(m.axesSizes))
	remaining := flatIdx
	for i := len(m.axesSizes) - 1; i >= 0; i-- {
		axisIndices[i] = remaining % m.axesSizes[i]
		remaining /= m.axesSizes[i]
	}
	return flatIdx, axisIndices, nil
}

// ComputeProcessGroups returns the process groups participating in a collective operation
// performed along the given mesh axes.
//
// Each group (a []int) lists the global ranks of the processes along the given axes. The other
// axes split the processes into different groups.
//
// Example:
//
//	m, _ := NewMesh("mesh", []int{2, 2}, []string{"data", "model"})
//	dataGroups, _ := m.ComputeProcessGroups([]string{"data"})            // -> [][]int{{0, 2}, {1, 3}}
//	modelGroups, _ := m.ComputeProcessGroups([]string{"model"})          // -> [][]int{{0, 1}, {2, 3}}
//	globalGroups, _ := m.ComputeProcessGroups([]string{"data", "model"}) // -> [][]int{{0, 1, 2, 3}}
func (m *Mesh) ComputeProcessGroups(axes []string) ([][]int, error) {
	axisIndices := make([]int, 0, len(axes))
	axisSet := utils.MakeSet[int](len(axes))
	for _, axis := range axes {
		idx, found := m.nameToAxis[axis]
		if !found {
			return nil, errors.Errorf("axis %q not found in mesh", axis)
		}
		if axisSet.Has(idx) {
			return nil, errors.Errorf("axis %q is duplicated: each axis can only appear once", axis)
		}
		axisIndices = append(axisIndices, idx)
		axisSet.Insert(idx)
	}

	nonAxisIndices := make([]int, 0, len(m.axesSizes)-len(axisIndices))
	for i := range m.axesSizes {
		if !axisSet.Has(i) {
			nonAxisIndices = append(nonAxisIndices, i)
		}
	}

	groupSize := 1
	for _, idx := range axisIndices {
		groupSize *= m.axesSizes[idx]
	}
	numGroups := m.numProcesses / groupSize
	groups := make([][]int, numGroups)
	for i := range groups {
		groups[i] = make([]int, groupSize)
	}

	indices := make([]int, len(m.axesSizes))
	for flatIdx := 0; flatIdx < m.numProcesses; flatIdx++ {
		remaining := flatIdx
		for i := len(m.axesSizes) - 1; i >= 0; i-- {
			indices[i] = remaining % m.axesSizes[i]
			remaining /= m.axesSizes[i]
		}

		// Group index from the non-axis indices.
		groupIdx, multiplier := 0, 1
		for i := len(nonAxisIndices) - 1; i >= 0; i-- {
			axisIdx := nonAxisIndices[i]
			groupIdx += indices[axisIdx] * multiplier
			multiplier *= m.axesSizes[axisIdx]
		}

		// Position within the group from the axis indices.
		posInGroup := 0
		multiplier = 1
		for i := len(axisIndices) - 1; i >= 0; i-- {
			axisIdx := axisIndices[i]
			posInGroup += indices[axisIdx] * multiplier
			multiplier *= m.axesSizes[axisIdx]
		}

		groups[groupIdx][posInGroup] = m.rankAt(flatIdx)
	}
	return groups, nil
}

// GroupFor returns the process group, along the given mesh axes, that includes the process with
// the given global rank.
//
// The group is named after the mesh, the axes and the group index, so every member of the group
// builds an equal Group independently.
func (m *Mesh) GroupFor(rank int, axes ...string) (*Group, error) {
	groups, err := m.ComputeProcessGroups(axes)
	if err != nil {
		return nil, err
	}
	for groupIdx, ranks := range groups {
		if slices.Contains(ranks, rank) {
			name := fmt.Sprintf("%s_%s_%d", m.name, strings.Join(axes, "_"), groupIdx)
			return NewGroup(name, ranks...)
		}
	}
	return nil, errors.Errorf("process rank %d is not part of the mesh %s", rank, m)
}
