package local

import (
	"context"
	"fmt"

	"github.com/gomlx/tensorparallel/shapeinference"
	"github.com/gomlx/tensorparallel/tensor"
	"github.com/gomlx/tensorparallel/types/shapes"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

type collectiveKind int

const (
	allReduceSum collectiveKind = iota
	allGather
)

func (k collectiveKind) String() string {
	switch k {
	case allReduceSum:
		return "AllReduceSum"
	case allGather:
		return "AllGather"
	}
	return fmt.Sprintf("collectiveKind(%d)", int(k))
}

// request is what one participant contributes to a round.
type request struct {
	kind  collectiveKind
	axis  int
	local *tensor.Tensor
}

func (r request) String() string {
	if r.kind == allGather {
		return fmt.Sprintf("%s(axis=%d)", r.kind, r.axis)
	}
	return r.kind.String()
}

// round is one collective being assembled by the members of a group.
type round struct {
	kind    collectiveKind
	axis    int
	inputs  []*tensor.Tensor
	arrived int

	done   chan struct{}
	closed bool
	output *tensor.Tensor
	err    error
}

// hub synchronizes the collectives of one group.
type hub struct {
	world *World
	group *topology.Group

	// current round, protected by world.mu.
	current *round
}

// finishLocked releases the participants of r with the given result. world.mu must be held.
func (r *round) finishLocked(output *tensor.Tensor, err error) {
	if r.closed {
		return
	}
	r.output, r.err = output, err
	r.closed = true
	close(r.done)
}

// join contributes req from the member at position pos and blocks until the round completes.
func (h *hub) join(ctx context.Context, pos int, req request) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s on %s canceled before starting", req, h.group)
	}
	size := h.group.Size()
	mu := &h.world.mu

	mu.Lock()
	r := h.current
	if r == nil {
		r = &round{kind: req.kind, axis: req.axis, inputs: make([]*tensor.Tensor, size), done: make(chan struct{})}
		h.current = r
	}
	if r.inputs[pos] != nil {
		mu.Unlock()
		return nil, errors.Errorf("%s on %s: member #%d entered a new collective before the previous one completed",
			req, h.group, pos)
	}
	r.inputs[pos] = req.local
	r.arrived++
	if r.kind != req.kind || r.axis != req.axis {
		r.finishLocked(nil, errors.Errorf("collective mismatch on %s: member #%d called %s while the round is %s",
			h.group, pos, req, request{kind: r.kind, axis: r.axis}))
	}
	if r.arrived == size {
		h.current = nil
		if !r.closed {
			output, err := h.compute(r)
			r.finishLocked(output, err)
		}
	}
	mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		mu.Lock()
		r.finishLocked(nil, errors.Wrapf(ctx.Err(), "%s on %s aborted by member #%d", req, h.group, pos))
		mu.Unlock()
	}
	return r.output, r.err
}

// compute the result of a complete round. Inputs are combined in group order, so every member
// receives the same result.
func (h *hub) compute(r *round) (*tensor.Tensor, error) {
	inputShapes := make([]shapes.Shape, len(r.inputs))
	for i, t := range r.inputs {
		inputShapes[i] = t.Shape()
	}
	switch r.kind {
	case allReduceSum:
		output, err := shapeinference.AllReduce(inputShapes)
		if err != nil {
			return nil, errors.WithMessagef(err, "AllReduceSum on %s", h.group)
		}
		sum := r.inputs[0].Flat()
		for _, t := range r.inputs[1:] {
			floats.Add(sum, t.Flat())
		}
		h.world.numAllReduce.Add(1)
		return tensor.FromShapeAndFlat(output, sum)

	case allGather:
		output, err := tensor.Concatenate(r.axis, r.inputs...)
		if err != nil {
			return nil, errors.WithMessagef(err, "AllGather(axis=%d) on %s", r.axis, h.group)
		}
		h.world.numAllGather.Add(1)
		return output, nil
	}
	return nil, errors.Errorf("unknown collective %s", r.kind)
}
