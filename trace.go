package tensorparallel

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/tensorparallel/dtensor"
	"github.com/gomlx/tensorparallel/types/optypes"
)

// Trace is an Observer that records the computation graph of the dispatched calls: one Statement per
// call, with tensors numbered in the order they are first seen.
//
// Example of a rendered statement:
//
//	%2 = "addmm"(%0, %1, %3){alpha = 1.0, beta = 1.0} : (Replicated(self)[4 8], ...) -> Replicated(tp)[4 6]
type Trace struct {
	mu         sync.Mutex
	values     map[*dtensor.Tensor]*Value
	statements []*Statement
}

var _ Observer = &Trace{}

// NewTrace returns an empty Trace.
func NewTrace() *Trace {
	return &Trace{values: make(map[*dtensor.Tensor]*Value)}
}

// Value is a tensor seen by a Trace.
type Value struct {
	id     int
	tensor *dtensor.Tensor
}

// ID of the value in the trace.
func (v *Value) ID() int { return v.id }

// Tensor returns the distributed tensor this value refers to.
func (v *Value) Tensor() *dtensor.Tensor { return v.tensor }

// Write writes the value as "%<id>".
func (v *Value) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%%%d", v.id)
	return err
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	return fmt.Sprintf("%%%d", v.id)
}

// signature of the value: its distribution and global dimensions.
func (v *Value) signature() string {
	return fmt.Sprintf("%s%v", v.tensor.Distribution(), v.tensor.Shape().Dimensions)
}

// Statement represents one recorded call.
type Statement struct {
	// OpType is the type of the operation.
	OpType optypes.OpType

	// Inputs to the operation.
	Inputs []*Value

	// Attributes of the operation.
	Attributes map[string]any

	// Output of the operation. It may be nil if the handler didn't return a distributed tensor.
	Output *Value
}

// Observe implements Observer.
func (t *Trace) Observe(call *Call) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stmt := &Statement{OpType: call.Op, Attributes: maps.Clone(call.Attributes)}
	for _, input := range call.Inputs {
		stmt.Inputs = append(stmt.Inputs, t.valueLocked(input))
	}
	if call.Output != nil {
		stmt.Output = t.valueLocked(call.Output)
	}
	t.statements = append(t.statements, stmt)
}

func (t *Trace) valueLocked(x *dtensor.Tensor) *Value {
	v, found := t.values[x]
	if !found {
		v = &Value{id: len(t.values), tensor: x}
		t.values[x] = v
	}
	return v
}

// Statements returns a copy of the recorded statements.
func (t *Trace) Statements() []*Statement {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.statements)
}

// Write writes all statements, one per line.
func (t *Trace) Write(writer io.Writer) error {
	for _, stmt := range t.Statements() {
		if err := stmt.Write(writer); err != nil {
			return err
		}
		if _, err := io.WriteString(writer, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (t *Trace) String() string {
	var sb strings.Builder
	_ = t.Write(&sb)
	return sb.String()
}

// Write writes a string representation of the statement to the given writer.
func (s *Statement) Write(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}
	we := func(v *Value) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		err = v.Write(writer)
	}

	// Output value is written first:
	if s.Output != nil {
		we(s.Output)
		w(" = ")
	}

	// Write op name and arguments:
	w("%q(", s.OpType.Name())
	for i, input := range s.Inputs {
		if i > 0 {
			w(", ")
		}
		we(input)
	}
	w(")")

	// Write attributes, sorted by name:
	if len(s.Attributes) > 0 {
		w("{")
		for i, key := range sortedKeys(s.Attributes) {
			if i > 0 {
				w(", ")
			}
			w("%s = %s", key, literalToString(s.Attributes[key]))
		}
		w("}")
	}

	// Write signature:
	w(" : (")
	for i, input := range s.Inputs {
		if i > 0 {
			w(", ")
		}
		w("%s", input.signature())
	}
	w(") -> ")
	if s.Output == nil {
		w("()")
	} else {
		w("%s", s.Output.signature())
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// literalToString converts an attribute value to its string representation.
func literalToString(attr any) string {
	switch v := attr.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case float32, float64:
		var f float64
		if f32, ok := v.(float32); ok {
			f = float64(f32)
		} else {
			f = v.(float64)
		}
		if f == math.Trunc(f) {
			// f is an integer, make sure we add a decimal point.
			return fmt.Sprintf("%.1f", f)
		}
		return fmt.Sprintf("%g", f)
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%#v", v)
	}
}
