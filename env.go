package tensorparallel

import (
	"github.com/gomlx/tensorparallel/backends"
	"github.com/gomlx/tensorparallel/comm"
	"github.com/gomlx/tensorparallel/types/topology"
	"github.com/pkg/errors"
)

// Env is what a process needs to execute operators: its local numeric backend and the
// communicators of the groups it belongs to.
//
// It is read-only after creation and can be shared by the calls of one process.
type Env struct {
	Backend backends.Backend

	communicators map[string]comm.Communicator
}

// NewEnv creates an Env with the given backend and communicators, at most one per group.
// The communicator of topology.Self() is always available.
func NewEnv(backend backends.Backend, communicators ...comm.Communicator) (*Env, error) {
	if backend == nil {
		return nil, errors.New("NewEnv requires a backend")
	}
	e := &Env{Backend: backend, communicators: make(map[string]comm.Communicator, len(communicators))}
	for _, c := range communicators {
		name := c.Group().Name()
		if _, found := e.communicators[name]; found {
			return nil, errors.Errorf("NewEnv: more than one communicator given for group %q", name)
		}
		e.communicators[name] = c
	}
	return e, nil
}

// Communicator returns the communicator for group g. A nil g means topology.Self().
func (e *Env) Communicator(g *topology.Group) (comm.Communicator, error) {
	if g == nil || g.IsSelf() {
		return comm.Self(), nil
	}
	c, found := e.communicators[g.Name()]
	if !found {
		return nil, errors.Errorf("this process has no communicator for %s", g)
	}
	if !c.Group().Equal(g) {
		return nil, errors.Errorf("communicator for %s was created for the different %s", g, c.Group())
	}
	return c, nil
}
