// Package backends defines the interface to the local numeric backend: the kernels each process runs
// on its own local tensors. Distribution and communication are handled elsewhere.
//
// Backends register themselves (usually in an init function) with Register, and New picks one
// based on the TENSORPARALLEL_BACKEND environment variable.
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/tensorparallel/tensor"
	"github.com/pkg/errors"
)

// Backend is the API a local numeric backend needs to implement.
//
// Kernels must be deterministic given identical inputs, and must not modify their inputs.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "cpu".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// MatMul returns `lhs @ rhs` for matrices of shapes [m, k] and [k, n].
	MatMul(lhs, rhs *tensor.Tensor) (*tensor.Tensor, error)

	// AddMM returns `beta*input + alpha*(mat1 @ mat2)`, with input broadcast to the product shape.
	// If beta is 0, input values are ignored (NaNs in it are not propagated).
	AddMM(input, mat1, mat2 *tensor.Tensor, beta, alpha float64) (*tensor.Tensor, error)

	// ScaledAdd returns `beta*input + alpha*x`, with input broadcast to the shape of x.
	// If beta is 0, input values are ignored.
	ScaledAdd(input, x *tensor.Tensor, beta, alpha float64) (*tensor.Tensor, error)

	// Gelu applies the Gaussian error linear unit. If approximate is true the tanh approximation is used.
	Gelu(x *tensor.Tensor, approximate bool) (*tensor.Tensor, error)

	// Relu returns max(x, 0) elementwise.
	Relu(x *tensor.Tensor) (*tensor.Tensor, error)

	// Clone returns a copy of x.
	Clone(x *tensor.Tensor) (*tensor.Tensor, error)
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// Registered returns whether a backend with the given name was registered.
func Registered(name string) bool {
	_, found := registeredConstructors[name]
	return found
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// EnvBackend is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "cpu") and
// "<backend_configuration>" is backend specific.
const EnvBackend = "TENSORPARALLEL_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment TENSORPARALLEL_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
//
// It returns an error if no backend was registered.
func New() (Backend, error) {
	config, found := os.LookupEnv(EnvBackend)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configuration string formatted as "<backend_name>:<backend_configuration>".
// A config without ":" is taken as the backend name, and an empty one selects the first registered backend.
func NewWithConfig(config string) (Backend, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.New(`no registered backends -- maybe import the default one with import _ "github.com/gomlx/tensorparallel/backends/cpu"?`)
	}
	backendName := firstRegistered
	var backendConfig string
	if config != "" {
		backendName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given", backendName, config)
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "while creating backend %q", backendName)
	}
	return backend, nil
}
