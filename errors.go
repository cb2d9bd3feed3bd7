package tensorparallel

import "github.com/pkg/errors"

// Errors returned by Dispatch and the strategies, always wrapped with the context of the call.
// Test for them with errors.Is.
var (
	// ErrUnsupportedOperator is returned when an operator without a registered handler is applied to
	// a distributed tensor.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedOperatorCombination is returned when the operands' specs don't match any
	// strategy of the operator.
	ErrUnsupportedOperatorCombination = errors.New("unsupported operator combination")

	// ErrInvalidSpecPrecondition is returned when a documented precondition of a strategy is violated.
	// It is a programming error: no corrective redistribution is attempted.
	ErrInvalidSpecPrecondition = errors.New("invalid spec precondition")
)
