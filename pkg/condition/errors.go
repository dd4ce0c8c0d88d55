package condition

import (
	"fmt"
)

type CompilationError struct {
	Expression string
	Cause      error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile expression '%s': %v", e.Expression, e.Cause)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

type EvaluationError struct {
	Expression string
	Cause      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate expression '%s': %v", e.Expression, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
