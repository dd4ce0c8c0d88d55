// Package condition builds experiment predicates from CEL expressions, so that
// ignore rules and run-if checks can live in configuration.
package condition

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"

	"github.com/openfga/scientist/pkg/experiment"
)

const (
	ControlVariable   = "control"
	CandidateVariable = "candidate"
	ContextVariable   = "context"
)

// Expression is a compiled CEL expression with a bool result. It is safe for
// concurrent use.
type Expression struct {
	source  string
	program cel.Program
}

// Compile compiles source against the given variable declarations. The
// expression must produce a bool. Expressions typed dyn are accepted and
// checked when evaluated.
func Compile(source string, variables ...cel.EnvOption) (*Expression, error) {
	env, err := cel.NewEnv(variables...)
	if err != nil {
		return nil, &CompilationError{Expression: source, Cause: err}
	}

	ast, issues := env.CompileSource(common.NewTextSource(source))
	if issues != nil {
		if err := issues.Err(); err != nil {
			return nil, &CompilationError{Expression: source, Cause: err}
		}
	}

	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) && !reflect.DeepEqual(ast.OutputType(), cel.DynType) {
		return nil, &CompilationError{
			Expression: source,
			Cause:      fmt.Errorf("expected a bool expression output, but got '%s'", ast.OutputType()),
		}
	}

	prg, err := env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, &CompilationError{
			Expression: source,
			Cause:      fmt.Errorf("expression construction: %w", err),
		}
	}

	return &Expression{source: source, program: prg}, nil
}

func (e *Expression) String() string {
	return e.source
}

// Evaluate runs the expression with the given variables.
func (e *Expression) Evaluate(ctx context.Context, vars map[string]any) (bool, error) {
	out, _, err := e.program.ContextEval(ctx, vars)
	if err != nil {
		return false, &EvaluationError{Expression: e.source, Cause: err}
	}

	met, ok := out.Value().(bool)
	if !ok {
		return false, &EvaluationError{
			Expression: e.source,
			Cause:      fmt.Errorf("expected a bool result, but got '%s'", out.Type()),
		}
	}
	return met, nil
}

// IgnorePredicate compiles an expression over the variables control and
// candidate into an experiment ignore predicate, for example
// "control > 0 && candidate == 0".
func IgnorePredicate[T any](source string) (experiment.IgnorePredicate[T], error) {
	expr, err := Compile(source,
		cel.Variable(ControlVariable, cel.DynType),
		cel.Variable(CandidateVariable, cel.DynType),
	)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, control, candidate T) (bool, error) {
		return expr.Evaluate(ctx, map[string]any{
			ControlVariable:   control,
			CandidateVariable: candidate,
		})
	}, nil
}

// RunIf compiles an expression over the variable context, a map of the
// experiment's contexts, into a run-if predicate. For example
// "context.tenant == 'internal'". The contexts are read on every evaluation.
func RunIf(source string, contexts *experiment.Contexts) (func(ctx context.Context) (bool, error), error) {
	expr, err := Compile(source, cel.Variable(ContextVariable, cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (bool, error) {
		return expr.Evaluate(ctx, map[string]any{ContextVariable: contexts.Map()})
	}, nil
}
