package run

import (
	"context"

	"github.com/openfga/scientist/pkg/experiment"
)

const (
	sumBehavior      = "sum"
	formulaBehavior  = "formula"
	offByOneBehavior = "off-by-one"

	// maxInput bounds the inputs drawn for the arithmetic experiment.
	maxInput = 1000
)

type inputKey struct{}

func withInput(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, inputKey{}, n)
}

func inputFrom(ctx context.Context) int {
	n, _ := ctx.Value(inputKey{}).(int)
	return n
}

// sumTo adds 1..n one step at a time. It is the trusted control.
func sumTo(ctx context.Context) (int, error) {
	n := inputFrom(ctx)
	total := 0
	for i := 1; i <= n; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		total += i
	}
	return total, nil
}

// gaussSum is the closed form of sumTo and always agrees with it.
func gaussSum(ctx context.Context) (int, error) {
	n := inputFrom(ctx)
	return n * (n + 1) / 2, nil
}

// offByOneSum stops one step short and disagrees with sumTo for every n > 0.
func offByOneSum(ctx context.Context) (int, error) {
	n := inputFrom(ctx)
	return n * (n - 1) / 2, nil
}

func arithmeticBehaviors() (experiment.NamedBehavior[int], []experiment.NamedBehavior[int]) {
	control := experiment.NamedBehavior[int]{Name: sumBehavior, Run: sumTo}
	candidates := []experiment.NamedBehavior[int]{
		experiment.Candidate(formulaBehavior, gaussSum),
		experiment.Candidate(offByOneBehavior, offByOneSum),
	}
	return control, candidates
}
