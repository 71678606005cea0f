// Package condition implements the policy condition tree: a small, pure,
// stateless expression language evaluated against a flat mapping of metric
// name to numeric value. It has no knowledge of policies, targets, or
// cooldowns — those live in internal/policy, which composes a Tree with the
// rest of the evaluation context.
package condition

import (
	"fmt"
	"math"
)

// Kind identifies the variant of a condition tree node.
type Kind string

const (
	MetricExceeds Kind = "metric_exceeds"
	MetricBelow   Kind = "metric_below"
	All           Kind = "all"
	Any           Kind = "any"
)

// maxDepth bounds recursion so a pathological or hostile reload payload
// cannot blow the evaluator's stack; spec recommends at least 16.
const maxDepth = 32

// Tree is a node in the condition tree. Exactly one of the leaf fields
// (Name/Threshold) or the branch field (Children) is meaningful, selected
// by Kind. YAML/JSON tags match the declarative policy-source format.
type Tree struct {
	Kind      Kind    `json:"kind" yaml:"kind"`
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Children  []Tree  `json:"children,omitempty" yaml:"children,omitempty"`
}

// MetricExceedsOf builds a metric_exceeds leaf.
func MetricExceedsOf(name string, threshold float64) Tree {
	return Tree{Kind: MetricExceeds, Name: name, Threshold: threshold}
}

// MetricBelowOf builds a metric_below leaf.
func MetricBelowOf(name string, threshold float64) Tree {
	return Tree{Kind: MetricBelow, Name: name, Threshold: threshold}
}

// AllOf builds a conjunction branch.
func AllOf(children ...Tree) Tree {
	return Tree{Kind: All, Children: children}
}

// AnyOf builds a disjunction branch.
func AnyOf(children ...Tree) Tree {
	return Tree{Kind: Any, Children: children}
}

// Validate checks structural well-formedness: known kinds, finite leaf
// thresholds, non-empty leaf names, and a bounded depth. It does not
// evaluate anything and has no knowledge of available metric names.
func (t Tree) Validate() error {
	return t.validate(0)
}

func (t Tree) validate(depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("condition: max depth %d exceeded", maxDepth)
	}
	switch t.Kind {
	case MetricExceeds, MetricBelow:
		if t.Name == "" {
			return fmt.Errorf("condition: %s requires a non-empty metric name", t.Kind)
		}
		if math.IsNaN(t.Threshold) || math.IsInf(t.Threshold, 0) {
			return fmt.Errorf("condition: %s threshold must be finite", t.Kind)
		}
		if len(t.Children) != 0 {
			return fmt.Errorf("condition: %s must not have children", t.Kind)
		}
		return nil
	case All, Any:
		for i := range t.Children {
			if err := t.Children[i].validate(depth + 1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("condition: unknown kind %q", t.Kind)
	}
}

// Evaluate is the pure, short-circuiting evaluator. A
// missing metric key in a leaf yields false, never an error; an
// unrecognized kind also yields false (validation is expected to have
// already rejected it, but Evaluate never panics on bad input).
func Evaluate(t Tree, metrics map[string]float64) bool {
	switch t.Kind {
	case MetricExceeds:
		v, ok := metrics[t.Name]
		return ok && v > t.Threshold
	case MetricBelow:
		v, ok := metrics[t.Name]
		return ok && v < t.Threshold
	case All:
		if len(t.Children) == 0 {
			return false
		}
		for _, child := range t.Children {
			if !Evaluate(child, metrics) {
				return false
			}
		}
		return true
	case Any:
		for _, child := range t.Children {
			if Evaluate(child, metrics) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
