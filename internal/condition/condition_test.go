package condition

import (
	"math"
	"testing"
)

func TestEvaluateMetricExceeds(t *testing.T) {
	tree := MetricExceedsOf("cpu", 80)
	if !Evaluate(tree, map[string]float64{"cpu": 95}) {
		t.Error("expected true for cpu=95 > 80")
	}
	if Evaluate(tree, map[string]float64{"cpu": 80}) {
		t.Error("expected false for cpu=80 (strict >)")
	}
	if Evaluate(tree, map[string]float64{}) {
		t.Error("missing metric must evaluate to false, not error")
	}
}

func TestEvaluateMetricBelow(t *testing.T) {
	tree := MetricBelowOf("free_mb", 100)
	if !Evaluate(tree, map[string]float64{"free_mb": 50}) {
		t.Error("expected true for free_mb=50 < 100")
	}
	if Evaluate(tree, map[string]float64{"free_mb": 100}) {
		t.Error("expected false for free_mb=100 (strict <)")
	}
}

func TestEvaluateAllEmptyIsFalse(t *testing.T) {
	if Evaluate(AllOf(), map[string]float64{"cpu": 100}) {
		t.Error("empty all() must be false")
	}
}

func TestEvaluateAnyEmptyIsFalse(t *testing.T) {
	if Evaluate(AnyOf(), map[string]float64{"cpu": 100}) {
		t.Error("empty any() must be false")
	}
}

func TestEvaluateAllShortCircuits(t *testing.T) {
	tree := AllOf(MetricExceedsOf("cpu", 80), MetricExceedsOf("mem", 80))
	if Evaluate(tree, map[string]float64{"cpu": 95}) {
		t.Error("expected false when only one child is true")
	}
	if !Evaluate(tree, map[string]float64{"cpu": 95, "mem": 90}) {
		t.Error("expected true when both children are true")
	}
}

func TestEvaluateAnyMatchesOneChild(t *testing.T) {
	tree := AnyOf(MetricExceedsOf("cpu", 80), MetricExceedsOf("mem", 80))
	if !Evaluate(tree, map[string]float64{"mem": 90}) {
		t.Error("expected true when one child is true")
	}
}

func TestEvaluateNestedTree(t *testing.T) {
	tree := AllOf(
		MetricExceedsOf("cpu", 80),
		AnyOf(MetricExceedsOf("mem", 90), MetricBelowOf("free_mb", 100)),
	)
	metrics := map[string]float64{"cpu": 95, "mem": 50, "free_mb": 10}
	if !Evaluate(tree, metrics) {
		t.Error("expected true: cpu exceeds and free_mb below")
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	tree := Tree{Kind: "bogus"}
	if err := tree.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestValidateRejectsEmptyLeafName(t *testing.T) {
	tree := MetricExceedsOf("", 80)
	if err := tree.Validate(); err == nil {
		t.Error("expected error for empty metric name")
	}
}

func TestValidateRejectsNonFiniteThreshold(t *testing.T) {
	tree := MetricExceedsOf("cpu", math.Inf(1))
	if err := tree.Validate(); err == nil {
		t.Error("expected error for infinite threshold")
	}
}

func TestValidateRecursesIntoChildren(t *testing.T) {
	tree := AllOf(MetricExceedsOf("cpu", 80), Tree{Kind: "bogus"})
	if err := tree.Validate(); err == nil {
		t.Error("expected error bubbling up from nested bad child")
	}
}

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	tree := AllOf(MetricExceedsOf("cpu", 80), AnyOf(MetricBelowOf("free_mb", 100)))
	if err := tree.Validate(); err != nil {
		t.Errorf("expected well-formed tree to validate, got %v", err)
	}
}

func TestValidateRejectsExcessiveDepth(t *testing.T) {
	tree := MetricExceedsOf("cpu", 1)
	for i := 0; i < maxDepth+2; i++ {
		tree = AllOf(tree)
	}
	if err := tree.Validate(); err == nil {
		t.Error("expected error for excessive nesting depth")
	}
}
