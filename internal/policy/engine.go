package policy

import (
	"time"

	"github.com/kestrelops/kestrel/internal/condition"
	"github.com/kestrelops/kestrel/internal/cooldown"
)

// Violation is evidence that a policy's condition held during an
// evaluation. Emission of an Intent is conditional on cooldown and
// auto-remediation.
type Violation struct {
	PolicyName string
	Severity   Severity
	Target     string
	Timestamp  time.Time
}

// Intent is an action to be enqueued for a worker to dispatch.
type Intent struct {
	Action   Action
	Target   string
	Severity Severity
	Params   map[string]interface{}
}

// Engine composes a Registry, the condition evaluator, and a cooldown
// registry to turn a metrics sample into violations and intents.
type Engine struct {
	registry *Registry
	cooldown *cooldown.Registry
}

// NewEngine builds a PolicyEngine over the given Registry and cooldown
// tracker.
func NewEngine(registry *Registry, cd *cooldown.Registry) *Engine {
	return &Engine{registry: registry, cooldown: cd}
}

// Evaluate implements the core evaluation algorithm: given a metrics mapping
// and an optional concrete target, it walks the enabled-policy snapshot in
// insertion order and returns ordered violations and intents.
//
// Determinism: two calls against the same registry snapshot, cooldown
// state, and metrics produce identical results; Evaluate never mutates the
// registry and its only side effect is cooldown.Mark, which is itself a
// single atomic compare-and-set per (policy, target).
func (e *Engine) Evaluate(metrics map[string]float64, target string) ([]Violation, []Intent) {
	snapshot := e.registry.snapshotEnabled()

	var violations []Violation
	var intents []Intent

	for _, p := range snapshot {
		if target != "" && !Matches(p.Target, target) {
			continue
		}
		if !safeEvaluate(p.Condition, metrics) {
			continue
		}

		effectiveTarget := p.Target
		if target != "" {
			effectiveTarget = target
		}

		now := time.Now()
		key := cooldown.Key{PolicyName: p.Name, Target: effectiveTarget}
		cooldownDuration := time.Duration(p.CooldownSeconds) * time.Second

		violations = append(violations, Violation{
			PolicyName: p.Name,
			Severity:   p.Severity,
			Target:     effectiveTarget,
			Timestamp:  now,
		})

		if !e.cooldown.Mark(key, cooldownDuration) {
			continue
		}
		if p.AutoRemediate {
			intents = append(intents, Intent{
				Action:   p.Action,
				Target:   effectiveTarget,
				Severity: p.Severity,
				Params:   p.Params,
			})
		}
	}

	return violations, intents
}

// Preview runs the same walk as Evaluate but never calls cooldown.Mark,
// using cooldown.Ready instead to decide whether an intent would have
// fired. Repeated calls against the same registry snapshot, cooldown
// state, and metrics are side-effect free and produce identical results,
// which makes it the natural fit for a caller that wants to inspect what
// Evaluate would do without advancing any policy's cooldown.
func (e *Engine) Preview(metrics map[string]float64, target string) ([]Violation, []Intent) {
	snapshot := e.registry.snapshotEnabled()

	var violations []Violation
	var intents []Intent

	for _, p := range snapshot {
		if target != "" && !Matches(p.Target, target) {
			continue
		}
		if !safeEvaluate(p.Condition, metrics) {
			continue
		}

		effectiveTarget := p.Target
		if target != "" {
			effectiveTarget = target
		}

		now := time.Now()
		key := cooldown.Key{PolicyName: p.Name, Target: effectiveTarget}
		cooldownDuration := time.Duration(p.CooldownSeconds) * time.Second

		violations = append(violations, Violation{
			PolicyName: p.Name,
			Severity:   p.Severity,
			Target:     effectiveTarget,
			Timestamp:  now,
		})

		allowed, _ := e.cooldown.Ready(key, cooldownDuration)
		if !allowed {
			continue
		}
		if p.AutoRemediate {
			intents = append(intents, Intent{
				Action:   p.Action,
				Target:   effectiveTarget,
				Severity: p.Severity,
				Params:   p.Params,
			})
		}
	}

	return violations, intents
}

// safeEvaluate treats a panicking condition tree as false rather than
// propagating: a condition that throws during evaluation is treated as
// false. condition.Evaluate is pure and does not panic on well-formed
// input; this guards against a pathological tree slipping past Validate
// (e.g. via a future condition kind added without updating Evaluate's
// default case).
func safeEvaluate(tree condition.Tree, metrics map[string]float64) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return condition.Evaluate(tree, metrics)
}
