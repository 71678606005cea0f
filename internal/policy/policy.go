// Package policy implements the Policy Registry: an in-memory, thread-safe
// collection of remediation rules with CRUD, transactional reload, and
// target-glob matching. See internal/condition for the condition language
// a Policy's Condition field composes.
package policy

import (
	"strings"
	"time"

	"github.com/kestrelops/kestrel/internal/apperrors"
	"github.com/kestrelops/kestrel/internal/condition"
)

// Severity enumerates the recognized policy severities.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Action enumerates the recognized remediation actions.
type Action string

const (
	ActionScaleUp  Action = "scale-up"
	ActionRestart  Action = "restart"
	ActionDrainPod Action = "drain-pod"
	ActionCustom   Action = "custom"
)

func (a Action) valid() bool {
	switch a {
	case ActionScaleUp, ActionRestart, ActionDrainPod, ActionCustom:
		return true
	default:
		return false
	}
}

// Policy is an immutable-once-published remediation rule. Callers receive
// copies (see Registry.Get/List); mutation only happens through Registry
// operations, which publish a fresh copy under lock.
type Policy struct {
	Name             string                 `json:"name" yaml:"name"`
	Description      string                 `json:"description" yaml:"description"`
	Severity         Severity               `json:"severity" yaml:"severity"`
	Target           string                 `json:"target" yaml:"target"`
	Enabled          bool                   `json:"enabled" yaml:"enabled"`
	AutoRemediate    bool                   `json:"auto_remediate" yaml:"auto_remediate"`
	Condition        condition.Tree         `json:"condition" yaml:"condition"`
	Action           Action                 `json:"action" yaml:"action"`
	Params           map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	CooldownSeconds  int                    `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	CreatedAt        time.Time              `json:"created_at" yaml:"-"`
}

// Patch carries the recognized updatable fields for Registry.Update. A nil
// field means "leave unchanged".
type Patch struct {
	Description     *string
	Severity        *Severity
	Target          *string
	Enabled         *bool
	AutoRemediate   *bool
	Condition       *condition.Tree
	Action          *Action
	Params          map[string]interface{}
	CooldownSeconds *int
}

// Validate checks the structural invariants: name non-empty, target a
// non-empty glob of a supported form (literal, "*", "all", "prefix*" or
// "*suffix"), severity/action in their enums, condition well-formed,
// cooldown non-negative. It does not check registry-wide uniqueness.
func (p Policy) Validate() error {
	if p.Name == "" {
		return apperrors.Invalid("policy name must not be empty", "name")
	}
	if p.Target == "" {
		return apperrors.Invalid("policy target must not be empty", "target")
	}
	if n := strings.Count(p.Target, "*"); n > 1 ||
		(n == 1 && !strings.HasPrefix(p.Target, "*") && !strings.HasSuffix(p.Target, "*")) {
		return apperrors.Invalid("policy target must be a literal, \"*\", \"all\", \"prefix*\" or \"*suffix\"", "target")
	}
	if !p.Severity.valid() {
		return apperrors.Invalid("unrecognized severity", "severity")
	}
	if !p.Action.valid() {
		return apperrors.Invalid("unrecognized action", "action")
	}
	if p.CooldownSeconds < 0 {
		return apperrors.Invalid("cooldown_seconds must be non-negative", "cooldown_seconds")
	}
	if err := p.Condition.Validate(); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid condition", err)
	}
	return nil
}

func (p *Policy) applyPatch(patch Patch) {
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Severity != nil {
		p.Severity = *patch.Severity
	}
	if patch.Target != nil {
		p.Target = *patch.Target
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.AutoRemediate != nil {
		p.AutoRemediate = *patch.AutoRemediate
	}
	if patch.Condition != nil {
		p.Condition = *patch.Condition
	}
	if patch.Action != nil {
		p.Action = *patch.Action
	}
	if patch.Params != nil {
		p.Params = patch.Params
	}
	if patch.CooldownSeconds != nil {
		p.CooldownSeconds = *patch.CooldownSeconds
	}
}
