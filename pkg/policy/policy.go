package policy

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/riven-labs/steward/pkg/tool"
)

// ApprovalMode is the session-wide posture governing how much is
// auto-approved, from most to least restrictive.
type ApprovalMode string

const (
	// ModePlan allows only read-only tools; mutating calls are denied
	// without a prompt.
	ModePlan ApprovalMode = "plan"
	// ModeDefault asks whenever the tool itself requests confirmation.
	ModeDefault ApprovalMode = "default"
	// ModeAutoEdit silently allows file-edit calls but still asks for
	// shell, network and irreversible calls.
	ModeAutoEdit ApprovalMode = "auto_edit"
	// ModeYolo allows everything. Decisions are still logged.
	ModeYolo ApprovalMode = "yolo"
)

// ParseApprovalMode parses an approval mode string.
func ParseApprovalMode(s string) (ApprovalMode, error) {
	switch ApprovalMode(s) {
	case ModePlan, ModeDefault, ModeAutoEdit, ModeYolo:
		return ApprovalMode(s), nil
	default:
		return "", fmt.Errorf("unknown approval mode: %q", s)
	}
}

// Verdict is the outcome of a policy evaluation.
type Verdict string

const (
	Allow   Verdict = "allow"
	Deny    Verdict = "deny"
	AskUser Verdict = "ask_user"
)

// Decision is a verdict plus the rule or mode default that produced it.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// Hint carries the tool's own confirmation self-assessment into the
// decision as a tie-break for default and auto_edit modes.
type Hint struct {
	WantsConfirmation bool
	NonSkippable      bool
}

// Engine evaluates tool calls against deny rules and the approval mode.
// The rule set is swappable (live reload) but each Decide call sees one
// consistent snapshot.
type Engine struct {
	rules atomic.Pointer[RuleSet]
}

// NewEngine creates a policy engine with the given rule set. A nil rule
// set falls back to the built-in defaults.
func NewEngine(rules *RuleSet) *Engine {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	e := &Engine{}
	e.rules.Store(rules)
	return e
}

// SetRules atomically replaces the active rule set.
func (e *Engine) SetRules(rules *RuleSet) {
	if rules == nil {
		return
	}
	e.rules.Store(rules)
	log.Info().
		Int("deny_tools", len(rules.DenyTools)).
		Int("deny_command_patterns", len(rules.DenyCommandPatterns)).
		Msg("Policy rules replaced")
}

// Rules returns the active rule set snapshot.
func (e *Engine) Rules() *RuleSet {
	return e.rules.Load()
}

// Decide evaluates one tool call. Order: explicit deny rules always win,
// then the mode default, then the tool's hint as tie-break. An Allow is
// downgraded to AskUser when the tool marks its confirmation
// non-skippable.
func (e *Engine) Decide(toolName string, args map[string]interface{}, kind tool.Kind, mode ApprovalMode, hint Hint) Decision {
	rules := e.rules.Load()

	if rules.DeniesTool(toolName) {
		return Decision{Verdict: Deny, Reason: fmt.Sprintf("tool %q is in the deny list", toolName)}
	}

	if kind == tool.KindShell {
		if cmd, ok := args["command"].(string); ok {
			if pattern := rules.DeniedCommandPattern(cmd); pattern != "" {
				return Decision{Verdict: Deny, Reason: fmt.Sprintf("command matches deny pattern %q", pattern)}
			}
		}
	}

	decision := e.modeDefault(kind, mode, hint)

	if decision.Verdict == Allow && hint.NonSkippable {
		decision = Decision{Verdict: AskUser, Reason: "tool marks this action as irreversible"}
	}

	return decision
}

func (e *Engine) modeDefault(kind tool.Kind, mode ApprovalMode, hint Hint) Decision {
	switch mode {
	case ModePlan:
		// Network calls reach outside the workspace, so plan mode treats
		// them the same as mutations.
		if kind.Mutating() || kind == tool.KindNetwork {
			return Decision{Verdict: Deny, Reason: "plan mode denies mutating calls"}
		}
		return Decision{Verdict: Allow, Reason: "read-only call in plan mode"}

	case ModeYolo:
		return Decision{Verdict: Allow, Reason: "yolo mode allows everything"}

	case ModeAutoEdit:
		if kind == tool.KindEdit {
			return Decision{Verdict: Allow, Reason: "auto_edit mode allows file edits"}
		}
		if kind.Mutating() || kind == tool.KindNetwork || hint.WantsConfirmation {
			return Decision{Verdict: AskUser, Reason: "non-edit mutation in auto_edit mode"}
		}
		return Decision{Verdict: Allow, Reason: "read-only call"}

	default: // ModeDefault
		if hint.WantsConfirmation {
			return Decision{Verdict: AskUser, Reason: "tool requests confirmation"}
		}
		return Decision{Verdict: Allow, Reason: "tool does not request confirmation"}
	}
}
