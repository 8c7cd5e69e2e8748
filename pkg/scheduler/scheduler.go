package scheduler

import (
	"context"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/riven-labs/steward/internal/metrics"
	"github.com/riven-labs/steward/pkg/checkpoint"
	"github.com/riven-labs/steward/pkg/confirm"
	"github.com/riven-labs/steward/pkg/policy"
	"github.com/riven-labs/steward/pkg/tool"
)

// Config holds the scheduler's per-session settings.
type Config struct {
	// ApprovalMode is the session posture; see the policy package.
	ApprovalMode policy.ApprovalMode

	// ApprovalTimeout bounds how long one call may wait for an answer.
	// Zero waits until the turn is cancelled.
	ApprovalTimeout time.Duration

	// ExecuteTimeout bounds one call's execution. Zero means no per-call
	// deadline.
	ExecuteTimeout time.Duration

	// GracePeriod is how long a cancelled call may take to unwind before
	// it is force-marked terminated.
	GracePeriod time.Duration
}

// DefaultConfig returns the default scheduler settings.
func DefaultConfig() Config {
	return Config{
		ApprovalMode:    policy.ModeDefault,
		ApprovalTimeout: 5 * time.Minute,
		GracePeriod:     5 * time.Second,
	}
}

// Outcome is one call's terminal record, returned in request order.
type Outcome struct {
	CallID   string                 `json:"call_id"`
	ToolName string                 `json:"tool_name"`
	Args     map[string]interface{} `json:"args,omitempty"`
	State    State                  `json:"state"`
	Result   tool.Result            `json:"result"`
}

// Scheduler orchestrates the tool calls of a turn. All collaborators are
// injected at construction; a fresh scheduler per test needs no globals.
type Scheduler struct {
	registry    *tool.Registry
	engine      *policy.Engine
	bus         *confirm.Bus
	checkpoints *checkpoint.Store
	metrics     *metrics.Metrics
	cfg         Config

	locks *lockManager

	mu       sync.Mutex
	trackers map[string]*tracker
}

// New creates a scheduler. checkpoints and m may be nil; restorable calls
// then fail closed and metrics are skipped respectively.
func New(registry *tool.Registry, engine *policy.Engine, bus *confirm.Bus, checkpoints *checkpoint.Store, m *metrics.Metrics, cfg Config) *Scheduler {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	return &Scheduler{
		registry:    registry,
		engine:      engine,
		bus:         bus,
		checkpoints: checkpoints,
		metrics:     m,
		cfg:         cfg,
		locks:       newLockManager(),
		trackers:    make(map[string]*tracker),
	}
}

// call carries one request through the turn.
type call struct {
	idx     int
	req     tool.CallRequest
	inv     *tool.Invocation
	tr      *tracker
	ctx     context.Context
	cancel  context.CancelFunc
	details *tool.ConfirmationDetails
	verdict policy.Decision
	pending *confirm.Pending
}

// RunTurn executes one batch of requests emitted together by the model.
// messageID ties any checkpoints to the conversation message for later
// restore selection. Outcomes are returned in original request order
// regardless of completion order; cancelling ctx cascades to every
// in-flight call.
func (s *Scheduler) RunTurn(ctx context.Context, messageID string, requests []tool.CallRequest) []Outcome {
	turnCtx, turnCancel := context.WithCancel(ctx)
	defer turnCancel()

	if messageID == "" {
		messageID, _ = gonanoid.New()
	}

	outcomes := make([]Outcome, len(requests))
	calls := make([]*call, 0, len(requests))

	// Step 1: validate all requests synchronously. Invalid calls go
	// straight to Error and never reach the policy pipeline.
	for i, req := range requests {
		if req.CallID == "" {
			id, _ := gonanoid.New()
			req.CallID = id
		}
		outcomes[i] = Outcome{CallID: req.CallID, ToolName: req.Name}

		inv, fault := s.registry.Bind(req)
		if fault != nil {
			outcomes[i].State = StateError
			outcomes[i].Result = tool.ErrorResult(fault)
			s.countCall(req.Name, StateError)
			log.Warn().Str("callId", req.CallID).Str("tool", req.Name).Str("reason", fault.Message).Msg("Call rejected at validation")
			continue
		}

		callCtx, cancel := context.WithCancel(turnCtx)
		tr := newTracker(req.CallID, cancel)
		s.register(tr)

		outcomes[i].Args = inv.Args
		calls = append(calls, &call{
			idx:    i,
			req:    req,
			inv:    inv,
			tr:     tr,
			ctx:    callCtx,
			cancel: cancel,
		})
	}
	defer s.unregisterAll(calls)

	// Step 2: evaluate each tool's risk self-assessment together with the
	// policy engine, concurrently across calls.
	var evalWg sync.WaitGroup
	for _, c := range calls {
		evalWg.Add(1)
		go func(c *call) {
			defer evalWg.Done()

			details, err := c.inv.Confirmation(c.ctx)
			if err != nil {
				// A broken self-assessment is treated as a confirmation
				// request rather than a silent allow.
				log.Warn().Err(err).Str("callId", c.req.CallID).Msg("Tool confirmation hook failed")
				details = &tool.ConfirmationDetails{Summary: c.inv.Describe()}
			}
			c.details = details

			hint := policy.Hint{
				WantsConfirmation: details != nil,
				NonSkippable:      details != nil && details.NonSkippable,
			}
			c.verdict = s.engine.Decide(c.req.Name, c.inv.Args, c.inv.Descriptor.Kind, s.cfg.ApprovalMode, hint)
		}(c)
	}
	evalWg.Wait()

	// Step 3: apply verdicts in request order so confirmation questions
	// are presented in the order the model issued the calls.
	runnable := make([]*call, 0, len(calls))
	for _, c := range calls {
		s.countDecision(c.req.Name, c.verdict.Verdict)

		switch c.verdict.Verdict {
		case policy.Deny:
			c.tr.finish(StateError)
			c.cancel()
			outcomes[c.idx].State = StateError
			outcomes[c.idx].Result = tool.ErrorResult(
				tool.NewFault(tool.FaultPolicyDenied, "%s", c.verdict.Reason))
			s.countCall(c.req.Name, StateError)
			log.Info().Str("callId", c.req.CallID).Str("tool", c.req.Name).Str("reason", c.verdict.Reason).Msg("Call denied by policy")

		case policy.AskUser:
			pending, err := s.bus.Post(s.question(c))
			if err != nil {
				c.tr.finish(StateError)
				c.cancel()
				outcomes[c.idx].State = StateError
				outcomes[c.idx].Result = tool.ErrorResult(
					tool.NewFault(tool.FaultExecutionFailed, "failed to request confirmation: %v", err))
				s.countCall(c.req.Name, StateError)
				continue
			}
			_ = c.tr.transition(StateAwaitingApproval)
			c.pending = pending
			if s.metrics != nil {
				s.metrics.ConfirmationsPending.Inc()
			}
			runnable = append(runnable, c)

		default: // Allow
			_ = c.tr.transition(StateScheduled)
			runnable = append(runnable, c)
		}
	}

	// Step 4: run the survivors concurrently; each goroutine owns exactly
	// one outcome slot, so results land in request order by construction.
	var wg sync.WaitGroup
	for _, c := range runnable {
		wg.Add(1)
		go func(c *call) {
			defer wg.Done()
			outcomes[c.idx] = s.runCall(c, messageID, outcomes[c.idx])
		}(c)
	}
	wg.Wait()

	return outcomes
}

// runCall walks one approved-or-awaiting call to a terminal state.
func (s *Scheduler) runCall(c *call, messageID string, out Outcome) Outcome {
	defer c.cancel()

	if c.pending != nil {
		var approved bool
		out, approved = s.awaitApproval(c, out)
		if !approved {
			return out
		}
	}

	// Mutating calls are bounded by path overlap; session tools hold one
	// exclusive resource. Read-only calls skip straight to execution.
	var paths []string
	if c.inv.Mutating() {
		paths = c.inv.MutatedPaths()
	}
	session := c.inv.Descriptor.Session

	if len(paths) > 0 || session != "" {
		if err := s.locks.acquire(c.ctx, c.req.CallID, paths, session); err != nil {
			c.tr.finish(StateCancelled)
			return s.terminal(c, out, StateCancelled,
				tool.NewFault(tool.FaultCancelled, "cancelled while waiting for resources"))
		}
		defer s.locks.release(c.req.CallID)
	}

	// Snapshot before a restorable call executes. Fail closed: no
	// snapshot, no execution.
	if c.inv.Descriptor.Restorable {
		if s.checkpoints == nil {
			c.tr.finish(StateError)
			return s.terminal(c, out, StateError,
				tool.NewFault(tool.FaultCheckpointFailed, "no checkpoint store configured for restorable tool %s", c.req.Name))
		}
		if _, err := s.checkpoints.Snapshot(c.req.CallID, messageID, paths); err != nil {
			c.tr.finish(StateError)
			return s.terminal(c, out, StateError,
				tool.NewFault(tool.FaultCheckpointFailed, "snapshot failed: %v", err))
		}
		if s.metrics != nil {
			s.metrics.CheckpointsTotal.Inc()
		}
	}

	if err := c.tr.transition(StateExecuting); err != nil {
		// A racing canceller already finished the call.
		return s.terminal(c, out, c.tr.current(),
			tool.NewFault(tool.FaultCancelled, "cancelled before execution"))
	}

	return s.execute(c, out)
}

// awaitApproval blocks on the pending question. The second return value is
// false when the call reached a terminal state here.
func (s *Scheduler) awaitApproval(c *call, out Outcome) (Outcome, bool) {
	defer func() {
		if s.metrics != nil {
			s.metrics.ConfirmationsPending.Dec()
		}
	}()

	var timeoutCh <-chan time.Time
	if s.cfg.ApprovalTimeout > 0 {
		timer := time.NewTimer(s.cfg.ApprovalTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case ans := <-c.pending.AnswerCh:
		if !ans.Approved {
			s.countConfirmation("denied")
			c.tr.finish(StateError)
			reason := ans.Reason
			if reason == "" {
				reason = "declined by operator"
			}
			return s.terminal(c, out, StateError,
				tool.NewFault(tool.FaultPolicyDenied, "%s", reason)), false
		}
		s.countConfirmation("approved")
		_ = c.tr.transition(StateScheduled)
		return out, true

	case <-timeoutCh:
		s.countConfirmation("timeout")
		s.bus.Withdraw(c.req.CallID)
		c.tr.finish(StateCancelled)
		return s.terminal(c, out, StateCancelled,
			tool.NewFault(tool.FaultApprovalTimeout, "no answer within %s", s.cfg.ApprovalTimeout)), false

	case <-c.ctx.Done():
		s.countConfirmation("cancelled")
		s.bus.Withdraw(c.req.CallID)
		c.tr.finish(StateCancelled)
		return s.terminal(c, out, StateCancelled,
			tool.NewFault(tool.FaultCancelled, "cancelled while awaiting approval")), false
	}
}

// execute runs the tool handler in its own goroutine so a misbehaving tool
// can never stall the scheduler past the grace period.
func (s *Scheduler) execute(c *call, out Outcome) Outcome {
	if s.metrics != nil {
		s.metrics.CallsExecuting.Inc()
		defer s.metrics.CallsExecuting.Dec()
	}

	execCtx := c.ctx
	if s.cfg.ExecuteTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(c.ctx, s.cfg.ExecuteTimeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan tool.Result, 1)
	go func() {
		done <- c.inv.Execute(execCtx)
	}()

	select {
	case res := <-done:
		if s.metrics != nil {
			s.metrics.CallDuration.WithLabelValues(c.req.Name).Observe(time.Since(start).Seconds())
		}
		if res.Err != nil {
			c.tr.finish(StateError)
			out.State = StateError
			out.Result = res
			s.countCall(c.req.Name, StateError)
			return out
		}
		c.tr.finish(StateSuccess)
		out.State = StateSuccess
		out.Result = res
		s.countCall(c.req.Name, StateSuccess)
		log.Debug().Str("callId", c.req.CallID).Str("tool", c.req.Name).Dur("duration", time.Since(start)).Msg("Call completed")
		return out

	case <-execCtx.Done():
		// The per-call deadline is distinct from the turn being cancelled.
		timedOut := execCtx.Err() == context.DeadlineExceeded && c.ctx.Err() == nil

		// Signal delivered; give the tool a grace period to unwind.
		select {
		case <-done:
			if timedOut {
				c.tr.finish(StateError)
				return s.terminal(c, out, StateError,
					tool.NewFault(tool.FaultExecutionFailed, "execution exceeded %s", s.cfg.ExecuteTimeout))
			}
			c.tr.finish(StateCancelled)
			return s.terminal(c, out, StateCancelled,
				tool.NewFault(tool.FaultCancelled, "cancelled during execution"))

		case <-time.After(s.cfg.GracePeriod):
			c.tr.finish(StateError)
			if s.metrics != nil {
				s.metrics.ForcedTerminations.WithLabelValues(c.req.Name).Inc()
			}
			log.Error().
				Str("callId", c.req.CallID).
				Str("tool", c.req.Name).
				Dur("grace", s.cfg.GracePeriod).
				Msg("Tool ignored cancellation and was force-terminated")
			return s.terminal(c, out, StateError,
				tool.NewFault(tool.FaultForcedTermination, "tool %s did not stop within %s of cancellation", c.req.Name, s.cfg.GracePeriod))
		}
	}
}

// question builds the approval question for a call.
func (s *Scheduler) question(c *call) confirm.Question {
	q := confirm.Question{
		CallID: c.req.CallID,
		Kind:   confirm.QuestionApprove,
		Prompt: c.inv.Describe(),
	}
	if c.details != nil {
		if c.details.Summary != "" {
			q.Prompt = c.details.Summary
		}
		q.Warning = c.details.Warning
	}
	return q
}

func (s *Scheduler) terminal(c *call, out Outcome, state State, fault *tool.Fault) Outcome {
	out.State = state
	out.Result = tool.ErrorResult(fault)
	s.countCall(c.req.Name, state)
	return out
}

// States returns a snapshot of the live call states, for observability.
func (s *Scheduler) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make(map[string]State, len(s.trackers))
	for id, tr := range s.trackers {
		states[id] = tr.current()
	}
	return states
}

func (s *Scheduler) register(tr *tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[tr.callID] = tr
}

func (s *Scheduler) unregisterAll(calls []*call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range calls {
		delete(s.trackers, c.req.CallID)
	}
}

func (s *Scheduler) countDecision(toolName string, verdict policy.Verdict) {
	if s.metrics != nil {
		s.metrics.PolicyDecisionsTotal.WithLabelValues(toolName, string(verdict)).Inc()
	}
}

func (s *Scheduler) countConfirmation(outcome string) {
	if s.metrics != nil {
		s.metrics.ConfirmationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Scheduler) countCall(toolName string, state State) {
	if s.metrics != nil {
		s.metrics.CallsTotal.WithLabelValues(toolName, string(state)).Inc()
	}
}
