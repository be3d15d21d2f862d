package gametx

import (
	"context"
	"fmt"
	"time"

	"github.com/manaforge/manaforge-client-go/internal/api"
	"github.com/manaforge/manaforge-client-go/internal/broadcast"
	"github.com/manaforge/manaforge-client-go/internal/config"
	"github.com/manaforge/manaforge-client-go/internal/telemetry"
	"go.uber.org/zap"
)

// DelegationAPI requests transaction capacity after a resource-exhaustion
// rejection.
type DelegationAPI interface {
	RequestDelegation(ctx context.Context) (api.DelegationResult, error)
}

// Telemetry reports diagnostic events fire-and-forget.
type Telemetry interface {
	Emit(event string, data map[string]any)
}

// SettingsProvider exposes the server-published policy the engine needs.
type SettingsProvider interface {
	OperationPrefix() string
	IsBattleOp(op string) bool
	IsElevatedAuthOp(op string) bool
}

// Rotator switches submissions to an alternate ledger endpoint between
// retries.
type Rotator interface {
	Rotate() string
}

// Deps are the engine's collaborators.
type Deps struct {
	Codec      *Codec
	Registry   *Registry
	Selector   *broadcast.Selector
	Policy     func() broadcast.PlayerPolicy
	Settings   SettingsProvider
	Delegation DelegationAPI
	Telemetry  Telemetry
	Rotator    Rotator
}

// Engine orchestrates codec, registry, and backend selection into the
// broadcast-confirmation protocol: encode, register, race the submission
// against the server's confirmation push, and retry transient failures.
type Engine struct {
	codec      *Codec
	registry   *Registry
	selector   *broadcast.Selector
	policy     func() broadcast.PlayerPolicy
	settings   SettingsProvider
	delegation DelegationAPI
	telemetry  Telemetry
	rotator    Rotator

	retryLimit     int
	backoff        time.Duration
	confirmTimeout time.Duration

	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a broadcast engine.
func NewEngine(cfg config.TxConfig, deps Deps, logger *zap.Logger) *Engine {
	return &Engine{
		codec:          deps.Codec,
		registry:       deps.Registry,
		selector:       deps.Selector,
		policy:         deps.Policy,
		settings:       deps.Settings,
		delegation:     deps.Delegation,
		telemetry:      deps.Telemetry,
		rotator:        deps.Rotator,
		retryLimit:     cfg.RetryLimit,
		backoff:        cfg.RetryBackoff,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         logger,
		sleep:          sleepCtx,
	}
}

// Submit broadcasts one game action and returns the authoritative result:
// the server's confirmation push, its timeout, or a terminal failure.
func (e *Engine) Submit(ctx context.Context, opID, label string, payload map[string]any) Result {
	return e.SubmitWithDeadline(ctx, opID, label, payload, e.confirmTimeout)
}

// SubmitWithDeadline is Submit with a caller-chosen confirmation deadline,
// e.g. the longer payment-confirmation window.
func (e *Engine) SubmitWithDeadline(ctx context.Context, opID, label string, payload map[string]any, deadline time.Duration) Result {
	policy := e.policy()
	elevated := policy.RequireElevated && e.settings.IsElevatedAuthOp(opID)
	fullID := e.settings.OperationPrefix() + opID

	encoded, corrID, err := e.codec.Encode(payload)
	if err != nil {
		e.telemetry.Emit(telemetry.EventTxLengthExceeded, map[string]any{"type": fullID})
		return Result{Err: err}
	}

	env := broadcast.Envelope{
		OperationID: fullID,
		Payload:     encoded,
		Account:     policy.Account,
		Elevated:    elevated,
		Label:       label,
	}

	// Battle-class fast path. Any failure here falls back to the general
	// path without consuming retry budget.
	if e.settings.IsBattleOp(opID) {
		if fast := e.selector.BattleFirst(); fast != nil {
			res, _, final := e.attempt(ctx, fast, env, corrID, deadline)
			if final {
				return res
			}
			e.logger.Debug("battle fast path failed, using general path",
				zap.String("operation", fullID),
			)
		}
	}

	backend := e.selector.General(policy)
	delegated := false

	for attempt := 0; ; attempt++ {
		res, out, final := e.attempt(ctx, backend, env, corrID, deadline)
		if final {
			return res
		}

		if out.ResourceExhausted() {
			if !delegated {
				del, derr := e.delegation.RequestDelegation(ctx)
				if derr == nil && del.Success {
					delegated = true
					e.logger.Info("capacity delegation granted, retrying",
						zap.String("operation", fullID),
					)
					if err := e.sleep(ctx, e.backoff); err != nil {
						return Result{CorrelationID: corrID, Err: err}
					}
					continue
				}
			}
			e.telemetry.Emit(telemetry.EventDelegationRequestFailed, map[string]any{
				"operation": fullID,
				"error":     out.Detail,
			})
			return Result{CorrelationID: corrID, Err: &SupportError{Operation: fullID, Cause: out.Detail}}
		}

		if attempt < e.retryLimit {
			if e.rotator != nil {
				e.rotator.Rotate()
			}
			e.logger.Warn("broadcast rejected, retrying",
				zap.String("operation", fullID),
				zap.Int("attempt", attempt+1),
				zap.String("detail", out.Detail),
			)
			if err := e.sleep(ctx, e.backoff); err != nil {
				return Result{CorrelationID: corrID, Err: err}
			}
			continue
		}

		e.telemetry.Emit(telemetry.EventCustomJSONFailed, map[string]any{
			"operation": fullID,
			"response":  out.Detail,
		})
		return Result{CorrelationID: corrID, Err: fmt.Errorf("broadcast rejected: %s", out.Detail)}
	}
}

// AwaitConfirmation registers a pending confirmation and waits for the push
// channel alone. Used for flows (external-wallet payments) whose completion
// is observed solely out of band.
func (e *Engine) AwaitConfirmation(ctx context.Context, correlationID string, deadline time.Duration) Result {
	pending := e.registry.Register(correlationID, deadline)

	select {
	case res := <-pending.Done():
		return res
	case <-ctx.Done():
		e.registry.Clear(correlationID)
		return Result{CorrelationID: correlationID, Err: ctx.Err()}
	}
}

// attempt runs one submission race. final=false means a rejected outcome the
// retry policy must classify; the registry entry is already cleared.
func (e *Engine) attempt(ctx context.Context, b broadcast.Backend, env broadcast.Envelope, corrID string, deadline time.Duration) (Result, broadcast.Outcome, bool) {
	pending := e.registry.Register(corrID, deadline)

	subCh := make(chan broadcast.Outcome, 1)
	go func() { subCh <- b.Submit(ctx, env) }()

	select {
	case res := <-pending.Done():
		// Push channel won. The losing submission result is observed and
		// discarded, never leaked.
		go func() {
			out := <-subCh
			e.logger.Debug("late submission result discarded",
				zap.String("correlation_id", corrID),
				zap.Stringer("kind", out.Kind),
			)
		}()
		return res, broadcast.Outcome{}, true

	case out := <-subCh:
		switch out.Kind {
		case broadcast.OutcomeAccepted:
			// Acceptance means the network received it, not that it settled.
			// The push, or its timeout, is authoritative.
			select {
			case res := <-pending.Done():
				if res.TrxID == "" {
					res.TrxID = out.LedgerRef
				}
				return res, out, true
			case <-ctx.Done():
				e.registry.Clear(corrID)
				return Result{CorrelationID: corrID, Err: ctx.Err()}, out, true
			}

		case broadcast.OutcomeCancelled:
			e.registry.Clear(corrID)
			return Result{CorrelationID: corrID, Cancelled: true, Err: ErrUserCancelled}, out, true

		default:
			e.registry.Clear(corrID)
			return Result{}, out, false
		}

	case <-ctx.Done():
		e.registry.Clear(corrID)
		return Result{CorrelationID: corrID, Err: ctx.Err()}, broadcast.Outcome{}, true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
