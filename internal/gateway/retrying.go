package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
	"github.com/p-blackswan/project-assistant/internal/project"
	"github.com/p-blackswan/project-assistant/internal/retry"
	"github.com/p-blackswan/project-assistant/internal/turnid"
)

// Observer receives the outcome of every gateway operation.
type Observer interface {
	ObserveGatewayCall(op string, attempts int, elapsed time.Duration, err error)
}

// Retrying wraps a Gateway with bounded retries. Errors that survive the
// retries are reported as ErrGatewayFailure.
type Retrying struct {
	next     Gateway
	cfg      retry.Config
	observer Observer
	logger   zerolog.Logger
}

// RetryOption configures Retrying.
type RetryOption func(*Retrying)

// WithObserver reports call outcomes to o.
func WithObserver(o Observer) RetryOption {
	return func(r *Retrying) { r.observer = o }
}

// WithRetry decorates next with the retry policy cfg.
func WithRetry(next Gateway, cfg retry.Config, logger zerolog.Logger, opts ...RetryOption) *Retrying {
	r := &Retrying{
		next:   next,
		cfg:    cfg,
		logger: logger.With().Str("component", "gateway.retry").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func call[T any](ctx context.Context, r *Retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	attempts := 0
	start := time.Now()
	log := r.logger.With().Str("op", op).Str("turn_id", turnid.From(ctx)).Logger()

	cfg := r.cfg
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn().Err(err).Int("attempt", attempt).Msg("gateway call failed, retrying")
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err)
		}
	}

	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		var err error
		result, err = fn(ctx)
		return err
	})
	if r.observer != nil {
		r.observer.ObserveGatewayCall(op, attempts, time.Since(start), err)
	}
	if err != nil {
		var zero T
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		log.Warn().Err(err).Int("attempts", attempts).Msg("gateway call failed")
		return zero, fmt.Errorf("%w: %s: %w", perrors.ErrGatewayFailure, op, err)
	}
	log.Debug().Int("attempts", attempts).Dur("elapsed", time.Since(start)).Msg("gateway call ok")
	return result, nil
}

func (r *Retrying) NextQuestion(ctx context.Context, req QuestionRequest) (*QuestionResult, error) {
	return call(ctx, r, "next_question", func(ctx context.Context) (*QuestionResult, error) {
		return r.next.NextQuestion(ctx, req)
	})
}

func (r *Retrying) SynthesizeUnderstanding(ctx context.Context, projectName string, history []project.QA) (*project.Synthesis, error) {
	return call(ctx, r, "synthesize", func(ctx context.Context) (*project.Synthesis, error) {
		return r.next.SynthesizeUnderstanding(ctx, projectName, history)
	})
}

func (r *Retrying) Research(ctx context.Context, projectName string, syn project.Synthesis) ([]string, error) {
	return call(ctx, r, "research", func(ctx context.Context) ([]string, error) {
		return r.next.Research(ctx, projectName, syn)
	})
}

func (r *Retrying) Proposal(ctx context.Context, req ProposalRequest) (string, error) {
	return call(ctx, r, "proposal", func(ctx context.Context) (string, error) {
		return r.next.Proposal(ctx, req)
	})
}

func (r *Retrying) DecomposeIntoActions(ctx context.Context, projectName, proposal string) ([]ActionDraft, error) {
	return call(ctx, r, "decompose", func(ctx context.Context) ([]ActionDraft, error) {
		return r.next.DecomposeIntoActions(ctx, projectName, proposal)
	})
}

func (r *Retrying) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInReport, error) {
	return call(ctx, r, "checkin", func(ctx context.Context) (*CheckInReport, error) {
		return r.next.CheckIn(ctx, req)
	})
}

func (r *Retrying) Adjust(ctx context.Context, req AdjustRequest) (*AdjustPlan, error) {
	return call(ctx, r, "adjust", func(ctx context.Context) (*AdjustPlan, error) {
		return r.next.Adjust(ctx, req)
	})
}
