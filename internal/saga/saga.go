// Package saga runs ordered multi-step workflows across systems that share no transaction,
// undoing completed steps when a later one fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Step is one forward action and its optional undo. Both receive the state threaded through
// the whole execution.
type Step[T any] struct {
	Name       string
	Execute    func(ctx context.Context, state *T) error
	Compensate func(ctx context.Context, state *T) error
}

// CompensationFailedFunc is called once per compensation that returned an error. The saga
// does not retry; the callback is expected to escalate.
type CompensationFailedFunc func(ctx context.Context, saga, step string, err error)

var ErrEmptyStepName = errors.New("saga_step_name_required")

type Saga[T any] struct {
	name                 string
	steps                []Step[T]
	log                  *zap.Logger
	onCompensationFailed CompensationFailedFunc
}

func New[T any](name string, log *zap.Logger, onCompensationFailed CompensationFailedFunc, steps ...Step[T]) *Saga[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Saga[T]{
		name:                 name,
		steps:                steps,
		log:                  log.Named("saga").With(zap.String("saga", name)),
		onCompensationFailed: onCompensationFailed,
	}
}

func (s *Saga[T]) Name() string { return s.name }

// Execution reports what happened during a run.
type Execution struct {
	Completed           []string
	FailedStep          string
	Compensated         []string
	CompensationFailure []string
}

// Execute runs every step in order. When a step fails, the steps before it are compensated
// in reverse order and the failing step's error is returned unchanged.
func (s *Saga[T]) Execute(ctx context.Context, state *T) error {
	_, err := s.Run(ctx, state)
	return err
}

func (s *Saga[T]) Run(ctx context.Context, state *T) (Execution, error) {
	var exec Execution
	for _, step := range s.steps {
		if step.Name == "" || step.Execute == nil {
			return exec, fmt.Errorf("%w: saga %s", ErrEmptyStepName, s.name)
		}
	}

	done := make([]Step[T], 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Execute(ctx, state); err != nil {
			exec.FailedStep = step.Name
			s.log.Warn("saga step failed, compensating",
				zap.String("step", step.Name),
				zap.Int("completed_steps", len(done)),
				zap.Error(err),
			)
			s.compensate(ctx, state, done, &exec)
			return exec, err
		}
		done = append(done, step)
		exec.Completed = append(exec.Completed, step.Name)
	}
	return exec, nil
}

func (s *Saga[T]) compensate(ctx context.Context, state *T, done []Step[T], exec *Execution) {
	// Compensation must run even when the caller's context was cancelled.
	cctx := context.WithoutCancel(ctx)

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(cctx, state); err != nil {
			exec.CompensationFailure = append(exec.CompensationFailure, step.Name)
			s.log.Error("saga compensation failed, manual intervention required",
				zap.String("step", step.Name),
				zap.Error(err),
			)
			if s.onCompensationFailed != nil {
				s.onCompensationFailed(cctx, s.name, step.Name, err)
			}
			continue
		}
		exec.Compensated = append(exec.Compensated, step.Name)
	}
}
