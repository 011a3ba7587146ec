package provision

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/woliveiras/sdprep/pkg/runner"
)

// Step is one concrete action of an operation. It either runs an external
// command or an in-process function, never both.
type Step struct {
	Operation   string // e.g. "zero", "partition", "mount-fat"
	Device      string
	Slot        int
	Description string

	Command *runner.Command
	Do      func(ctx context.Context) error

	// BestEffort steps log their failure and let the sequence continue.
	BestEffort bool
}

func commandStep(op, dev string, slot int, desc string, cmd runner.Command) Step {
	return Step{Operation: op, Device: dev, Slot: slot, Description: desc, Command: &cmd}
}

func (s Step) run(ctx context.Context, r runner.Runner) error {
	switch {
	case s.Command != nil:
		_, err := r.Run(ctx, *s.Command)
		return err
	case s.Do != nil:
		return s.Do(ctx)
	default:
		return fmt.Errorf("step %q has nothing to run", s.Operation)
	}
}

// Apply runs steps in order and stops at the first failure that is not
// best-effort. It returns the steps that were attempted, the failed one
// included, so callers can journal them.
func Apply(ctx context.Context, steps []Step, r runner.Runner, log logrus.FieldLogger) ([]Step, error) {
	var done []Step
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		done = append(done, step)
		if step.Description != "" {
			log.Info(step.Description)
		}
		if err := step.run(ctx, r); err != nil {
			if step.BestEffort {
				log.WithError(err).Warnf("%s failed, continuing", step.Operation)
				continue
			}
			return done, fmt.Errorf("apply failed on operation %q (dev=%s, part=%d): %w",
				step.Operation, step.Device, step.Slot, err)
		}
	}
	return done, nil
}
