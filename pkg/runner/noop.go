package runner

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NoopRunner logs commands but does not execute anything. It backs
// sdprep --dry-run and lets an operator review what a workflow would do.
type NoopRunner struct {
	Logger   logrus.FieldLogger
	Commands []Command
}

func NewNoopRunner(logger logrus.FieldLogger) *NoopRunner {
	return &NoopRunner{Logger: logger}
}

func (n *NoopRunner) Run(_ context.Context, c Command) (Result, error) {
	n.Commands = append(n.Commands, c)
	n.Logger.Infof("NOOP: %s", c.String())
	return Result{Success: true}, nil
}
