package context

import (
	gocontext "context"

	"github.com/sirupsen/logrus"
)

// Context extends the regular golang context.Context interface with
// functionalities such as access to a logger scoped with the run, task and
// step identifiers.
type Context interface {
	gocontext.Context
	Logger() *logrus.Entry
	RunID() string
	CorrelationID() string
	TaskName() string
	StepID() string
	ExecutionID() string
}

// Background returns a non-nil, empty Context.
func Background() Context {
	return ctx{
		Context: gocontext.Background(),
	}
}

// FromContext returns a new context from the given go context.
func FromContext(c gocontext.Context) Context {
	return ctx{
		Context: c,
	}
}

// WithCancel returns a copy of the context with a new cancel function.
func WithCancel(c Context) (Context, gocontext.CancelFunc) {
	gc, cancel := gocontext.WithCancel(c)
	return ctx{
		gc,
		c.RunID(),
		c.CorrelationID(),
		c.TaskName(),
		c.StepID(),
		c.ExecutionID(),
	}, cancel
}

// WithRunID returns a copy of the context with a runID.
func WithRunID(c Context, runID string) Context {
	return ctx{
		c,
		runID,
		c.CorrelationID(),
		c.TaskName(),
		c.StepID(),
		c.ExecutionID(),
	}
}

// WithCorrelationID returns a copy of the context with a correlationID.
func WithCorrelationID(c Context, correlationID string) Context {
	return ctx{
		c,
		c.RunID(),
		correlationID,
		c.TaskName(),
		c.StepID(),
		c.ExecutionID(),
	}
}

// WithTaskName returns a copy of the context with a task name.
func WithTaskName(c Context, task string) Context {
	return ctx{
		c,
		c.RunID(),
		c.CorrelationID(),
		task,
		c.StepID(),
		c.ExecutionID(),
	}
}

// WithStepID returns a copy of the context with a stepID.
func WithStepID(c Context, stepID string) Context {
	return ctx{
		c,
		c.RunID(),
		c.CorrelationID(),
		c.TaskName(),
		stepID,
		c.ExecutionID(),
	}
}

// WithExecutionID returns a copy of the context with an executionID.
func WithExecutionID(c Context, executionID string) Context {
	return ctx{
		c,
		c.RunID(),
		c.CorrelationID(),
		c.TaskName(),
		c.StepID(),
		executionID,
	}
}

type ctx struct {
	gocontext.Context
	runID         string
	correlationID string
	task          string
	stepID        string
	executionID   string
}

func (c ctx) Logger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	e := logrus.NewEntry(l)
	if c.RunID() != "" {
		e = e.WithField("run_id", c.RunID())
	}
	if c.TaskName() != "" {
		e = e.WithField("task", c.TaskName())
	}
	if c.StepID() != "" {
		e = e.WithField("step", c.StepID())
	}
	return e
}

func (c ctx) RunID() string {
	return c.runID
}

func (c ctx) CorrelationID() string {
	return c.correlationID
}

func (c ctx) TaskName() string {
	return c.task
}

func (c ctx) StepID() string {
	return c.stepID
}

func (c ctx) ExecutionID() string {
	return c.executionID
}
