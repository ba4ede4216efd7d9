// Package worker is the library remote step workers are built on. A
// worker consumes SUBMIT events from the submit queue, executes the step
// and reports RUN/SUCCESS/ERROR events back.
package worker

import (
	"os"
	"time"

	"github.com/GregDritschler/tekton-tutorial/pkg/broker"
	"github.com/GregDritschler/tekton-tutorial/pkg/broker/events"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// EnvSubmitQueue is the queue the worker consumes step submissions from.
	EnvSubmitQueue = "SUBMIT_QUEUE"
	// EnvPublishQueue is the queue the worker publishes lifecycle events to.
	EnvPublishQueue = "PUBLISH_QUEUE"
	envSandbox      = "SANDBOX"

	defaultSubmitQueue  = "tutorial.steps"
	defaultPublishQueue = "tutorial.events"
)

// StepPayload is the decoded data of a SUBMIT event.
type StepPayload struct {
	Image   string            `json:"image" mapstructure:"image"`
	Command string            `json:"command" mapstructure:"command"`
	Args    []string          `json:"args" mapstructure:"args"`
	Env     map[string]string `json:"env" mapstructure:"env"`
}

// Func is the function to be executed by the worker for each received SUBMIT event.
type Func func(ctx context.Context, request interface{}) (response interface{}, err error)

// Start starts receiving events and executes the given function.
func Start(f Func) {
	ctx := context.Background()

	startFunc := start
	// Check sandbox mode
	s := os.Getenv(envSandbox)
	if s == "true" {
		ctx.Logger().Info("SANDBOX mode activated")
		startFunc = sandbox
	}

	if err := startFunc(ctx, f); err != nil {
		ctx.Logger().Fatal(err)
		os.Exit(1)
	}
}

// start starts the worker
func start(ctx context.Context, f Func) error {
	submitQName := os.Getenv(EnvSubmitQueue)
	if submitQName == "" {
		submitQName = defaultSubmitQueue
	}
	publishQName := os.Getenv(EnvPublishQueue)
	if publishQName == "" {
		publishQName = defaultPublishQueue
	}

	ctx.Logger().Infof("starting worker on queue %s", submitQName)

	q, err := broker.NewFromEnv(ctx)
	if err != nil {
		return errors.Wrapf(err, "cannot create new broker")
	}

	return q.Receive(ctx, wrap(q, publishQName, f), nil, submitQName, filterEvent())
}

// filterEvent rejects events that are not step submissions.
func filterEvent() broker.ReceiveOption {
	return func(ctx context.Context, evt *events.Event) error {
		if evt.Type != events.TypeSubmit {
			return errors.Errorf("event is not type %s", events.TypeSubmit)
		}
		return nil
	}
}

// wrap calls f and sends events to the given broker
func wrap(b broker.Broker, qname string, f Func) broker.HandleFunc {
	return func(ctx context.Context, evt events.Event) error {
		// Generate executionID
		ctx = context.WithExecutionID(ctx, uuid.New().String())

		// Send RUN event
		runEvt := newEvent(ctx, events.TypeRun, events.RunEventData{ExecutionID: ctx.ExecutionID()})
		err := b.Publish(ctx, runEvt, qname, "")
		if err != nil {
			return errors.Wrapf(err, "cannot publish RUN event %s", runEvt)
		}

		// Run WorkerFunc
		result, err := f(ctx, evt.Data)

		var e events.Event
		if err != nil {
			e = newEvent(ctx, events.TypeError, events.ErrorEventData{Message: err.Error()})
		} else {
			e = newEvent(ctx, events.TypeSuccess, result)
		}
		// Send event
		err = b.Publish(ctx, e, qname, "")
		if err != nil {
			return errors.Wrapf(err, "cannot publish event %s", e)
		}
		return nil
	}
}

// newEvent returns a new events.Event from the given context
func newEvent(ctx context.Context, typ events.EventType, payload interface{}) events.Event {
	return events.Event{
		Type:          typ,
		CorrelationID: ctx.CorrelationID(),
		RunID:         ctx.RunID(),
		TaskName:      ctx.TaskName(),
		StepID:        ctx.StepID(),
		ExecutionID:   ctx.ExecutionID(),
		Data:          payload,
		Time:          time.Now(),
	}
}
