package runtime

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/GregDritschler/tekton-tutorial/pkg/broker"
	"github.com/GregDritschler/tekton-tutorial/pkg/broker/events"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	defaultSubmitQueue = "tutorial.steps"
	defaultEventsQueue = "tutorial.events"
)

// BrokerRuntimeConfig configures the broker backed Runtime.
type BrokerRuntimeConfig struct {
	// SubmitQueue is the queue workers consume step submissions from.
	SubmitQueue string `json:"submit_queue" env:"RUNTIME_SUBMIT_QUEUE"`
	// EventsQueue is the queue workers publish lifecycle events to.
	EventsQueue string `json:"events_queue" env:"RUNTIME_EVENTS_QUEUE"`
}

// NewBrokerRuntime returns a Runtime handing steps to remote workers
// through the given broker. It starts consuming worker events immediately;
// results are correlated to in-flight steps by correlation id.
func NewBrokerRuntime(ctx context.Context, b broker.Broker, conf BrokerRuntimeConfig) (Runtime, error) {
	if conf.SubmitQueue == "" {
		conf.SubmitQueue = defaultSubmitQueue
	}
	if conf.EventsQueue == "" {
		conf.EventsQueue = defaultEventsQueue
	}
	rt := &brokerRuntime{
		b:       b,
		conf:    conf,
		waiting: make(map[string]chan events.Event),
	}
	go func() {
		if err := b.Receive(ctx, rt.handleEvent, nil, conf.EventsQueue); err != nil {
			ctx.Logger().Errorf("event consumer stopped, %s", err)
		}
	}()
	return rt, nil
}

type brokerRuntime struct {
	b    broker.Broker
	conf BrokerRuntimeConfig

	mu      sync.Mutex
	waiting map[string]chan events.Event
}

func (rt *brokerRuntime) RunStep(ctx context.Context, req StepRequest) (string, error) {
	correlationID := uuid.New().String()
	ch := make(chan events.Event, 2)
	rt.mu.Lock()
	rt.waiting[correlationID] = ch
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		delete(rt.waiting, correlationID)
		rt.mu.Unlock()
	}()

	env := make(map[string]string, len(req.Env)+1)
	for k, v := range req.Env {
		env[k] = v
	}
	if req.ServiceAccount != "" {
		env[EnvServiceAccount] = req.ServiceAccount
	}

	evt := events.Event{
		Type:          events.TypeSubmit,
		RunID:         req.RunID,
		TaskName:      req.TaskName,
		StepID:        strconv.Itoa(req.Index),
		CorrelationID: correlationID,
		Data: map[string]interface{}{
			"image":   req.Step.Image,
			"command": req.Step.Command,
			"args":    req.Step.Args,
			"env":     env,
		},
	}
	if err := rt.b.Publish(ctx, evt, rt.conf.SubmitQueue, ""); err != nil {
		return "", errors.Wrapf(err, "cannot submit step %s", req.Step.Name)
	}
	ctx.Logger().Tracef("submitted step %s with correlation id %s", req.Step.Name, correlationID)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case evt := <-ch:
			switch evt.Type {
			case events.TypeRun:
				// worker picked the step up, keep waiting
			case events.TypeSuccess:
				return eventLog(evt), nil
			case events.TypeError:
				return "", errors.Errorf("step %s failed: %s", req.Step.Name, eventMessage(evt))
			}
		}
	}
}

// handleEvent routes a worker event to the goroutine waiting on its
// correlation id. Events for unknown correlation ids are dropped; they
// belong to a scheduler instance that is gone.
func (rt *brokerRuntime) handleEvent(ctx context.Context, evt events.Event) error {
	rt.mu.Lock()
	ch, ok := rt.waiting[evt.CorrelationID]
	rt.mu.Unlock()
	if !ok {
		ctx.Logger().Tracef("dropping event %s with unknown correlation id %s", evt, evt.CorrelationID)
		return nil
	}
	select {
	case ch <- evt:
	default:
	}
	return nil
}

func (rt *brokerRuntime) Close() error {
	return rt.b.Close()
}

func eventMessage(evt events.Event) string {
	if m, ok := evt.Data.(map[string]interface{}); ok {
		if msg, ok := m["message"].(string); ok {
			return msg
		}
	}
	return fmt.Sprintf("%v", evt.Data)
}

func eventLog(evt events.Event) string {
	if m, ok := evt.Data.(map[string]interface{}); ok {
		if l, ok := m["log"].(string); ok {
			return l
		}
	}
	return ""
}
