package broker

import (
	"encoding/json"

	"github.com/GregDritschler/tekton-tutorial/pkg/broker/events"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	nats "github.com/nats-io/go-nats"
	"github.com/pkg/errors"
)

const (
	// NatsType Broker type NATS
	NatsType Type = "nats"
)

func init() {
	f := func(ctx context.Context, c interface{}) (Broker, error) {
		asNatsConf, isNatsConf := c.(*NatsConfig)
		if !isNatsConf {
			return nil, errors.Errorf("given configuration struct is not type %v", NatsConfig{})
		}
		return NewNatsBroker(ctx, *asNatsConf)
	}
	register(NatsType, f, &NatsConfig{})
}

// NatsConfig is configuration for nats broker implementation
type NatsConfig struct {
	URI string `json:"uri" env:"BROKER_NATS_URI"`
}

// envelope is the wire format of an event on a nats subject. Unlike
// rabbitmq there are no message headers, so identifiers travel in the
// payload.
type envelope struct {
	Type          events.EventType `json:"type"`
	RunID         string           `json:"run_id"`
	TaskName      string           `json:"task"`
	StepID        string           `json:"step"`
	CorrelationID string           `json:"correlation_id"`
	ExecutionID   string           `json:"execution_id"`
	Data          interface{}      `json:"data,omitempty"`
}

type natsBroker struct {
	conn *nats.Conn
}

// NewNatsBroker returns a Broker implementation based on NATS.
// Queues are plain subjects, so CreateQueue and DeleteQueue do nothing.
func NewNatsBroker(ctx context.Context, conf NatsConfig) (Broker, error) {
	uri := conf.URI
	if uri == "" {
		uri = nats.DefaultURL
	}
	ctx.Logger().Infof("connecting to nats at '%s'", uri)
	conn, err := nats.Connect(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to nats at '%s'", uri)
	}
	return &natsBroker{conn: conn}, nil
}

func (b *natsBroker) Publish(ctx context.Context, evt events.Event, qname, routingkey string) error {
	ctx.Logger().Tracef("publishing event %s to subject %s", evt, qname)
	body, err := json.Marshal(envelope{
		Type:          evt.Type,
		RunID:         evt.RunID,
		TaskName:      evt.TaskName,
		StepID:        evt.StepID,
		CorrelationID: evt.CorrelationID,
		ExecutionID:   evt.ExecutionID,
		Data:          evt.Data,
	})
	if err != nil {
		return errors.Wrap(err, "cannot marshal event")
	}
	return b.conn.Publish(qname, body)
}

func (b *natsBroker) Receive(ctx context.Context, f HandleFunc, ferr ErrorHandler, qname string, options ...ReceiveOption) error {
	ctx.Logger().Infof("receiving events from subject %s", qname)
	msgs := make(chan *nats.Msg, 64)
	sub, err := b.conn.ChanQueueSubscribe(qname, qname, msgs)
	if err != nil {
		return errors.Wrapf(err, "cannot subscribe to subject %s", qname)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("subscription channel closed")
			}
			var env envelope
			if err := json.Unmarshal(m.Data, &env); err != nil {
				ctx.Logger().Warnf("received malformed event on subject %s, dropping event", qname)
				continue
			}
			evt := events.Event{
				Type:          env.Type,
				RunID:         env.RunID,
				TaskName:      env.TaskName,
				StepID:        env.StepID,
				CorrelationID: env.CorrelationID,
				ExecutionID:   env.ExecutionID,
				Data:          env.Data,
			}

			mctx := context.Background()
			mctx = context.WithRunID(mctx, evt.RunID)
			mctx = context.WithCorrelationID(mctx, evt.CorrelationID)
			mctx = context.WithTaskName(mctx, evt.TaskName)
			mctx = context.WithStepID(mctx, evt.StepID)

			for _, o := range options {
				if err := o(mctx, &evt); err != nil {
					mctx.Logger().Trace(errors.Wrapf(err, "cannot handle received event %s", evt))
				}
			}

			if err := f(mctx, evt); err != nil {
				mctx.Logger().Errorf("cannot handle event %s, %s", evt, err)
				if ferr != nil {
					ferr(mctx, err)
				}
			}
		}
	}
}

// CreateQueue is a no-op, nats subjects need no declaration.
func (b *natsBroker) CreateQueue(ctx context.Context, name, bindTo string) error {
	return nil
}

// DeleteQueue is a no-op, nats subjects need no declaration.
func (b *natsBroker) DeleteQueue(ctx context.Context, name string) error {
	return nil
}

func (b *natsBroker) Close() error {
	b.conn.Close()
	return nil
}
