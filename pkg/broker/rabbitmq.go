package broker

import (
	"encoding/json"
	"fmt"

	"github.com/GregDritschler/tekton-tutorial/pkg/api"
	"github.com/GregDritschler/tekton-tutorial/pkg/broker/events"
	"github.com/GregDritschler/tekton-tutorial/pkg/util/context"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const (
	// RabbitMQType Broker type RabbitMQ
	RabbitMQType Type = "rabbitmq"
)

func init() {
	f := func(ctx context.Context, c interface{}) (Broker, error) {
		asRabbitMQConf, isRabbitMQConf := c.(*RabbitMQConfig)
		if !isRabbitMQConf {
			return nil, errors.Errorf("given configuration struct is not type %v", RabbitMQConfig{})
		}
		return NewRabbitMQBroker(ctx, *asRabbitMQConf)
	}
	register(RabbitMQType, f, &RabbitMQConfig{})
}

type rabbitmq struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	config RabbitMQConfig
}

// RabbitMQConfig is configuration for rabbitmq broker implementation
type RabbitMQConfig struct {
	User     string `json:"user" env:"BROKER_RABBITMQ_USER"`
	Password string `json:"password" env:"BROKER_RABBITMQ_PASSWORD"`
	URI      string `json:"uri" env:"BROKER_RABBITMQ_URI"`
}

// NewRabbitMQBroker returns a Broker implementation based on RabbitMQ.
func NewRabbitMQBroker(ctx context.Context, conf RabbitMQConfig) (Broker, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s", conf.User, conf.Password, conf.URI)
	ctx.Logger().Infof("connecting to rabbitmq at '%s'", conf.URI)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to rabbitmq at '%s'", conf.URI)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "cannot open channel to rabbitmq")
	}
	err = ch.Qos(1, 0, false)
	if err != nil {
		return nil, errors.Wrap(err, "cannot set rabbitmq Qos controls")
	}
	return &rabbitmq{
		conn:   conn,
		ch:     ch,
		config: conf,
	}, nil
}

func (q *rabbitmq) Publish(ctx context.Context, evt events.Event, qname, routingkey string) error {
	ctx.Logger().Tracef("publishing event %s to exchange %s", evt, qname)
	headers := amqp.Table{
		api.HeaderRunID:         evt.RunID,
		api.HeaderTaskName:      evt.TaskName,
		api.HeaderStepID:        evt.StepID,
		api.HeaderCorrelationID: evt.CorrelationID,
		api.HeaderExecutionID:   evt.ExecutionID,
		api.HeaderType:          string(evt.Type),
	}

	data := evt.Data
	if data == nil {
		data = struct{}{}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return q.ch.Publish(
		qname,      // exchange
		routingkey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Headers:     headers,
		})
}

func (q *rabbitmq) Receive(ctx context.Context, f HandleFunc, ferr ErrorHandler, qname string, options ...ReceiveOption) error {
	ctx.Logger().Infof("receiving events from queue %s", qname)
	msgs, err := q.ch.Consume(
		qname,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "cannot register consumer to queue %s", qname)
	}

	for d := range msgs {
		// Unmarshal body
		var data interface{}
		switch d.ContentType {
		case "application/json":
			if err := json.Unmarshal(d.Body, &data); err != nil {
				d.Reject(false)
				return errors.Wrapf(err, "cannot unmarshal received event %s for step %s of task %s, dropping event", d.Headers[api.HeaderType], d.Headers[api.HeaderStepID], d.Headers[api.HeaderTaskName])
			}
		default:
			ctx.Logger().Warnf("received event with unsupported content-type %s, dropping event", d.ContentType)
			d.Reject(false)
			continue
		}

		// Create event
		runID := header(d.Headers, api.HeaderRunID)
		correlationID := header(d.Headers, api.HeaderCorrelationID)
		evt := events.Event{
			Type:          events.EventType(header(d.Headers, api.HeaderType)),
			CorrelationID: correlationID,
			RunID:         runID,
			TaskName:      header(d.Headers, api.HeaderTaskName),
			StepID:        header(d.Headers, api.HeaderStepID),
			ExecutionID:   header(d.Headers, api.HeaderExecutionID),
			Data:          data,
		}

		// Create context
		ctx := context.Background()
		ctx = context.WithRunID(ctx, runID)
		ctx = context.WithCorrelationID(ctx, correlationID)
		ctx = context.WithTaskName(ctx, evt.TaskName)
		ctx = context.WithStepID(ctx, evt.StepID)

		// Apply options
		for _, o := range options {
			if err := o(ctx, &evt); err != nil {
				err = errors.Wrapf(err, "cannot handle received event %s", evt)
				ctx.Logger().Trace(err)
				nack(ctx, evt, &d)
			}
		}

		if err := f(ctx, evt); err != nil {
			ctx.Logger().Errorf("cannot handle event %s, %s", evt, err)
			if ferr != nil {
				ferr(ctx, err)
			}
			if errors.As(err, &api.ErrNotFound{}) {
				reject(ctx, evt, &d)
			} else {
				nack(ctx, evt, &d)
			}
			continue
		}
		ack(ctx, evt, &d)
	}
	return errors.New("delivery channel closed")
}

func header(t amqp.Table, key string) string {
	if v, ok := t[key]; ok {
		if s, isString := v.(string); isString {
			return s
		}
	}
	return ""
}

// ack acknowledge the event and log error if the acknowledgment returns an error.
func ack(ctx context.Context, evt events.Event, d *amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		ctx.Logger().Errorf("cannot ack event %s, %s", evt, err)
	}
}

// nack negatively acknowledge the event, requeueing it, and log error if the acknowledgment returns an error.
func nack(ctx context.Context, evt events.Event, d *amqp.Delivery) {
	if err := d.Nack(false, true); err != nil {
		ctx.Logger().Errorf("cannot nack event %s, %s", evt, err)
	}
}

// reject negatively acknowledge the event without requeueing.
func reject(ctx context.Context, evt events.Event, d *amqp.Delivery) {
	if err := d.Reject(false); err != nil {
		ctx.Logger().Errorf("cannot reject event %s, %s", evt, err)
	}
}

func (q *rabbitmq) CreateQueue(ctx context.Context, name, bindTo string) error {
	ctx.Logger().Tracef("creating queue %s bound to exchange %s", name, bindTo)
	_, err := q.ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrapf(err, "cannot declare queue %s", name)
	}

	err = q.ch.QueueBind(
		name,   // queue name
		"",     // routing key
		bindTo, // exchange
		false,
		amqp.Table{
			"x-match":          "all", //x-match = all means all headers must match for the routing,
			api.HeaderRunID:    ctx.RunID(),
			api.HeaderTaskName: ctx.TaskName(),
		},
	)
	if err != nil {
		return errors.Wrapf(err, "cannot bind queue %s to exchange %s with routing headers %s=%s and %s=%s", name, bindTo, api.HeaderRunID, ctx.RunID(), api.HeaderTaskName, ctx.TaskName())
	}
	return nil
}

func (q *rabbitmq) DeleteQueue(ctx context.Context, name string) error {
	ctx.Logger().Tracef("deleting queue %s", name)
	q.ch.QueueDelete(
		name, //queue name
		false,
		false,
		false,
	)
	return nil
}

func (q *rabbitmq) Close() error {
	if err := q.ch.Close(); err != nil {
		return err
	}
	if err := q.conn.Close(); err != nil {
		return err
	}
	return nil
}
