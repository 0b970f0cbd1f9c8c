package bm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"haul-dispatch/internal/config"
	messagebrokerdto "haul-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// outbound: event mirror and payout messages
	dispatchExchange = "dispatch_topic"
	// inbound: results from the payment processor
	paymentExchange = "payment_topic"

	payoutRoutingKey = "payout.finalize"

	reconnInterval = 10
	confirmTimeout = 5 * time.Second
)

var ErrClosed = errors.New("connection is closed")

type RabbitMQ struct {
	ctx          context.Context
	cfg          config.RabbitMqconfig
	mylog        mylogger.Logger
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	mu           *sync.Mutex
}

// create RabbitMQ adapter
func New(ctx context.Context, rabbitmqCfg config.RabbitMqconfig, mylog mylogger.Logger) (ports.IDispatchBroker, error) {
	r := &RabbitMQ{
		ctx:          ctx,
		cfg:          rabbitmqCfg,
		mylog:        mylog,
		mu:           &sync.Mutex{},
		reconnecting: false,
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %v", err)
	}
	return r, nil
}

// PublishEvent mirrors an event as event.<kind>, e.g. event.job or event.admins.
func (r *RabbitMQ) PublishEvent(ctx context.Context, event model.Event) error {
	msg := messagebrokerdto.FeedEvent{
		ID:        event.ID,
		Channel:   event.Channel,
		Type:      event.Type,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	}
	return r.publish(ctx, eventRoutingKey(event.Channel), msg, amqp.Transient, false)
}

// PublishPayout waits for the broker to confirm the message.
func (r *RabbitMQ) PublishPayout(ctx context.Context, msg messagebrokerdto.PayoutFinalize) error {
	return r.publish(ctx, payoutRoutingKey, msg, amqp.Persistent, true)
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey string, message any, mode uint8, confirm bool) error {
	mylog := r.mylog.Action("publish").With("routing_key", routingKey)

	ch, err := r.channel()
	if err != nil {
		mylog.Error("connection between rabbitmq is closed", err)
		go r.reconnect(r.ctx)
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, dispatchExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return err
	}
	if !confirm || dc == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := dc.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", routingKey)
	}
	return nil
}

// Consume declares queue, binds it to the payment exchange with bindingKey
// and starts a manual-ack consumer.
func (r *RabbitMQ) Consume(ctx context.Context, queue, bindingKey string) (<-chan amqp.Delivery, error) {
	ch, err := r.channel()
	if err != nil {
		go r.reconnect(r.ctx)
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, bindingKey, paymentExchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
}

func (r *RabbitMQ) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check if both connection and channel are initialized and not closed
	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	if r.ch == nil || r.ch.IsClosed() {
		return false
	}

	return true
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %v", err)
		}
	}

	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %v", err)
		}
	}
	return nil
}

func (r *RabbitMQ) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() || r.ch == nil || r.ch.IsClosed() {
		return nil, ErrClosed
	}
	return r.ch, nil
}

// connect to rabbitmq and declare both exchanges
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(fmt.Sprintf("amqp://%v:%v@%v:%v/%v",
		r.cfg.User,
		r.cfg.Password,
		r.cfg.Host,
		r.cfg.Port,
		r.cfg.VHost,
	))
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return err
	}
	for _, ex := range []string{dispatchExchange, paymentExchange} {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	t := time.NewTicker(time.Second * reconnInterval)
	defer t.Stop()
	mylog := r.mylog.Action("mb_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				mylog.Action("mb_reconnection_completed").Info("Successfully reconnected!")
				r.mu.Lock()
				r.reconnecting = false
				r.mu.Unlock()
				return
			}
			mylog.Info("rabbitmq failed to reconnect")

		case <-ctx.Done():
			return
		}
	}
}

func eventRoutingKey(channel string) string {
	switch kind, _ := model.ParseChannel(channel); kind {
	case model.ChannelKindJob:
		return "event.job"
	case model.ChannelKindDriver:
		return "event.driver"
	case model.ChannelKindCustomer:
		return "event.customer"
	case model.ChannelKindAdmins:
		return "event.admins"
	case model.ChannelKindAllDrivers:
		return "event.all_drivers"
	}
	return "event.unknown"
}
