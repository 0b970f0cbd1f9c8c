package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	messagebrokerdto "haul-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	paymentResultsQueue = "payment_results"
	resubscribeInterval = 5 * time.Second
)

// Payments turns payment processor results into bookings or customer
// notifications.
type Payments struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	log      mylogger.Logger
	consumer ports.IDispatchBroker
	jobs     ports.IJobService
	feed     ports.IFeedService
}

func New(
	ctx context.Context,
	wg *sync.WaitGroup,
	log mylogger.Logger,
	consumer ports.IDispatchBroker,
	jobs ports.IJobService,
	feed ports.IFeedService,
) *Payments {
	return &Payments{
		ctx:      ctx,
		wg:       wg,
		log:      log,
		consumer: consumer,
		jobs:     jobs,
		feed:     feed,
	}
}

// Run subscribes once synchronously so a broken topology fails startup,
// then keeps the subscription alive in the background.
func (p *Payments) Run() error {
	ch, err := p.consumer.Consume(p.ctx, paymentResultsQueue, ports.PaymentResults)
	if err != nil {
		return err
	}

	p.wg.Add(1)
	go p.work(p.ctx, ch, p.PaymentResult)
	return nil
}

func (p *Payments) work(ctx context.Context, ch <-chan amqp.Delivery, Do func(msg amqp.Delivery) error) {
	log := p.log.Action("work")
	defer func() {
		log.Info("payment worker is done")
		p.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-ch:
			if ok {
				_ = Do(msg)
				continue
			}
			// deliveries channel closes with the broker connection
			ch = p.resubscribe(ctx)
			if ch == nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Payments) resubscribe(ctx context.Context) <-chan amqp.Delivery {
	log := p.log.Action("resubscribe")
	t := time.NewTicker(resubscribeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			ch, err := p.consumer.Consume(ctx, paymentResultsQueue, ports.PaymentResults)
			if err == nil {
				log.Info("payment results resubscribed")
				return ch
			}
			log.Warn("cannot resubscribe to payment results", "error", err.Error())
		}
	}
}

func (p *Payments) PaymentResult(msg amqp.Delivery) error {
	log := p.log.Action("PaymentResult")

	m := messagebrokerdto.PaymentResult{}
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		log.Error("cannot unmarshal", err)
		msg.Nack(false, false)
		return err
	}
	log = log.With("payment_reference", m.PaymentReference, "customer_id", m.CustomerID, "status", m.Status)
	if m.PaymentReference == "" || m.CustomerID == "" {
		err := errors.New("payment result without reference or customer")
		log.Error("dropping payment result", err)
		msg.Nack(false, false)
		return err
	}

	ctx, cancel := context.WithTimeout(p.ctx, 15*time.Second)
	defer cancel()

	switch m.Status {
	case messagebrokerdto.PaymentPaid:
		booking := m.Booking
		booking.PaymentReference = m.PaymentReference
		created, err := p.jobs.Create(ctx, model.Actor{ID: m.CustomerID, Role: model.RoleCustomer}, booking)
		if err != nil {
			// a booking that cannot be priced will never succeed on retry
			requeue := !errors.Is(err, myerrors.ErrValidation)
			log.Error("cannot book paid job", err, "requeue", requeue)
			msg.Nack(false, requeue)
			return err
		}
		log.Info("paid job booked", "job_id", created.JobID)

	case messagebrokerdto.PaymentFailed:
		payload, err := json.Marshal(dto.PaymentFailedPayload{PaymentReference: m.PaymentReference, Reason: m.Reason})
		if err != nil {
			msg.Nack(false, false)
			return err
		}
		if _, err := p.feed.Append(ctx, model.CustomerChannel(m.CustomerID), model.EventPaymentFailed, payload); err != nil {
			log.Error("cannot append payment_failed", err)
			msg.Nack(false, true)
			return err
		}
		log.Info("payment failure reported to customer")

	default:
		err := errors.New("unknown payment status " + m.Status)
		log.Error("dropping payment result", err)
		msg.Nack(false, false)
		return err
	}

	return msg.Ack(false)
}
