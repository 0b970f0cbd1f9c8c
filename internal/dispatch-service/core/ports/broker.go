package ports

import (
	"context"

	messagebrokerdto "haul-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	PaymentResults = "payment.*"
)

type IDispatchBroker interface {
	Close() error
	IsAlive() bool
	// PublishEvent mirrors an appended event to downstream subscribers. The
	// event log stays authoritative; a failed mirror is never retried.
	PublishEvent(ctx context.Context, event model.Event) error
	PublishPayout(ctx context.Context, msg messagebrokerdto.PayoutFinalize) error

	Consume(ctx context.Context, queue, bindingKey string) (<-chan amqp.Delivery, error)
}

// IFeedNotifier wakes long-poll readers early. It only ever hints: readers
// still confirm against the event log and keep their retry cadence. The wake
// channel is never closed; stop releases the subscription.
type IFeedNotifier interface {
	Notify(ctx context.Context, channel string, seq int64) error
	Subscribe(ctx context.Context, channel string) (wake <-chan struct{}, stop func(), err error)
}
