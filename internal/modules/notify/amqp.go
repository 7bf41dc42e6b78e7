// README: AMQP publisher implementation of the Dispatcher boundary.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"waycart/internal/types"
)

// AMQPDispatcher publishes envelopes to a topic exchange. Publish failures
// are logged and swallowed; the triggering order mutation has already
// committed and must stand.
type AMQPDispatcher struct {
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func NewAMQPDispatcher(ch *amqp.Channel, exchange string, log *zap.Logger) *AMQPDispatcher {
	return &AMQPDispatcher{ch: ch, exchange: exchange, log: log}
}

func (d *AMQPDispatcher) VendorOrderRequested(ctx context.Context, vendorID types.ID, summary OrderSummary) {
	d.publish(ctx, "vendor.quote_request", Envelope{
		Kind:     KindQuoteRequest,
		VendorID: vendorID,
		OrderID:  summary.OrderID,
		Order:    &summary,
	})
}

func (d *AMQPDispatcher) CustomerQuoteReceived(ctx context.Context, userID, orderID types.ID, quote QuoteSummary) {
	d.publish(ctx, "customer.quote_received", Envelope{
		Kind:    KindQuoteReceived,
		UserID:  userID,
		OrderID: orderID,
		Quote:   &quote,
	})
}

func (d *AMQPDispatcher) VendorConfirmed(ctx context.Context, vendorID, orderID types.ID) {
	d.publish(ctx, "vendor.confirmed", Envelope{
		Kind:     KindConfirmed,
		VendorID: vendorID,
		OrderID:  orderID,
	})
}

func (d *AMQPDispatcher) VendorsLost(ctx context.Context, orderID types.ID, vendorIDs []types.ID) {
	for _, id := range vendorIDs {
		d.publish(ctx, "vendor.lost", Envelope{
			Kind:     KindLost,
			VendorID: id,
			OrderID:  orderID,
		})
	}
}

func (d *AMQPDispatcher) OrderStatusChanged(ctx context.Context, userID, orderID types.ID, status string) {
	d.publish(ctx, "customer.status_changed", Envelope{
		Kind:    KindStatusChanged,
		UserID:  userID,
		OrderID: orderID,
		Status:  status,
	})
}

func (d *AMQPDispatcher) publish(ctx context.Context, routingKey string, env Envelope) {
	env.CreatedAt = time.Now().UTC()
	body, err := json.Marshal(env)
	if err != nil {
		d.log.Error("notify: marshal envelope", zap.Error(err))
		return
	}
	err = d.ch.PublishWithContext(ctx, d.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		d.log.Error("notify: publish",
			zap.String("routing_key", routingKey),
			zap.String("order_id", string(env.OrderID)),
			zap.Error(err))
	}
}
