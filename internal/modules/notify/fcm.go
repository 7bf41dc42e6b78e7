// README: Notification worker; drains the queue and delivers via FCM topics.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Sender is the slice of the FCM client the worker uses.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Worker consumes notification envelopes and pushes them to per-vendor /
// per-user FCM topics. Delivery is best effort: a failed send is logged and
// the message is not redelivered.
type Worker struct {
	ch    *amqp.Channel
	queue string
	fcm   Sender
	log   *zap.Logger
}

func NewWorker(ch *amqp.Channel, queue string, fcm Sender, log *zap.Logger) *Worker {
	return &Worker{ch: ch, queue: queue, fcm: fcm, log: log}
}

func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.ch.Consume(w.queue, "notifier", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, msg.Body)
		}
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		w.log.Error("notifier: bad envelope", zap.Error(err))
		return
	}
	msg := buildMessage(env)
	if msg == nil {
		w.log.Warn("notifier: unknown kind", zap.String("kind", string(env.Kind)))
		return
	}
	if _, err := w.fcm.Send(ctx, msg); err != nil {
		w.log.Error("notifier: fcm send",
			zap.String("kind", string(env.Kind)),
			zap.String("order_id", string(env.OrderID)),
			zap.Error(err))
		return
	}
	w.log.Info("notifier: delivered",
		zap.String("kind", string(env.Kind)),
		zap.String("order_id", string(env.OrderID)))
}

func buildMessage(env Envelope) *messaging.Message {
	data := map[string]string{
		"kind":     string(env.Kind),
		"order_id": string(env.OrderID),
	}
	switch env.Kind {
	case KindQuoteRequest:
		body := "A customer order on your route is waiting for a quote"
		if env.Order != nil {
			body = fmt.Sprintf("%d items, %.1f km detour. Quote before it expires", env.Order.ItemCount, env.Order.DetourKm)
		}
		return &messaging.Message{
			Topic:        vendorTopic(env),
			Notification: &messaging.Notification{Title: "New order request", Body: body},
			Data:         data,
		}
	case KindQuoteReceived:
		body := "A vendor responded to your order"
		if env.Quote != nil {
			body = fmt.Sprintf("Quote received: ₹%s", env.Quote.TotalPrice)
			data["vendor_id"] = string(env.Quote.VendorID)
		}
		return &messaging.Message{
			Topic:        userTopic(env),
			Notification: &messaging.Notification{Title: "New quote", Body: body},
			Data:         data,
		}
	case KindConfirmed:
		return &messaging.Message{
			Topic:        vendorTopic(env),
			Notification: &messaging.Notification{Title: "Quote accepted", Body: "Your quote was accepted. Please prepare the order."},
			Data:         data,
		}
	case KindLost:
		return &messaging.Message{
			Topic:        vendorTopic(env),
			Notification: &messaging.Notification{Title: "Order closed", Body: "This order was fulfilled by another vendor."},
			Data:         data,
		}
	case KindStatusChanged:
		data["status"] = env.Status
		return &messaging.Message{
			Topic:        userTopic(env),
			Notification: &messaging.Notification{Title: "Order update", Body: fmt.Sprintf("Your order is now %s", env.Status)},
			Data:         data,
		}
	}
	return nil
}

func vendorTopic(env Envelope) string { return "vendor_" + string(env.VendorID) }
func userTopic(env Envelope) string   { return "user_" + string(env.UserID) }
