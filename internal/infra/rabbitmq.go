// README: RabbitMQ connection wrapper for the notification queue.
package infra

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPClient owns one connection and one channel; the publisher and the
// notifier worker each hold their own client.
type AMQPClient struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(url string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &AMQPClient{conn: conn, ch: ch}, nil
}

func (c *AMQPClient) Channel() *amqp.Channel { return c.ch }

func (c *AMQPClient) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// DeclareTopology creates the notification exchange and queue and binds them.
// Idempotent; both binaries call it at startup.
func (c *AMQPClient) DeclareTopology(exchange, queue string) error {
	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(queue, "#", exchange, false, nil)
}
