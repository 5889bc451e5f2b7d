// Package mrabbitmq is a thin connection hub over amqp091-go, grounded on
// the teacher's mrabbitmq connector. It backs the persistence queue's
// durability overflow path (SPEC_FULL.md §4.3), not the primary in-process
// channel substrate.
package mrabbitmq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/creatorplatform/gateway-core/pkg/mlog"
)

// Connection is a hub which deals with a single RabbitMQ connection/channel.
type Connection struct {
	URL    string
	Logger mlog.Logger

	conn      *amqp091.Connection
	channel   *amqp091.Channel
	connected bool
}

// Connect dials the broker and opens one channel.
func (c *Connection) Connect() error {
	conn, err := amqp091.Dial(c.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch
	c.connected = true

	c.Logger.Info("connected to rabbitmq")

	return nil
}

// Channel returns the open channel, connecting lazily.
func (c *Connection) Channel() (*amqp091.Channel, error) {
	if !c.connected {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return c.channel, nil
}

// Close tears down the channel and connection.
func (c *Connection) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
