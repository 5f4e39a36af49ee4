// Package relay forwards committed production order transitions to a
// RabbitMQ topic exchange for downstream services (notification senders,
// reporting). Demo orders are never relayed.
package relay

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"food-distribution-api/hub"
	"food-distribution-api/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Channel is the part of *amqp.Channel the relay uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMq struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
}

// OrderMessage is the relayed payload. It carries no prices.
type OrderMessage struct {
	OrderID      string            `json:"order_id"`
	RestaurantID string            `json:"restaurant_id"`
	DriverID     string            `json:"driver_id,omitempty"`
	Action       models.Action     `json:"action"`
	FromState    models.OrderState `json:"from_state,omitempty"`
	ToState      models.OrderState `json:"to_state"`
	Version      int64             `json:"version"`
	At           time.Time         `json:"at"`
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*RabbitMq, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	r, err := NewRabbitMq(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.conn = conn
	return r, nil
}

// NewRabbitMq declares a durable topic exchange on ch.
func NewRabbitMq(ch Channel, exchange string) (*RabbitMq, error) {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &RabbitMq{channel: ch, exchange: exchange}, nil
}

// RoutingKey is "order.<to_state>", e.g. "order.out_for_delivery".
func RoutingKey(to models.OrderState) string {
	return "order." + strings.ToLower(string(to))
}

// Publish relays one committed change. Demo orders are skipped.
func (r *RabbitMq) Publish(ctx context.Context, ev hub.OrderStateChanged) error {
	if ev.Order.Dataset != models.DatasetProduction {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := OrderMessage{
		OrderID:      ev.Order.ID,
		RestaurantID: ev.Order.RestaurantID,
		Action:       ev.Action,
		FromState:    ev.From,
		ToState:      ev.Order.State,
		Version:      ev.Order.Version,
		At:           ev.At,
	}
	if ev.Order.DriverID != nil {
		msg.DriverID = *ev.Order.DriverID
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		RoutingKey(ev.Order.State),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.Order.ID + ":" + strconv.FormatInt(ev.Order.Version, 10),
			Timestamp:    ev.At,
			Body:         body,
		})
}

func (r *RabbitMq) Close() error {
	err := r.channel.Close()
	if r.conn != nil {
		if cerr := r.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
