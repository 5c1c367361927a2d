package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"gardener/internal/domain"
)

// RabbitMQ publishes item events to a direct exchange bound to a durable
// queue.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declare sets up the durable exchange and queue and binds them.
func declare(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// ItemMessage is the JSON body of every published event.
type ItemMessage struct {
	Action    string       `json:"action"` // "item.discovered" or "item.downloaded"
	Item      ItemBody     `json:"item"`
	Pattern   *PatternBody `json:"pattern,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type ItemBody struct {
	ID                  int64      `json:"id"`
	ExternalID          string     `json:"external_id"`
	Title               string     `json:"title"`
	PayloadPath         string     `json:"payload_path,omitempty"`
	PatternID           int64      `json:"pattern_id,omitempty"`
	AddedAt             time.Time  `json:"added_at"`
	DownloadStartedAt   *time.Time `json:"download_started_at,omitempty"`
	DownloadCompletedAt *time.Time `json:"download_completed_at,omitempty"`
}

type PatternBody struct {
	ID         int64  `json:"id"`
	Expression string `json:"expression"`
}

func newItemMessage(event domain.ItemEvent, now time.Time) ItemMessage {
	item := event.Item
	msg := ItemMessage{
		Action: event.Action,
		Item: ItemBody{
			ID:                  item.ID,
			ExternalID:          item.ExternalID,
			Title:               item.Title,
			PayloadPath:         item.PayloadPath,
			PatternID:           item.PatternID,
			AddedAt:             item.AddedAt,
			DownloadStartedAt:   item.DownloadStartedAt,
			DownloadCompletedAt: item.DownloadCompletedAt,
		},
		Timestamp: now,
	}
	if event.Pattern != nil {
		msg.Pattern = &PatternBody{ID: event.Pattern.ID, Expression: event.Pattern.Expression}
	}
	return msg
}

func (r *RabbitMQ) Publish(ctx context.Context, event domain.ItemEvent) error {
	now := time.Now().UTC()

	body, err := json.Marshal(newItemMessage(event, now))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Type:         event.Action,
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published item event",
		"external_id", event.Item.ExternalID,
		"action", event.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn("close channel", "error", err)
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
