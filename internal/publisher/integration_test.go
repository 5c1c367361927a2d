//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"gardener/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishDiscovered() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-discovered",
		RoutingKey: "test-routing-key-discovered",
		QueueName:  "test-queue-discovered",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	event := domain.ItemEvent{
		Action: domain.ActionDiscovered,
		Item: domain.Item{
			ID:         1,
			ExternalID: "1001",
			Title:      "Test Item",
			AddedAt:    time.Now().Truncate(time.Millisecond),
		},
	}

	err = pub.Publish(s.ctx, event)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received ItemMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(domain.ActionDiscovered, received.Action)
	s.Equal("1001", received.Item.ExternalID)
	s.Equal("Test Item", received.Item.Title)
	s.Nil(received.Pattern)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishDownloaded() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-downloaded",
		RoutingKey: "test-routing-key-downloaded",
		QueueName:  "test-queue-downloaded",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	now := time.Now().Truncate(time.Millisecond)
	event := domain.ItemEvent{
		Action: domain.ActionDownloaded,
		Item: domain.Item{
			ID:                  2,
			ExternalID:          "1002",
			Title:               "Downloaded Item",
			PayloadPath:         "/data/torrents/item.torrent",
			PatternID:           3,
			AddedAt:             now,
			DownloadStartedAt:   &now,
			DownloadCompletedAt: &now,
		},
		Pattern: &domain.Pattern{ID: 3, Expression: "Downloaded"},
	}

	err = pub.Publish(s.ctx, event)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(domain.ActionDownloaded, msg.Type)
	s.NotEmpty(msg.MessageId)

	var received ItemMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("/data/torrents/item.torrent", received.Item.PayloadPath)
	s.Equal(int64(3), received.Item.PatternID)
	s.Require().NotNil(received.Item.DownloadCompletedAt)
	s.True(now.Equal(*received.Item.DownloadCompletedAt))
	s.Require().NotNil(received.Pattern)
	s.Equal("Downloaded", received.Pattern.Expression)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagePersistence() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-persist",
		RoutingKey: "test-routing-key-persist",
		QueueName:  "test-queue-persist",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, domain.ItemEvent{
		Action: domain.ActionDiscovered,
		Item:   domain.Item{ExternalID: "1003", Title: "Persistent Item"},
	})
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
