package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
)

// OrderHandler registers one storefront order. A returned error leaves the
// message unmarked so it is delivered again after a rebalance or restart.
type OrderHandler func(ctx context.Context, event *models.OrderEvent) error

type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewConsumer(brokers []string, groupID string, topics []string, log *logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.LogKafka("CONNECTED", "consumer", fmt.Sprintf("Consumer group %s on topics %v", groupID, topics))
	return &Consumer{consumer: consumer, topics: topics, log: log}, nil
}

// ConsumeOrders blocks until ctx is cancelled or the group is closed.
func (c *Consumer) ConsumeOrders(ctx context.Context, handler OrderHandler) error {
	h := &orderConsumerHandler{handler: handler, log: c.log}

	for {
		if err := c.consumer.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("KAFKA", "Error consuming orders: "+err.Error())
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

type orderConsumerHandler struct {
	handler OrderHandler
	log     *logger.Logger
}

func (h *orderConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *orderConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *orderConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event models.OrderEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			// Undecodable messages never become decodable; skip past them.
			h.log.Warn("KAFKA", fmt.Sprintf("Dropping undecodable order on %s/%d@%d: %v",
				message.Topic, message.Partition, message.Offset, err))
			session.MarkMessage(message, "")
			continue
		}

		if err := h.handler(session.Context(), &event); err != nil {
			h.log.Error("KAFKA", fmt.Sprintf("Failed to register order %s: %v", event.Reference, err))
			continue
		}

		h.log.LogKafka("CONSUMED", message.Topic, "Order "+event.Reference+" registered")
		session.MarkMessage(message, "")
	}

	return nil
}
