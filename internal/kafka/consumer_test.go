package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
)

// fakeSession records marked messages. Unused interface methods panic.
type fakeSession struct {
	sarama.ConsumerGroupSession
	marked []int64
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Context() context.Context { return context.Background() }

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimOf(values ...string) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "order-created", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func TestOrderConsumerHandler(t *testing.T) {
	var got []*models.OrderEvent
	h := &orderConsumerHandler{
		log: logger.NewNop(),
		handler: func(ctx context.Context, event *models.OrderEvent) error {
			if event.Reference == "INF-DOWN" {
				return errors.New("ledger unavailable")
			}
			got = append(got, event)
			return nil
		},
	}

	session := &fakeSession{}
	claim := claimOf(
		`{"type":"order.created","reference":"INF1","amount":"150.00","item_count":2}`,
		`not json`,
		`{"type":"order.created","reference":"INF-DOWN","amount":"10.00"}`,
	)

	require.NoError(t, h.ConsumeClaim(session, claim))

	require.Len(t, got, 1)
	assert.Equal(t, "INF1", got[0].Reference)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, 2, got[0].ItemCount)
	assert.Equal(t, []int64{0, 1}, session.marked, "failed registrations stay unmarked for redelivery")
}
