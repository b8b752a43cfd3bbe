package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Tail follows result envelopes on topic as consumer group group, calling fn for
// each one until ctx ends. Offsets are committed after fn returns nil.
func Tail(ctx context.Context, brokers []string, group, topic string, fn func(Envelope) error) error {
	cfg := newConfig("web3-feed-tail")
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}

	cg, err := sarama.NewConsumerGroup(brokers, group, cfg)
	if err != nil {
		return err
	}
	defer cg.Close()

	h := tailHandler{fn: fn}
	// Consume returns on every rebalance; loop until cancelled.
	for {
		if err := cg.Consume(ctx, []string{topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Printf("[tail] consume err: topic=%s err=%v", topic, err)
			time.Sleep(300 * time.Millisecond)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type tailHandler struct {
	fn func(Envelope) error
}

func (tailHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (tailHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h tailHandler) ConsumeClaim(s sarama.ConsumerGroupSession, c sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-s.Context().Done():
			return nil
		case msg, ok := <-c.Messages():
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				log.Printf("[tail] skip non-envelope: partition=%d offset=%d err=%v", msg.Partition, msg.Offset, err)
				s.MarkMessage(msg, "")
				continue
			}
			if err := h.fn(env); err != nil {
				return err
			}
			s.MarkMessage(msg, "")
		}
	}
}
