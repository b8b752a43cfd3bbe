package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/web3-feed/internal/feed/retry"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

// Envelope wraps each published result record.
type Envelope struct {
	Type  string          `json:"type"`   // e.g. "peer_score"
	RunID string          `json:"run_id"` // groups one run's records
	Seq   int             `json:"seq"`
	Total int             `json:"total"`
	TS    int64           `json:"ts"` // unix milli
	Data  json.RawMessage `json:"data"`
}

type Sink[T any] struct {
	brokers []string
	topic   string
	typ     string
	runID   string
}

// NewSink publishes records of one type to topic. All messages of a run share
// runID as key, so they land on one partition in order.
func NewSink[T any](brokers []string, topic, typ, runID string) (*Sink[T], error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("%w: kafka brokers and topic required", storage.ErrUnsupported)
	}
	return &Sink[T]{brokers: brokers, topic: topic, typ: typ, runID: runID}, nil
}

func (s *Sink[T]) Save(ctx context.Context, records []T) error {
	msgs, err := s.messages(records, time.Now())
	if err != nil {
		return err
	}

	p, err := sarama.NewSyncProducer(s.brokers, newConfig("web3-feed-sink"))
	if err != nil {
		return storage.IOError("connect", "kafka://"+s.topic, err)
	}
	defer p.Close()

	err = retry.Do(ctx, retry.Remote(func(attempt int, wait time.Duration, err error) {
		log.Printf("[kafka] emit retry: topic=%s type=%s attempt=%d wait=%s err=%v", s.topic, s.typ, attempt, wait, err)
	}), func(context.Context) error {
		return p.SendMessages(msgs)
	})
	if err != nil {
		return storage.IOError("emit", "kafka://"+s.topic, err)
	}
	return nil
}

func (s *Sink[T]) messages(records []T, now time.Time) ([]*sarama.ProducerMessage, error) {
	msgs := make([]*sarama.ProducerMessage, 0, len(records))
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("kafka: encode %s %d: %w", s.typ, i, err)
		}
		b, err := json.Marshal(Envelope{
			Type:  s.typ,
			RunID: s.runID,
			Seq:   i,
			Total: len(records),
			TS:    now.UnixMilli(),
			Data:  data,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(s.runID),
			Value: sarama.ByteEncoder(b),
		})
	}
	return msgs, nil
}
