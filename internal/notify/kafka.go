package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher publishes notifications onto a Kafka topic where the
// delivery channels (SMS, email, push) consume them.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.ProducerLinger(25*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &KafkaPublisher{
		client: client,
		topic:  topic,
		log:    log,
	}, nil
}

func (p *KafkaPublisher) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(n.RecipientID),
		Value: payload,
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}

	p.log.Debug().
		Str("recipient_id", n.RecipientID).
		Str("kind", string(n.Kind)).
		Msg("notification published")
	return nil
}

func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.client.Flush(ctx); err != nil {
		p.log.Warn().Err(err).Msg("flush on close")
	}
	p.client.Close()
}

var _ Dispatcher = (*KafkaPublisher)(nil)
