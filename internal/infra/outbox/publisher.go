package outbox

import (
	"context"

	"bookstore/internal/domain/model"

	"github.com/Shopify/sarama"
)

const headerEventType = "event_type"

// 送信先。テストでは差し替える
type Publisher interface {
	Publish(ctx context.Context, events []model.OutboxEvent) error
	Close() error
}

type KafkaPublisher struct {
	topic    string
	producer sarama.SyncProducer
}

func NewKafkaConfig() *sarama.Config {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	// 同じ注文のイベントは同じパーティションへ
	conf.Producer.Partitioner = sarama.NewHashPartitioner
	return conf
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisherFromProducer(producer, topic), nil
}

func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return p.producer.SendMessages(toKafkaMessages(events, p.topic))
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func toKafkaMessages(events []model.OutboxEvent, topic string) []*sarama.ProducerMessage {
	res := make([]*sarama.ProducerMessage, 0, len(events))
	for _, ev := range events {
		res = append(res, &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(ev.Key),
			Value: sarama.StringEncoder(ev.Payload),
			Headers: []sarama.RecordHeader{
				{Key: []byte(headerEventType), Value: []byte(ev.Topic)},
			},
		})
	}
	return res
}
