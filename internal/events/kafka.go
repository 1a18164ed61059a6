package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaClient хранит список брокеров и создаёт writer/reader для топиков.
type KafkaClient struct {
	Brokers []string
}

// NewKafkaClient разбирает список брокеров из строки с разделителем-запятой.
func NewKafkaClient(brokersCSV string) *KafkaClient {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaClient{Brokers: brokers}
}

// Enabled сообщает, настроен ли обмен через Kafka.
func (c *KafkaClient) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

// NewWriter создаёт writer для указанного топика. Ключ сообщения задаёт
// партицию, поэтому события одного заказа сохраняют порядок.
func (c *KafkaClient) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewReader создаёт reader с семантикой consumer group: каждое событие
// получает один экземпляр группы, при падении событие доставляется повторно.
func (c *KafkaClient) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

// PublishJSON сериализует полезную нагрузку и отправляет сообщение с ключом.
func PublishJSON(ctx context.Context, writer *kafka.Writer, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
}
