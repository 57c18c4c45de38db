package kafka

import (
	"context"
	"encoding/json"
	"time"

	"postcard-service/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishOrderEvent streams one lifecycle transition, keyed by transaction
// ID so a partition preserves per-order ordering.
func (p *Producer) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error {
	event := models.OrderEvent{
		Type:          eventType,
		TransactionID: order.TransactionID,
		Status:        string(order.Status),
		Timestamp:     time.Now(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(order.TransactionID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
