package event

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/segmentio/kafka-go"
)

const eventHeader = "event"

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(host string, port string, topic string, group string) (*KafkaClient, error) {
	if host == "" || port == "" || topic == "" {
		return nil, errors.New("kafka host, port and topic are required")
	}

	address := net.JoinHostPort(host, port)
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(address),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{address},
		Topic:   topic,
		GroupID: group,
	})

	return &KafkaClient{
		writer: writer,
		reader: reader,
	}, nil
}

// Publish writes message as JSON. The event name travels in a header and as the key,
// so events of one kind land on one partition in order.
func (c *KafkaClient) Publish(ctx context.Context, event string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event),
		Value: data,
		Headers: []kafka.Header{
			{Key: eventHeader, Value: []byte(event)},
		},
	})
}

func (c *KafkaClient) ReadMessage(ctx context.Context) (string, []byte, error) {
	message, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return "", nil, err
	}
	return EventName(message), message.Value, nil
}

func (c *KafkaClient) Close() error {
	return errors.Join(c.writer.Close(), c.reader.Close())
}

// EventName reads the event header, falling back to the message key.
func EventName(message kafka.Message) string {
	for _, header := range message.Headers {
		if header.Key == eventHeader {
			return string(header.Value)
		}
	}
	return string(message.Key)
}
