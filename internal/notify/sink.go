package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"
)

// MessageSink delivers one text message to a conversation.
type MessageSink interface {
	SendMessage(ctx context.Context, conversationID, text string) error
}

// outboundMessage is the wire format published to the outbound topic.
// The chat transport consumes it and routes by conversation.
type outboundMessage struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// NSQSink publishes outbound messages to an NSQ topic.
type NSQSink struct {
	producer *nsq.Producer
	topic    string
	logger   *slog.Logger
}

// NewNSQSink connects a producer to nsqd at addr and publishes to topic.
func NewNSQSink(addr, topic string, logger *slog.Logger) (*NSQSink, error) {
	if addr == "" {
		return nil, errors.New("nsqd address cannot be empty")
	}
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}

	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}

	return &NSQSink{
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "nsq_sink"),
	}, nil
}

// SendMessage publishes the message as JSON.
func (s *NSQSink) SendMessage(ctx context.Context, conversationID, text string) error {
	body, err := json.Marshal(outboundMessage{
		ConversationID: conversationID,
		Text:           text,
	})
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	if err := s.producer.Publish(s.topic, body); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}

	s.logger.DebugContext(ctx, "published outbound message",
		"topic", s.topic, "conversation_id", conversationID, "bytes", len(body))
	return nil
}

// Stop flushes and shuts down the producer.
func (s *NSQSink) Stop() {
	s.producer.Stop()
}

// LogSink writes messages to the logger. Used in development and as a
// fallback when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "log_sink")}
}

func (s *LogSink) SendMessage(ctx context.Context, conversationID, text string) error {
	s.logger.InfoContext(ctx, "outbound message",
		"conversation_id", conversationID, "text", text)
	return nil
}
