package kafka

import (
	"context"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
)

type WriteFunc func(ctx context.Context, msgs ...kafkago.Message) error

type funcWriter struct {
	write  WriteFunc
	closed bool
}

func (w *funcWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	return w.write(ctx, msgs...)
}

func (w *funcWriter) Close() error {
	w.closed = true
	return nil
}

// NewTestPublisher builds a Publisher over a function instead of a broker.
func NewTestPublisher(write WriteFunc, log *slog.Logger) *Publisher {
	return newPublisher(&funcWriter{write: write}, DefaultTopic, log)
}
