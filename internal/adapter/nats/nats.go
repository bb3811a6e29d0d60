// Package nats publishes compiled prompts over NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/port/generation"
)

const streamName = "PSM"

// headerRequestID carries the originating HTTP request id.
const headerRequestID = "X-Request-ID"

// Handler processes one message. Returning an error naks the message.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue wraps a NATS connection and its JetStream context.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url, nats.Name("psm"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"prompts.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// JetStream exposes the JetStream context, e.g. for KV buckets.
func (q *Queue) JetStream() jetstream.JetStream {
	return q.js
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// Publish sends a message to the given subject, carrying the request id of
// ctx as a header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. The
// returned function stops consumption.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		mctx := context.Background()
		if id := msg.Headers().Get(headerRequestID); id != "" {
			mctx = logger.WithRequestID(mctx, id)
		}
		if err := handler(mctx, msg.Subject(), msg.Data()); err != nil {
			slog.ErrorContext(mctx, "message handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Close drains and shuts down the NATS connection.
func (q *Queue) Close() error {
	return q.nc.Drain()
}

// Ensure Applier implements generation.Applier at compile time.
var _ generation.Applier = (*Applier)(nil)

// Applier publishes compiled prompts for the generation backend.
type Applier struct {
	q       *Queue
	subject string
}

// NewApplier creates an Applier publishing to subject.
func NewApplier(q *Queue, subject string) *Applier {
	return &Applier{q: q, subject: subject}
}

// Apply publishes p as JSON.
func (a *Applier) Apply(ctx context.Context, p generation.Prompt) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prompt: %w", err)
	}
	return a.q.Publish(ctx, a.subject, data)
}
