// Package events publishes module lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// EnvURL names the NATS server events are published to. Unset disables publishing.
	EnvURL = "REACTOR_NATS_URL"
	// EnvSubject overrides DefaultSubject.
	EnvSubject = "REACTOR_NATS_SUBJECT"
	// DefaultSubject prefixes every event subject.
	DefaultSubject = "reactor.events"

	connectTimeout = 5 * time.Second
)

// Conn is the part of a NATS connection the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher implements ports.EventPublisher on a NATS connection.
// Events go to "<prefix>.<kind>", for example "reactor.events.module.ended".
type NATSPublisher struct {
	conn   Conn
	prefix string
}

var (
	_ ports.EventPublisher = (*NATSPublisher)(nil)
	_ ports.EventPublisher = (*NoOpPublisher)(nil)
)

// Connect dials the NATS server at url.
func Connect(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("reactor"), nats.Timeout(connectTimeout))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to connect to NATS"), "url", url)
	}
	return NewNATSPublisher(conn, prefix), nil
}

// NewNATSPublisher publishes on an existing connection. An empty prefix
// selects DefaultSubject.
func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubject
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Publish sends event as JSON.
func (p *NATSPublisher) Publish(_ context.Context, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal event")
	}
	subject := p.prefix + "." + string(event.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to publish event"), "subject", subject)
	}
	if event.Kind == domain.EventBuildFinished {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := p.conn.FlushWithContext(ctx); err != nil {
			return zerr.Wrap(err, "failed to flush events")
		}
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		return zerr.Wrap(err, "failed to drain NATS connection")
	}
	return nil
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

// Publish does nothing.
func (NoOpPublisher) Publish(context.Context, *domain.Event) error { return nil }

// Close does nothing.
func (NoOpPublisher) Close() error { return nil }
