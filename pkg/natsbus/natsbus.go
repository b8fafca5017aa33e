// Package natsbus connects the monitoring tree to a NATS server: engine
// events arrive on one subject and info records are published on another.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

var log = logging.ForComponent("natsbus")

// Connect dials the NATS server named in cfg.
func Connect(cfg core.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("streammon"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Infof("Connected to NATS server at %s", cfg.URL)
	return nc, nil
}

// Subscriber applies events received on a subject to a dispatcher.
type Subscriber struct {
	nc         *nats.Conn
	subject    string
	dispatcher *events.Dispatcher

	received atomic.Uint64
	rejected atomic.Uint64
}

// NewSubscriber creates a subscriber. Call Run to start receiving.
func NewSubscriber(nc *nats.Conn, subject string, dispatcher *events.Dispatcher) *Subscriber {
	return &Subscriber{nc: nc, subject: subject, dispatcher: dispatcher}
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.subject, s.handleMsg)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	log.Infof("Listening for engine events on %s", s.subject)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain %s: %w", s.subject, err)
	}
	return nil
}

// Stats returns how many messages were received and how many were rejected.
func (s *Subscriber) Stats() (received, rejected uint64) {
	return s.received.Load(), s.rejected.Load()
}

func (s *Subscriber) handleMsg(msg *nats.Msg) {
	s.received.Add(1)
	ev, err := events.Decode(msg.Data)
	if err == nil {
		err = s.dispatcher.Dispatch(ev)
	}
	if err != nil {
		s.rejected.Add(1)
		log.WithError(err).WithField("subject", msg.Subject).Warn("Event rejected")
	}
}

// publisher is the part of *nats.Conn the Publisher needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes info records as JSON.
type Publisher struct {
	conn    publisher
	subject string
}

// NewPublisher creates a publisher on subject.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: nc, subject: subject}
}

// PublishInfo marshals info and publishes it.
func (p *Publisher) PublishInfo(info monitoring.Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal info: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func Close(nc *nats.Conn) error {
	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil {
		return err
	}
	log.Info("NATS connection drained and closed.")
	return nil
}
