package events

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
)

// Subjects on the bus. Station tickets go to their own subject so the
// kitchen printers can subscribe without the floor traffic.
const (
	TopicTickets = "kitchen.tickets"
	TopicTabs    = "tabs.events"
)

// Publisher sends a raw message on a subject.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := connect(url, "tabs-publisher")
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.conn.Publish(topic, msg)
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string) (*NATSSubscriber, error) {
	conn, err := connect(url, "tabs-subscriber")
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: conn}, nil
}

// Subscribe calls handler for every message on topic until ctx is done.
func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, data []byte) error) error {
	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			log.Printf("WARN: handle %s message: %v", msg.Subject, err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", topic)
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

func connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("WARN: nats disconnected: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}
	return conn, nil
}
