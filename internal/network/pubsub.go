// Package network publishes node status and health events to NATS.
package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nodewatch/internal/protocol"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "network")

// DefaultSubject prefixes every published subject.
const DefaultSubject = "nodewatch"

// PubSubConfig holds configuration for the status publisher
type PubSubConfig struct {
	URL      string
	Subject  string
	Network  protocol.Network
	NodeType protocol.NodeType
	// Name identifies the connection on the NATS server
	Name string
}

// msgConn is the part of *nats.Conn the publisher uses
type msgConn interface {
	PublishMsg(m *nats.Msg) error
	Close()
}

// StatusPublisher pushes events to `{subject}.{event type}`
type StatusPublisher struct {
	mu     sync.Mutex
	nc     msgConn
	config PubSubConfig
	closed bool
}

// NewStatusPublisher connects to NATS
func NewStatusPublisher(config PubSubConfig) (*StatusPublisher, error) {
	if config.Name == "" {
		config.Name = "nodewatch"
	}

	nc, err := nats.Connect(config.URL,
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("url", nc.ConnectedUrl()).Info("Connected to NATS")
	return newStatusPublisher(nc, config), nil
}

func newStatusPublisher(nc msgConn, config PubSubConfig) *StatusPublisher {
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	return &StatusPublisher{nc: nc, config: config}
}

// Subject returns the subject events of eventType are published on
func (p *StatusPublisher) Subject(eventType string) string {
	return p.config.Subject + "." + eventType
}

// BuildMsg encodes an event with routing headers
func (p *StatusPublisher) BuildMsg(event *protocol.Event) (*nats.Msg, error) {
	data, err := event.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return &nats.Msg{
		Subject: p.Subject(event.Type),
		Data:    data,
		Header: nats.Header{
			"Network":   []string{string(event.Network)},
			"Node-Type": []string{string(event.NodeType)},
		},
	}, nil
}

// Publish sends an event
func (p *StatusPublisher) Publish(ctx context.Context, event *protocol.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := p.BuildMsg(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publisher closed")
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// PublishStatus publishes a node status snapshot
func (p *StatusPublisher) PublishStatus(ctx context.Context, status protocol.NodeStatus) error {
	event, err := protocol.CreateStatusEvent(p.config.Network, p.config.NodeType, status)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}

// PublishHealth publishes the outcome of a health check
func (p *StatusPublisher) PublishHealth(ctx context.Context, report protocol.HealthReport) error {
	event, err := protocol.CreateHealthEvent(p.config.Network, p.config.NodeType, report)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}

// Close closes the NATS connection
func (p *StatusPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.nc.Close()
	return nil
}
