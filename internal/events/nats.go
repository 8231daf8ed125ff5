// Package events publishes document lifecycle notifications on NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "pdfrag.documents"

var errNotConnected = errors.New("nats: not connected")

type conn interface {
	PublishMsg(m *nats.Msg) error
	IsConnected() bool
	Drain() error
}

// Publisher sends DocumentEvents as JSON to "<prefix>.<kind>".
type Publisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS and returns a Publisher. Reconnects are unbounded.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("pdfrag"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, prefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: c, prefix: prefix, logger: logger}
}

// Subject returns the subject an event kind is published on.
func (p *Publisher) Subject(kind domain.EventKind) string {
	return p.prefix + "." + string(kind)
}

// Publish sends ev. Trace context from ctx travels in the message headers.
func (p *Publisher) Publish(ctx context.Context, ev domain.DocumentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &nats.Msg{Subject: p.Subject(ev.Kind), Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", msg.Subject), zap.String("title", ev.Title))
	return nil
}

// Ping reports whether the connection is currently up.
func (p *Publisher) Ping(_ context.Context) error {
	if !p.conn.IsConnected() {
		return errNotConnected
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// Subscribe delivers every event under prefix to handler. Malformed messages are dropped.
func Subscribe(
	nc *nats.Conn, prefix string, handler func(context.Context, domain.DocumentEvent),
) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		ev, ctx, ok := decode(msg)
		if !ok {
			return
		}
		handler(ctx, ev)
	})
}

// Watch connects to url and calls handler for every event until ctx is done.
func Watch(
	ctx context.Context, url, prefix string, logger *zap.Logger, handler func(context.Context, domain.DocumentEvent),
) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url, nats.Name("pdfrag-watch"), nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	sub, err := Subscribe(nc, prefix, handler)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	logger.Debug("watching events", zap.String("subject", sub.Subject))

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		logger.Warn("unsubscribe failed", zap.Error(err))
	}
	return nil
}

func decode(msg *nats.Msg) (domain.DocumentEvent, context.Context, bool) {
	var ev domain.DocumentEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return ev, nil, false
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	return ev, ctx, true
}

// headerCarrier adapts nats.Msg headers to propagation.TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
