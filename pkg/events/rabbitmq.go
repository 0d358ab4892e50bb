package events

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mahalnishan/crm/pkg/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// confirmBuffer is sized so the connection reader rarely waits on the dispatcher
const confirmBuffer = 64

var errChannelClosed = errors.New("rabbitmq channel closed before the publish was confirmed")

// publishChannel is the part of *amqp.Channel the publisher needs
type publishChannel interface {
	GetNextPublishSeqNo() uint64
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes events to a topic exchange with publisher confirms.
// Each publish waits for the confirm carrying its own delivery tag.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       publishChannel
	exchange string
	source   string

	mu      sync.Mutex // keeps sequence number and publish together
	waitMu  sync.Mutex
	waiting map[uint64]chan amqp.Confirmation
	done    chan struct{}
}

// DialRabbit connects, declares the exchange and enables confirms
func DialRabbit(cfg config.BrokerConfig, source string) (*RabbitPublisher, error) {
	vhost := cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	uri := fmt.Sprintf("%s://%s:%s@%s:%d/%s",
		scheme, url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, url.PathEscape(vhost))

	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(uri, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(uri)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))

	p := newRabbitPublisher(ch, confirms, cfg.Exchange, source)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch publishChannel, confirms <-chan amqp.Confirmation, exchange, source string) *RabbitPublisher {
	p := &RabbitPublisher{
		ch:       ch,
		exchange: exchange,
		source:   source,
		waiting:  make(map[uint64]chan amqp.Confirmation),
		done:     make(chan struct{}),
	}
	go p.dispatch(confirms)
	return p
}

// dispatch hands each confirm to the publish waiting for its tag. Confirms for
// publishes that already gave up are dropped, so the channel never backs up.
func (p *RabbitPublisher) dispatch(confirms <-chan amqp.Confirmation) {
	for conf := range confirms {
		p.waitMu.Lock()
		w, ok := p.waiting[conf.DeliveryTag]
		delete(p.waiting, conf.DeliveryTag)
		p.waitMu.Unlock()
		if ok {
			w <- conf
		}
	}

	p.waitMu.Lock()
	close(p.done)
	for tag, w := range p.waiting {
		close(w)
		delete(p.waiting, tag)
	}
	p.waitMu.Unlock()
}

func (p *RabbitPublisher) forget(tag uint64) {
	p.waitMu.Lock()
	delete(p.waiting, tag)
	p.waitMu.Unlock()
}

// Ping reports whether the connection is still open
func (p *RabbitPublisher) Ping() error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Publish sends the event persistently and waits for the broker's ack
func (p *RabbitPublisher) Publish(ctx context.Context, event WorkOrderEvent) error {
	body, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	wait := make(chan amqp.Confirmation, 1)

	p.mu.Lock()
	tag := p.ch.GetNextPublishSeqNo()
	p.waitMu.Lock()
	select {
	case <-p.done:
		p.waitMu.Unlock()
		p.mu.Unlock()
		return errChannelClosed
	default:
	}
	p.waiting[tag] = wait
	p.waitMu.Unlock()

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		event.RoutingKey(),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			Body:          body,
			MessageId:     event.MessageID(),
			CorrelationId: event.WorkOrderID,
			Timestamp:     time.Now().UTC(),
			Type:          event.Type,
			Headers: amqp.Table{
				"x-source":    p.source,
				"x-tenant-id": int64(event.TenantID),
			},
		},
	)
	p.mu.Unlock()
	if err != nil {
		p.forget(tag)
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	select {
	case conf, ok := <-wait:
		if !ok {
			return errChannelClosed
		}
		if !conf.Ack {
			return fmt.Errorf("broker rejected %s (delivery tag %d)", event.Type, tag)
		}
		return nil
	case <-ctx.Done():
		p.forget(tag)
		return ctx.Err()
	}
}

// Close closes the channel and the connection
func (p *RabbitPublisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
