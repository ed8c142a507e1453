package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"ridemeter/internal/repository"
)

const reconnectDelay = 3 * time.Second

// BillingPublisher is a RabbitMQ implementation of repository.SyncTransport.
// The channel runs in confirm mode, so Push only succeeds once the broker
// has taken responsibility for the batch.
type BillingPublisher struct {
	logger   *slog.Logger
	url      string
	exchange string

	mu        sync.Mutex
	conn      *amqp091.Connection
	ch        *amqp091.Channel
	connClose chan *amqp091.Error
	isClosed  atomic.Bool
}

// NewBillingPublisher dials the broker, declares the exchange and starts the
// reconnect loop.
func NewBillingPublisher(url, exchange string, logger *slog.Logger) (*BillingPublisher, error) {
	p := &BillingPublisher{
		logger:   logger,
		url:      url,
		exchange: exchange,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.reconnectConn()
	return p, nil
}

func (p *BillingPublisher) connect() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	err = ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	if err := ch.Confirm(false); err != nil {
		return errors.Join(conn.Close(), err)
	}

	connClose := make(chan *amqp091.Error, 1)
	conn.NotifyClose(connClose)

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.connClose = connClose
	p.mu.Unlock()
	return nil
}

func (p *BillingPublisher) reconnectConn() {
	for {
		p.mu.Lock()
		closed := p.connClose
		p.mu.Unlock()

		<-closed
		if p.isClosed.Load() {
			return
		}
		p.logger.Warn("rabbitmq connection lost")
		for {
			if p.isClosed.Load() {
				return
			}
			p.logger.Info("trying to connect to rabbitmq")
			if err := p.connect(); err != nil {
				time.Sleep(reconnectDelay)
				continue
			}
			p.logger.Info("connected to rabbitmq")
			break
		}
	}
}

// Push publishes the batch as one persistent message routed by driver and
// waits for the broker confirm.
func (p *BillingPublisher) Push(ctx context.Context, batch repository.SyncBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return repository.ErrTransportUnavailable
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,
		routingKey(batch.DriverID),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    batch.SentAt,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}
	if dc == nil {
		return fmt.Errorf("publisher channel not in confirm mode")
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("billing batch for driver %s nacked by broker", batch.DriverID)
	}
	return nil
}

// Close stops the reconnect loop and closes the connection.
func (p *BillingPublisher) Close() error {
	p.isClosed.Store(true)
	defer p.logger.Info("rabbitmq publisher closed")

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func routingKey(driverID string) string {
	return "billing.driver." + driverID
}

var _ repository.SyncTransport = (*BillingPublisher)(nil)
