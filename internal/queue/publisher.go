package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/mail"
)

// Publisher hands confirmations to the broker instead of sending them
// inline.  The connection is opened lazily and reopened after a failure.
// Errors are logged and reported as false so the payment callback is never
// failed by the broker.
type Publisher struct {
	url    string
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger, now: time.Now}
}

// SendBookingConfirmation enqueues a confirmation for address.
func (p *Publisher) SendBookingConfirmation(ctx context.Context, address string, d mail.BookingDetails) bool {
	body, err := encodeEvent(BookingConfirmedEvent{
		ReservationID: d.ReservationID,
		Email:         address,
		Booking:       d,
		ConfirmedAt:   p.now().UTC(),
	})
	if err != nil {
		p.logger.Error("rabbitmq: marshal event failed", zap.Error(err))
		return false
	}
	if err := p.publish(ctx, body); err != nil {
		p.logger.Error("rabbitmq: publish failed",
			zap.String("reservation_id", d.ReservationID),
			zap.Error(err))
		return false
	}
	return true
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",                // default exchange
		ConfirmationQueue, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.resetLocked()
	}
	return err
}

func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// declare makes sure the durable queue exists.
func declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(ConfirmationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

func encodeEvent(ev BookingConfirmedEvent) ([]byte, error) {
	return json.Marshal(ev)
}
