package events

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"vat-service/internal/models"
)

var (
	publisher     *Publisher
	publisherOnce sync.Once
	publisherMu   sync.RWMutex
)

// Event types published on the vat.> subject space
const (
	VATCalculationCompleted = "vat.calculation.completed"
	VATRateCreated          = "vat.rate.created"
	VATRateUpdated          = "vat.rate.updated"
	VATRateDeleted          = "vat.rate.deleted"
)

// Event is the envelope for all VAT events
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Publisher publishes VAT events to NATS
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// InitPublisher initializes the singleton NATS publisher. Publishing stays
// disabled when NATS_URL is not set.
func InitPublisher(logger *logrus.Logger) error {
	var initErr error
	publisherOnce.Do(func() {
		natsURL := os.Getenv("NATS_URL")
		if natsURL == "" {
			logger.Warn("NATS_URL not set, event publishing disabled")
			return
		}

		conn, err := nats.Connect(natsURL,
			nats.Name("vat-service"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			initErr = err
			return
		}

		publisherMu.Lock()
		publisher = &Publisher{
			conn:   conn,
			logger: logger.WithField("component", "events.publisher"),
		}
		publisherMu.Unlock()

		logger.Info("NATS events publisher initialized for vat-service")
	})
	return initErr
}

// GetPublisher returns the singleton publisher instance, or nil when
// publishing is disabled
func GetPublisher() *Publisher {
	publisherMu.RLock()
	defer publisherMu.RUnlock()
	return publisher
}

// PublishCalculationCompleted publishes the result of a VAT calculation.
// Direction is "net" or "gross" depending on the starting amount.
func (p *Publisher) PublishCalculationCompleted(ctx context.Context, direction string, calc *models.VATCalculation) error {
	return p.publish(ctx, VATCalculationCompleted, map[string]any{
		"direction":   direction,
		"calculation": calc,
	})
}

// PublishRateChanged publishes a VAT rate lifecycle event
func (p *Publisher) PublishRateChanged(ctx context.Context, eventType string, rate *models.VATRate) error {
	return p.publish(ctx, eventType, rate)
}

func (p *Publisher) publish(_ context.Context, eventType string, payload any) error {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return err
	}

	if err := p.conn.Publish(eventType, data); err != nil {
		p.logger.WithError(err).WithField("subject", eventType).Warn("Failed to publish event")
		return err
	}
	return nil
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the publisher connection
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
