package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/richxcame/petit-taxi/pkg/config"
	"github.com/richxcame/petit-taxi/pkg/logger"
	"go.uber.org/zap"
)

// Subjects of ride lifecycle events
const (
	SubjectRideBooked    = "rides.booked"
	SubjectRideCompleted = "rides.completed"
	SubjectRideCancelled = "rides.cancelled"
)

// Event is the envelope published on the bus
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data in an Event with a fresh id
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// RideBookedData is the payload of rides.booked
type RideBookedData struct {
	RideID         int64   `json:"ride_id"`
	Pickup         string  `json:"pickup"`
	Destination    string  `json:"destination"`
	DistanceKm     float64 `json:"distance_km"`
	EstimatedPrice float64 `json:"estimated_price"`
	IsDayMode      bool    `json:"is_day_mode"`
	DriverName     string  `json:"driver_name"`
}

// RideCompletedData is the payload of rides.completed
type RideCompletedData struct {
	RideID      int64     `json:"ride_id"`
	Pickup      string    `json:"pickup"`
	Destination string    `json:"destination"`
	FareAmount  float64   `json:"fare_amount"`
	DistanceKm  float64   `json:"distance_km"`
	DurationSec int       `json:"duration_seconds"`
	IsDayMode   bool      `json:"is_day_mode"`
	DriverName  string    `json:"driver_name"`
	PlateNumber string    `json:"plate_number"`
	CompletedAt time.Time `json:"completed_at"`
}

// RideCancelledData is the payload of rides.cancelled
type RideCancelledData struct {
	RideID      int64     `json:"ride_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// Bus publishes events to NATS
type Bus struct {
	conn *nats.Conn
}

// Connect opens a NATS connection that keeps reconnecting in the background
func Connect(cfg config.NATSConfig, name string) (*Bus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// Publish sends event on subject. The event id doubles as the message id.
func (b *Bus) Publish(ctx context.Context, subject string, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newMessage(subject, event)
	if err != nil {
		return err
	}
	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Ping reports whether the connection is usable, for health checks
func (b *Bus) Ping() error {
	if b == nil || b.conn == nil {
		return fmt.Errorf("nats connection is nil")
	}
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats status: %s", b.conn.Status())
	}
	return nil
}

// Close drains pending messages and closes the connection
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

func newMessage(subject string, event *Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	return msg, nil
}
