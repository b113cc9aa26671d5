package rides

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/richxcame/petit-taxi/internal/catalog"
	"github.com/richxcame/petit-taxi/internal/geo"
	"github.com/richxcame/petit-taxi/internal/simulation"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/eventbus"
	"github.com/richxcame/petit-taxi/pkg/logger"
	"github.com/richxcame/petit-taxi/pkg/models"
	"go.uber.org/zap"
)

const (
	eventSource    = "taxisim"
	persistTimeout = 5 * time.Second

	// day rates apply from 06:00 until 20:00
	dayStartHour = 6
	dayEndHour   = 20
)

var (
	ErrActiveRide      = errors.New("a ride is already active")
	ErrNoActiveRide    = errors.New("no active ride")
	ErrUnknownLocation = errors.New("unknown location")
)

// HistoryRecorder receives completed rides
type HistoryRecorder interface {
	Append(ctx context.Context, ride models.Ride) error
}

// EventPublisher publishes ride lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Quote is a price estimate for a trip that has not been booked
type Quote struct {
	Pickup           models.Location `json:"pickup"`
	Destination      models.Location `json:"destination"`
	DistanceKm       float64         `json:"distanceKm"`
	EstimatedPrice   float64         `json:"estimatedPrice"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
	IsDayMode        bool            `json:"isDayMode"`
	PerKm            float64         `json:"perKm"`
	BaseFare         float64         `json:"baseFare"`
}

// Service owns the single active-ride slot
type Service struct {
	catalog   *catalog.Catalog
	history   HistoryRecorder
	publisher EventPublisher
	simCfg    simulation.Config
	clock     simulation.Clock
	listeners simulation.Listeners

	mu      sync.Mutex
	active  *simulation.Engine
	dayMode bool
	lastID  int64
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the engine clock
func WithClock(clock simulation.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithPublisher publishes lifecycle events through p
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithListener forwards engine signals of every ride to l
func WithListener(l simulation.Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

// NewService creates the ride service. The initial rate regime follows the
// clock's hour of day.
func NewService(cat *catalog.Catalog, history HistoryRecorder, simCfg simulation.Config, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		history: history,
		simCfg:  simCfg,
		clock:   simulation.RealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dayMode = IsDayHour(s.clock.Now())
	return s
}

// IsDayHour reports whether day rates apply at t
func IsDayHour(t time.Time) bool {
	h := t.Hour()
	return h >= dayStartHour && h < dayEndHour
}

// Locations returns the bookable locations
func (s *Service) Locations() []models.Location {
	return s.catalog.Locations()
}

// NearbyTaxis returns idle taxi positions around the rider
func (s *Service) NearbyTaxis(n int) []models.Coordinate {
	return s.catalog.NearbyTaxis(n)
}

// SetDayMode switches the global rate regime. An active ride keeps the
// regime it was booked with.
func (s *Service) SetDayMode(day bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayMode = day
}

// DayMode returns the global rate regime
func (s *Service) DayMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayMode
}

// Quote estimates a trip without booking it. A nil isDayMode uses the global regime.
func (s *Service) Quote(pickupID, destinationID int, isDayMode *bool) (*Quote, error) {
	pickup, destination, err := s.resolve(pickupID, destinationID)
	if err != nil {
		return nil, err
	}

	day := s.regime(isDayMode)
	rates := s.catalog.Rates()
	distance := geo.Distance(pickup.Coordinate, destination.Coordinate)

	return &Quote{
		Pickup:           pickup,
		Destination:      destination,
		DistanceKm:       distance,
		EstimatedPrice:   geo.Fare(distance, day, rates),
		EstimatedMinutes: geo.ETA(distance, rates.AvgSpeedKmh),
		IsDayMode:        day,
		PerKm:            rates.PerKm(day),
		BaseFare:         rates.BaseFare,
	}, nil
}

// Book creates a ride and starts its simulation. It fails with ErrActiveRide
// while another ride is in progress.
func (s *Service) Book(ctx context.Context, req *models.BookingRequest) (*models.Ride, error) {
	quote, err := s.Quote(req.PickupLocationID, req.DestinationLocationID, req.IsDayMode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, common.NewConflictError("a ride is already active", ErrActiveRide)
	}

	now := s.clock.Now()
	ride := models.Ride{
		ID:               s.nextID(now),
		Pickup:           quote.Pickup,
		Destination:      quote.Destination,
		DistanceKm:       quote.DistanceKm,
		EstimatedPrice:   quote.EstimatedPrice,
		EstimatedMinutes: quote.EstimatedMinutes,
		CurrentPrice:     s.catalog.Rates().BaseFare,
		Driver:           s.catalog.RandomDriver(),
		IsDayMode:        quote.IsDayMode,
		StartTime:        now,
		Status:           models.RideStatusActive,
	}

	listeners := append(simulation.Listeners{&slotListener{service: s}}, s.listeners...)
	engine := simulation.New(ride, s.simCfg, listeners, s.clock)
	if err := engine.Start(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("start ride %d: %w", ride.ID, err)
	}
	s.active = engine
	s.mu.Unlock()

	ridesBooked.WithLabelValues(regimeLabel(ride.IsDayMode)).Inc()
	activeRides.Set(1)

	logger.WithContext(ctx).Info("ride booked",
		zap.Int64("ride_id", ride.ID),
		zap.String("pickup", ride.Pickup.Name),
		zap.String("destination", ride.Destination.Name),
		zap.Float64("distance_km", ride.DistanceKm),
		zap.Float64("estimated_price", ride.EstimatedPrice),
		zap.String("driver", ride.Driver.Name),
	)

	s.publish(ctx, eventbus.SubjectRideBooked, "ride.booked", eventbus.RideBookedData{
		RideID:         ride.ID,
		Pickup:         ride.Pickup.Name,
		Destination:    ride.Destination.Name,
		DistanceKm:     ride.DistanceKm,
		EstimatedPrice: ride.EstimatedPrice,
		IsDayMode:      ride.IsDayMode,
		DriverName:     ride.Driver.Name,
	})

	booked := engine.Snapshot().Ride
	return &booked, nil
}

// Active returns the state of the ride in progress. Having none is not an error.
func (s *Service) Active() (*simulation.Snapshot, bool) {
	engine := s.current()
	if engine == nil {
		return nil, false
	}
	snap := engine.Snapshot()
	if snap.Ride.Status != models.RideStatusActive {
		return nil, false
	}
	return &snap, true
}

// ActiveRideID returns the id of the ride occupying the slot, if any
func (s *Service) ActiveRideID() (int64, bool) {
	engine := s.current()
	if engine == nil {
		return 0, false
	}
	return engine.RideID(), true
}

// Complete finalizes the active ride and records it in history
func (s *Service) Complete(ctx context.Context) (*models.Ride, error) {
	engine := s.current()
	if engine == nil || !engine.Complete() {
		return nil, common.NewNotFoundError("no active ride", ErrNoActiveRide)
	}
	ride := engine.Snapshot().Ride
	logger.WithContext(ctx).Debug("ride completed on request", zap.Int64("ride_id", ride.ID))
	return &ride, nil
}

// Cancel abandons the active ride. Nothing is recorded in history.
func (s *Service) Cancel(ctx context.Context) (*models.Ride, error) {
	engine := s.current()
	if engine == nil || !engine.Cancel() {
		return nil, common.NewNotFoundError("no active ride", ErrNoActiveRide)
	}
	ride := engine.Snapshot().Ride
	logger.WithContext(ctx).Debug("ride cancelled on request", zap.Int64("ride_id", ride.ID))
	return &ride, nil
}

// Shutdown cancels any ride in progress
func (s *Service) Shutdown() {
	if engine := s.current(); engine != nil {
		engine.Cancel()
	}
}

func (s *Service) current() *simulation.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Service) resolve(pickupID, destinationID int) (models.Location, models.Location, error) {
	pickup, ok := s.catalog.Location(pickupID)
	if !ok {
		return models.Location{}, models.Location{}, common.NewBadRequestError(
			fmt.Sprintf("unknown pickup location %d", pickupID), ErrUnknownLocation)
	}
	destination, ok := s.catalog.Location(destinationID)
	if !ok {
		return models.Location{}, models.Location{}, common.NewBadRequestError(
			fmt.Sprintf("unknown destination location %d", destinationID), ErrUnknownLocation)
	}
	return pickup, destination, nil
}

func (s *Service) regime(isDayMode *bool) bool {
	if isDayMode != nil {
		return *isDayMode
	}
	return s.DayMode()
}

// nextID derives a ride id from the booking time, bumping it when two
// bookings share a millisecond. Caller holds mu.
func (s *Service) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// release empties the slot if it still holds rideID
func (s *Service) release(rideID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.RideID() == rideID {
		s.active = nil
		activeRides.Set(0)
	}
}

func (s *Service) publish(ctx context.Context, subject, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	event, err := eventbus.NewEvent(eventType, eventSource, data)
	if err != nil {
		logger.WithContext(ctx).Error("failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func regimeLabel(day bool) string {
	if day {
		return "day"
	}
	return "night"
}

// slotListener hands terminal rides back to the service. It runs on the
// engine goroutine, so it never calls into the engine.
type slotListener struct {
	simulation.NopListener
	service *Service
}

func (l *slotListener) OnCompleted(ride models.Ride) {
	s := l.service
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.history.Append(ctx, ride); err != nil {
		logger.Error("failed to record completed ride", zap.Int64("ride_id", ride.ID), zap.Error(err))
	}
	s.release(ride.ID)

	ridesCompleted.WithLabelValues(regimeLabel(ride.IsDayMode)).Inc()
	rideFares.Observe(ride.FinalPrice)

	completedAt := s.clock.Now()
	if ride.EndTime != nil {
		completedAt = *ride.EndTime
	}
	s.publish(ctx, eventbus.SubjectRideCompleted, "ride.completed", eventbus.RideCompletedData{
		RideID:      ride.ID,
		Pickup:      ride.Pickup.Name,
		Destination: ride.Destination.Name,
		FareAmount:  ride.FinalPrice,
		DistanceKm:  ride.DistanceKm,
		DurationSec: ride.DurationSeconds,
		IsDayMode:   ride.IsDayMode,
		DriverName:  ride.Driver.Name,
		PlateNumber: ride.Driver.PlateNumber,
		CompletedAt: completedAt,
	})
}

func (l *slotListener) OnCancelled(rideID int64) {
	s := l.service
	s.release(rideID)
	ridesCancelled.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.publish(ctx, eventbus.SubjectRideCancelled, "ride.cancelled", eventbus.RideCancelledData{
		RideID:      rideID,
		CancelledAt: s.clock.Now(),
	})
}
