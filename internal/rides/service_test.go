package rides

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/richxcame/petit-taxi/internal/catalog"
	"github.com/richxcame/petit-taxi/internal/geo"
	"github.com/richxcame/petit-taxi/internal/simulation"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/eventbus"
	"github.com/richxcame/petit-taxi/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHistory implements HistoryRecorder for testing
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Append(ctx context.Context, ride models.Ride) error {
	args := m.Called(ctx, ride)
	return args.Error(0)
}

// MockPublisher implements EventPublisher for testing
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

// manualClock never fires on its own; tests push ticks through its tickers
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func newManualClock(hour int) *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, hour, 30, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(time.Duration) simulation.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

// each engine creates its elapsed, price and position tickers in that order
func (c *manualClock) latest(fromEnd int) *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-fromEnd]
}

func (c *manualClock) timeTick()     { c.latest(3).ch <- c.Now() }
func (c *manualClock) priceTick()    { c.latest(2).ch <- c.Now() }
func (c *manualClock) positionTick() { c.latest(1).ch <- c.Now() }

var testRates = geo.RateTable{BaseFare: 7.50, PerKmDay: 1.50, PerKmNight: 2.00, AvgSpeedKmh: 30, DayIncrement: 0.15, NightIncrement: 0.20}

func testSimConfig() simulation.Config {
	return simulation.Config{
		SimulateMotion: true,
		TimeTick:       time.Second,
		PriceTick:      time.Second,
		PositionTick:   100 * time.Millisecond,
		StepDegrees:    1,
		StartOffset:    0.01,
		Rates:          testRates,
		Target:         catalog.UserLocation,
	}
}

type fixture struct {
	service   *Service
	history   *MockHistory
	publisher *MockPublisher
	clock     *manualClock
}

func newFixture(t *testing.T, hour int) *fixture {
	t.Helper()
	f := &fixture{
		history:   new(MockHistory),
		publisher: new(MockPublisher),
		clock:     newManualClock(hour),
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("*eventbus.Event")).Return(nil).Maybe()

	cat := catalog.New(testRates, catalog.WithRand(rand.New(rand.NewPCG(1, 2))))
	f.service = NewService(cat, f.history, testSimConfig(),
		WithClock(f.clock),
		WithPublisher(f.publisher),
	)
	t.Cleanup(f.service.Shutdown)
	return f
}

func booking(pickup, destination int) *models.BookingRequest {
	return &models.BookingRequest{PickupLocationID: pickup, DestinationLocationID: destination}
}

func TestIsDayHour(t *testing.T) {
	tests := []struct {
		hour     int
		expected bool
	}{
		{0, false},
		{5, false},
		{6, true},
		{12, true},
		{19, true},
		{20, false},
		{23, false},
	}

	for _, tt := range tests {
		at := time.Date(2024, 5, 1, tt.hour, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.expected, IsDayHour(at), "hour %d", tt.hour)
	}
}

func TestNewService_InitialModeFollowsClock(t *testing.T) {
	assert.True(t, newFixture(t, 10).service.DayMode())
	assert.False(t, newFixture(t, 22).service.DayMode())
}

func TestSetDayMode(t *testing.T) {
	f := newFixture(t, 22)

	f.service.SetDayMode(true)
	assert.True(t, f.service.DayMode())

	f.service.SetDayMode(false)
	assert.False(t, f.service.DayMode())
}

func TestQuote(t *testing.T) {
	f := newFixture(t, 10)

	quote, err := f.service.Quote(1, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, "Mohammed V Airport", quote.Pickup.Name)
	assert.Equal(t, "Morocco Mall", quote.Destination.Name)
	assert.InDelta(t, 21.3, quote.DistanceKm, 0.3)
	assert.InDelta(t, 7.50+1.50*quote.DistanceKm, quote.EstimatedPrice, 1e-9)
	assert.True(t, quote.IsDayMode)
	assert.Equal(t, 1.50, quote.PerKm)
	assert.GreaterOrEqual(t, quote.EstimatedMinutes, 1)
}

func TestQuote_ExplicitNight(t *testing.T) {
	f := newFixture(t, 10)
	night := false

	quote, err := f.service.Quote(1, 3, &night)
	require.NoError(t, err)

	assert.False(t, quote.IsDayMode)
	assert.Equal(t, 2.00, quote.PerKm)
	assert.InDelta(t, 7.50+2.00*quote.DistanceKm, quote.EstimatedPrice, 1e-9)
}

func TestQuote_UnknownLocation(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.service.Quote(1, 99, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLocation))

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestBook(t *testing.T) {
	f := newFixture(t, 22)

	ride, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)

	assert.Equal(t, f.clock.Now().UnixMilli(), ride.ID)
	assert.Equal(t, models.RideStatusActive, ride.Status)
	assert.Equal(t, 7.50, ride.CurrentPrice)
	assert.Equal(t, 0, ride.ElapsedSeconds)
	assert.False(t, ride.IsDayMode)
	assert.NotEmpty(t, ride.Driver.Name)
	assert.NotEmpty(t, ride.Driver.Avatar)

	snap, ok := f.service.Active()
	require.True(t, ok)
	assert.Equal(t, ride.ID, snap.Ride.ID)

	f.publisher.AssertCalled(t, "Publish", mock.Anything, eventbus.SubjectRideBooked, mock.AnythingOfType("*eventbus.Event"))
}

func TestBook_RequestModeOverridesGlobal(t *testing.T) {
	f := newFixture(t, 22)
	day := true
	req := booking(2, 4)
	req.IsDayMode = &day

	ride, err := f.service.Book(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, ride.IsDayMode)
	assert.False(t, f.service.DayMode())
}

func TestBook_RejectsWhileActive(t *testing.T) {
	f := newFixture(t, 10)

	first, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)

	_, err = f.service.Book(context.Background(), booking(2, 4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrActiveRide))

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.Code)

	snap, ok := f.service.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID, snap.Ride.ID)
}

func TestBook_UnknownLocationLeavesSlotEmpty(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.service.Book(context.Background(), booking(42, 3))
	assert.True(t, errors.Is(err, ErrUnknownLocation))

	_, ok := f.service.Active()
	assert.False(t, ok)
}

func TestBook_IDBumpsWithinSameMillisecond(t *testing.T) {
	f := newFixture(t, 10)

	first, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	_, err = f.service.Cancel(context.Background())
	require.NoError(t, err)

	second, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
}

func TestActiveRideID(t *testing.T) {
	f := newFixture(t, 10)

	_, ok := f.service.ActiveRideID()
	assert.False(t, ok)

	booked, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	id, ok := f.service.ActiveRideID()
	require.True(t, ok)
	assert.Equal(t, booked.ID, id)

	_, err = f.service.Cancel(context.Background())
	require.NoError(t, err)
	_, ok = f.service.ActiveRideID()
	assert.False(t, ok)
}

func TestActive_NoneIsNotAnError(t *testing.T) {
	f := newFixture(t, 10)

	snap, ok := f.service.Active()
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestComplete_RecordsHistoryAndFreesSlot(t *testing.T) {
	f := newFixture(t, 10)
	f.history.On("Append", mock.Anything, mock.MatchedBy(func(r models.Ride) bool {
		return r.Status == models.RideStatusCompleted
	})).Return(nil).Once()

	booked, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f.clock.timeTick()
	}

	ride, err := f.service.Complete(context.Background())
	require.NoError(t, err)

	assert.Equal(t, booked.ID, ride.ID)
	assert.Equal(t, models.RideStatusCompleted, ride.Status)
	assert.Equal(t, ride.CurrentPrice, ride.FinalPrice)
	assert.Equal(t, 3, ride.DurationSeconds)
	require.NotNil(t, ride.EndTime)
	assert.Equal(t, "2024-05-01", ride.CompletedDate)

	_, ok := f.service.Active()
	assert.False(t, ok)
	f.history.AssertExpectations(t)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, eventbus.SubjectRideCompleted, mock.AnythingOfType("*eventbus.Event"))

	// slot is free for the next booking
	_, err = f.service.Book(context.Background(), booking(2, 4))
	assert.NoError(t, err)
}

func TestComplete_HistoryFailureStillFreesSlot(t *testing.T) {
	f := newFixture(t, 10)
	f.history.On("Append", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	_, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)

	_, err = f.service.Complete(context.Background())
	require.NoError(t, err)

	_, ok := f.service.Active()
	assert.False(t, ok)
}

func TestComplete_NoActiveRide(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.service.Complete(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoActiveRide))

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestCancel_DoesNotRecordHistory(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)

	ride, err := f.service.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, ride.Status)
	assert.Zero(t, ride.FinalPrice)

	_, ok := f.service.Active()
	assert.False(t, ok)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, eventbus.SubjectRideCancelled, mock.AnythingOfType("*eventbus.Event"))

	_, err = f.service.Cancel(context.Background())
	assert.True(t, errors.Is(err, ErrNoActiveRide))
}

func TestCancel_MidRide(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		f.clock.timeTick()
	}

	ride, err := f.service.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, ride.ElapsedSeconds)
	assert.Equal(t, models.RideStatusCancelled, ride.Status)

	_, ok := f.service.Active()
	assert.False(t, ok)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestAirportToMoroccoMall_DayRide(t *testing.T) {
	f := newFixture(t, 10)
	recorded := make(chan models.Ride, 1)
	f.history.On("Append", mock.Anything, mock.Anything).Return(nil).Once().Run(func(args mock.Arguments) {
		recorded <- args.Get(1).(models.Ride)
	})

	booked, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	assert.True(t, booked.IsDayMode)
	assert.InDelta(t, 21.3, booked.DistanceKm, 0.1)
	assert.InDelta(t, 39.5, booked.EstimatedPrice, 0.2)
	assert.Equal(t, 43, booked.EstimatedMinutes)

	// enough day increments to run into the cap
	for i := 0; i < 60; i++ {
		f.clock.timeTick()
	}
	for i := 0; i < 300; i++ {
		f.clock.priceTick()
	}
	f.clock.positionTick()

	select {
	case ride := <-recorded:
		assert.Equal(t, models.RideStatusCompleted, ride.Status)
		assert.LessOrEqual(t, ride.FinalPrice, booked.EstimatedPrice*1.1+1e-9)
		assert.InDelta(t, booked.EstimatedPrice*1.1, ride.FinalPrice, 1e-9)
		assert.Greater(t, ride.DurationSeconds, 0)
		assert.Equal(t, 60, ride.DurationSeconds)
	case <-time.After(time.Second):
		t.Fatal("arrival did not complete the ride")
	}
}

func TestArrival_CompletesAutomatically(t *testing.T) {
	f := newFixture(t, 10)
	recorded := make(chan models.Ride, 1)
	f.history.On("Append", mock.Anything, mock.Anything).Return(nil).Once().Run(func(args mock.Arguments) {
		recorded <- args.Get(1).(models.Ride)
	})

	booked, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)

	// one step of a full degree covers the start offset
	f.clock.positionTick()

	select {
	case ride := <-recorded:
		assert.Equal(t, booked.ID, ride.ID)
		assert.Equal(t, models.RideStatusCompleted, ride.Status)
	case <-time.After(time.Second):
		t.Fatal("arrival did not complete the ride")
	}

	require.Eventually(t, func() bool {
		_, ok := f.service.Active()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestShutdown_CancelsActiveRide(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.service.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)

	f.service.Shutdown()

	_, ok := f.service.Active()
	assert.False(t, ok)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestNearbyTaxis(t *testing.T) {
	f := newFixture(t, 10)

	assert.Len(t, f.service.NearbyTaxis(4), 4)
	assert.Empty(t, f.service.NearbyTaxis(0))
}

func TestWithListener_ReceivesSignals(t *testing.T) {
	l := &countingListener{}
	history := new(MockHistory)
	clk := newManualClock(10)
	svc := NewService(catalog.New(testRates), history, testSimConfig(), WithClock(clk), WithListener(l))
	t.Cleanup(svc.Shutdown)

	_, err := svc.Book(context.Background(), booking(1, 3))
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, l.cancelledCount())
}

type countingListener struct {
	simulation.NopListener
	mu        sync.Mutex
	cancelled int
}

func (l *countingListener) OnCancelled(int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled++
}

func (l *countingListener) cancelledCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancelled
}
