package simulation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/richxcame/petit-taxi/internal/geo"
	"github.com/richxcame/petit-taxi/pkg/config"
	"github.com/richxcame/petit-taxi/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out unbuffered tickers: a send returns once the engine
// loop has received the tick.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

// tickers are created in the order elapsed, price, position
func (c *fakeClock) timeTick()     { c.ticker(0).ch <- c.Now() }
func (c *fakeClock) priceTick()    { c.ticker(1).ch <- c.Now() }
func (c *fakeClock) positionTick() { c.ticker(2).ch <- c.Now() }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// delivered reports whether a tick would be consumed right now
func (t *fakeTicker) delivered() bool {
	select {
	case t.ch <- time.Time{}:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type recordingListener struct {
	mu        sync.Mutex
	ticks     []Tick
	arrived   []int64
	completed []models.Ride
	cancelled []int64
	order     []string
}

func (l *recordingListener) OnTick(tick Tick) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks = append(l.ticks, tick)
}

func (l *recordingListener) OnArrived(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.arrived = append(l.arrived, id)
	l.order = append(l.order, "arrived")
}

func (l *recordingListener) OnCompleted(ride models.Ride) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, ride)
	l.order = append(l.order, "completed")
}

func (l *recordingListener) OnCancelled(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled = append(l.cancelled, id)
	l.order = append(l.order, "cancelled")
}

func (l *recordingListener) counts() (int, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.arrived), len(l.completed), len(l.cancelled)
}

var testRates = geo.RateTable{BaseFare: 7.50, PerKmDay: 1.50, PerKmNight: 2.00, AvgSpeedKmh: 30, DayIncrement: 0.15, NightIncrement: 0.20}

var rider = models.Coordinate{Latitude: 33.5731, Longitude: -7.5898}

func testConfig(motion bool) Config {
	return Config{
		SimulateMotion: motion,
		TimeTick:       time.Second,
		PriceTick:      time.Second,
		PositionTick:   100 * time.Millisecond,
		StepDegrees:    0.0001,
		StartOffset:    0.01,
		Rates:          testRates,
		Target:         rider,
	}
}

func testRide(estimated float64, day bool) models.Ride {
	return models.Ride{
		ID:             1714599000000,
		DistanceKm:     (estimated - 7.50) / 1.50,
		EstimatedPrice: estimated,
		IsDayMode:      day,
		Status:         models.RideStatusActive,
	}
}

func startEngine(t *testing.T, ride models.Ride, cfg Config) (*Engine, *fakeClock, *recordingListener) {
	t.Helper()
	clk := newFakeClock()
	l := &recordingListener{}
	e := New(ride, cfg, l, clk)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Cancel() })
	return e, clk, l
}

func TestStart_InitialState(t *testing.T) {
	e, clk, _ := startEngine(t, testRide(20, true), testConfig(true))

	snap := e.Snapshot()
	assert.Equal(t, models.RideStatusActive, snap.Ride.Status)
	assert.Equal(t, 0, snap.Ride.ElapsedSeconds)
	assert.Equal(t, 7.50, snap.Ride.CurrentPrice)
	assert.Equal(t, clk.Now(), snap.Ride.StartTime)
	assert.InDelta(t, rider.Latitude+0.01, snap.Position.Latitude, 1e-12)
	assert.InDelta(t, rider.Longitude+0.01, snap.Position.Longitude, 1e-12)
	assert.False(t, snap.Arrived)
	assert.Len(t, clk.tickers, 3)
}

func TestStart_Twice(t *testing.T) {
	e, _, _ := startEngine(t, testRide(20, true), testConfig(true))
	assert.ErrorIs(t, e.Start(), ErrAlreadyStarted)
}

func TestStart_AfterTermination(t *testing.T) {
	e := New(testRide(20, true), testConfig(true), nil, newFakeClock())
	require.True(t, e.Cancel())
	assert.ErrorIs(t, e.Start(), ErrTerminated)
}

func TestElapsedTicks(t *testing.T) {
	e, clk, l := startEngine(t, testRide(20, true), testConfig(true))

	for i := 0; i < 5; i++ {
		clk.timeTick()
	}

	assert.Equal(t, 5, e.Snapshot().Ride.ElapsedSeconds)
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.ticks, 5)
	assert.Equal(t, 5, l.ticks[4].ElapsedSeconds)
}

func TestPriceMonotonicAndCapped(t *testing.T) {
	// base 7.50, estimate 8.00, cap 8.80: night steps of 0.20 reach the cap after 7 ticks
	e, clk, _ := startEngine(t, testRide(8.00, false), testConfig(true))

	prev := e.Snapshot().Ride.CurrentPrice
	for i := 0; i < 10; i++ {
		clk.priceTick()
		price := e.Snapshot().Ride.CurrentPrice
		assert.GreaterOrEqual(t, price, prev)
		assert.LessOrEqual(t, price, 8.00*1.1+1e-9)
		prev = price
	}
	assert.InDelta(t, 8.80, prev, 1e-9)
}

func TestPriceIncrementPerMode(t *testing.T) {
	tests := []struct {
		name  string
		day   bool
		price float64
	}{
		{"day", true, 7.65},
		{"night", false, 7.70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clk, _ := startEngine(t, testRide(30, tt.day), testConfig(true))
			clk.priceTick()
			assert.InDelta(t, tt.price, e.Snapshot().Ride.CurrentPrice, 1e-9)
		})
	}
}

func TestArrivalAutoCompletes(t *testing.T) {
	e, clk, l := startEngine(t, testRide(20, true), testConfig(true))
	clk.timeTick()
	clk.priceTick()

	// the diagonal offset of 0.01 takes 142 steps of 0.0001
	for i := 0; i < 142; i++ {
		clk.positionTick()
	}

	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("engine did not complete on arrival")
	}

	arrived, completed, cancelled := l.counts()
	assert.Equal(t, 1, arrived)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, cancelled)
	assert.Equal(t, []string{"arrived", "completed"}, l.order)

	ride := l.completed[0]
	assert.Equal(t, models.RideStatusCompleted, ride.Status)
	assert.InDelta(t, 7.65, ride.FinalPrice, 1e-9)
	assert.Equal(t, 1, ride.DurationSeconds)
	assert.Equal(t, "2024-05-01", ride.CompletedDate)
	assert.Equal(t, "21:30:00", ride.CompletedTime)

	snap := e.Snapshot()
	assert.True(t, snap.Arrived)
	assert.Equal(t, rider, snap.Position)
	assert.Equal(t, 100.0, snap.Progress)

	for _, tk := range clk.tickers {
		assert.True(t, tk.isStopped())
	}
	assert.False(t, e.Cancel(), "a completed ride cannot be cancelled")
}

func TestCancelStopsTicks(t *testing.T) {
	e, clk, l := startEngine(t, testRide(20, true), testConfig(true))
	for i := 0; i < 3; i++ {
		clk.timeTick()
	}
	clk.priceTick()
	before := e.Snapshot()

	require.True(t, e.Cancel())

	for _, tk := range clk.tickers {
		assert.True(t, tk.isStopped())
		assert.False(t, tk.delivered(), "no tick is consumed after cancel")
	}

	after := e.Snapshot()
	assert.Equal(t, models.RideStatusCancelled, after.Ride.Status)
	assert.Equal(t, before.Ride.ElapsedSeconds, after.Ride.ElapsedSeconds)
	assert.Equal(t, before.Ride.CurrentPrice, after.Ride.CurrentPrice)
	assert.Zero(t, after.Ride.FinalPrice)

	arrived, completed, cancelled := l.counts()
	assert.Equal(t, 0, arrived)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, cancelled)

	assert.False(t, e.Cancel())
	assert.False(t, e.Complete())
}

func TestCompleteExplicit(t *testing.T) {
	e, clk, l := startEngine(t, testRide(20, false), testConfig(true))
	for i := 0; i < 4; i++ {
		clk.timeTick()
		clk.priceTick()
	}

	require.True(t, e.Complete())
	assert.False(t, e.Complete())

	_, completed, _ := l.counts()
	require.Equal(t, 1, completed)
	ride := l.completed[0]
	assert.Equal(t, 4, ride.DurationSeconds)
	assert.InDelta(t, 7.50+4*0.20, ride.FinalPrice, 1e-9)
	require.NotNil(t, ride.EndTime)
}

func TestCancelRacesArrival(t *testing.T) {
	cfg := testConfig(true)
	cfg.StartOffset = 0
	e, clk, l := startEngine(t, testRide(20, true), cfg)

	var wg sync.WaitGroup
	results := make(chan bool, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		select {
		case clk.ticker(2).ch <- clk.Now():
		case <-e.Done():
		}
	}()
	go func() {
		defer wg.Done()
		results <- e.Cancel()
	}()
	wg.Wait()

	cancelOK := <-results
	arrived, completed, cancelled := l.counts()
	assert.Equal(t, 1, completed+cancelled, "exactly one terminal signal")
	if cancelOK {
		assert.Equal(t, 1, cancelled)
		assert.Equal(t, models.RideStatusCancelled, e.Snapshot().Ride.Status)
	} else {
		assert.Equal(t, 1, arrived)
		assert.Equal(t, models.RideStatusCompleted, e.Snapshot().Ride.Status)
	}
}

func TestTimerOnlyVariant(t *testing.T) {
	e, clk, l := startEngine(t, testRide(8.00, true), testConfig(false))
	require.Len(t, clk.tickers, 2, "no position ticker without motion")

	for i := 0; i < 10; i++ {
		clk.timeTick()
		clk.priceTick()
	}

	snap := e.Snapshot()
	assert.InDelta(t, 8.80, snap.Ride.CurrentPrice, 1e-9, "same cap as the motion variant")
	assert.InDelta(t, 20.0, snap.Progress, 1e-9)
	assert.Equal(t, models.RideStatusActive, snap.Ride.Status, "no auto completion")
	assert.Equal(t, rider.Latitude+0.01, snap.Position.Latitude)

	require.True(t, e.Complete())
	_, completed, _ := l.counts()
	assert.Equal(t, 1, completed)
}

func TestCapAtEstimate(t *testing.T) {
	for _, motion := range []bool{true, false} {
		t.Run(fmt.Sprintf("motion=%v", motion), func(t *testing.T) {
			cfg := testConfig(motion)
			cfg.CapAtEstimate = true
			e, clk, _ := startEngine(t, testRide(8.00, true), cfg)

			for i := 0; i < 20; i++ {
				clk.priceTick()
			}

			assert.InDelta(t, 8.00, e.Snapshot().Ride.CurrentPrice, 1e-9)
		})
	}
}

func TestUnstartedEngine(t *testing.T) {
	l := &recordingListener{}
	e := New(testRide(20, true), testConfig(true), l, newFakeClock())

	snap := e.Snapshot()
	assert.Equal(t, models.RideStatusActive, snap.Ride.Status)

	require.True(t, e.Complete())
	assert.False(t, e.Cancel())
	_, completed, _ := l.counts()
	assert.Equal(t, 1, completed)
}

func TestListeners_FanOut(t *testing.T) {
	a, b := &recordingListener{}, &recordingListener{}
	ls := Listeners{a, b}

	ls.OnTick(Tick{RideID: 1})
	ls.OnArrived(1)
	ls.OnCompleted(models.Ride{ID: 1})
	ls.OnCancelled(1)

	for _, l := range []*recordingListener{a, b} {
		assert.Len(t, l.ticks, 1)
		assert.Equal(t, []string{"arrived", "completed", "cancelled"}, l.order)
	}
}

func TestConfigFrom(t *testing.T) {
	sim := config.SimulationConfig{
		SimulateMotion:    true,
		TimeTick:          time.Second,
		PriceTick:         2 * time.Second,
		PositionTick:      50 * time.Millisecond,
		StepDegrees:       0.0002,
		StartOffsetDegree: 0.02,
	}

	cfg := ConfigFrom(sim, testRates, rider)
	assert.True(t, cfg.SimulateMotion)
	assert.False(t, cfg.CapAtEstimate)
	assert.Equal(t, 2*time.Second, cfg.PriceTick)
	assert.Equal(t, 50*time.Millisecond, cfg.PositionTick)
	assert.Equal(t, 0.0002, cfg.StepDegrees)
	assert.Equal(t, 0.02, cfg.StartOffset)
	assert.Equal(t, rider, cfg.Target)
}

func TestRealClock(t *testing.T) {
	clk := RealClock()
	tk := clk.NewTicker(time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker never fired")
	}
	assert.WithinDuration(t, time.Now(), clk.Now(), time.Second)
}
