package simulation

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/richxcame/petit-taxi/internal/geo"
	"github.com/richxcame/petit-taxi/pkg/config"
	"github.com/richxcame/petit-taxi/pkg/logger"
	"github.com/richxcame/petit-taxi/pkg/models"
	"go.uber.org/zap"
)

// priceCapFactor bounds the running fare relative to the estimate
const priceCapFactor = 1.1

// timerProgressStep is the progress gained per price tick when motion is not simulated
const timerProgressStep = 2.0

var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrTerminated     = errors.New("engine already terminated")
)

// Config holds the engine parameters
type Config struct {
	SimulateMotion bool
	// CapAtEstimate caps the running fare at the estimate itself
	CapAtEstimate bool
	TimeTick       time.Duration
	PriceTick      time.Duration
	PositionTick   time.Duration
	StepDegrees    float64
	StartOffset    float64
	Rates          geo.RateTable
	Target         models.Coordinate
}

// ConfigFrom assembles an engine Config from the service configuration
func ConfigFrom(sim config.SimulationConfig, rates geo.RateTable, target models.Coordinate) Config {
	return Config{
		SimulateMotion: sim.SimulateMotion,
		CapAtEstimate:  sim.CapAtEstimate,
		TimeTick:       sim.TimeTick,
		PriceTick:      sim.PriceTick,
		PositionTick:   sim.PositionTick,
		StepDegrees:    sim.StepDegrees,
		StartOffset:    sim.StartOffsetDegree,
		Rates:          rates,
		Target:         target,
	}
}

// Snapshot is a point-in-time copy of the engine state
type Snapshot struct {
	Ride     models.Ride       `json:"ride"`
	Position models.Coordinate `json:"position"`
	Progress float64           `json:"progress"`
	Arrived  bool              `json:"arrived"`
}

type commandKind int

const (
	cmdSnapshot commandKind = iota
	cmdComplete
	cmdCancel
)

type command struct {
	kind  commandKind
	reply chan result
}

type result struct {
	ok       bool
	snapshot Snapshot
}

// Engine animates one active ride. A single loop goroutine owns all ride
// state once Start has returned.
type Engine struct {
	cfg      Config
	clock    Clock
	listener Listener

	ride     models.Ride
	start    models.Coordinate
	position models.Coordinate
	progress float64
	arrived  bool

	mu      sync.Mutex
	started bool

	tickers []Ticker
	cmds    chan command
	done    chan struct{}
}

// New creates an engine for ride. The ride is not modified until Start.
func New(ride models.Ride, cfg Config, listener Listener, clock Clock) *Engine {
	if listener == nil {
		listener = NopListener{}
	}
	if clock == nil {
		clock = RealClock()
	}
	start := models.Coordinate{
		Latitude:  cfg.Target.Latitude + cfg.StartOffset,
		Longitude: cfg.Target.Longitude + cfg.StartOffset,
	}
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		listener: listener,
		ride:     ride,
		start:    start,
		position: start,
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
}

// Start arms the tickers and launches the loop
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isDone() {
		return ErrTerminated
	}
	if e.started {
		return ErrAlreadyStarted
	}

	e.ride.Status = models.RideStatusActive
	e.ride.ElapsedSeconds = 0
	e.ride.CurrentPrice = e.cfg.Rates.BaseFare
	e.ride.StartTime = e.clock.Now()
	e.position = e.start
	e.progress = 0

	timeT := e.clock.NewTicker(e.cfg.TimeTick)
	priceT := e.clock.NewTicker(e.cfg.PriceTick)
	e.tickers = []Ticker{timeT, priceT}

	var positionC <-chan time.Time
	if e.cfg.SimulateMotion {
		positionT := e.clock.NewTicker(e.cfg.PositionTick)
		e.tickers = append(e.tickers, positionT)
		positionC = positionT.C()
	}

	e.started = true
	go e.loop(timeT.C(), priceT.C(), positionC)

	logger.Debug("ride engine started",
		zap.Int64("ride_id", e.ride.ID),
		zap.Bool("simulate_motion", e.cfg.SimulateMotion),
	)
	return nil
}

// Done is closed once the engine reaches a terminal state
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// RideID returns the id of the ride the engine animates
func (e *Engine) RideID() int64 {
	return e.ride.ID
}

// Snapshot returns a copy of the current state
func (e *Engine) Snapshot() Snapshot {
	if !e.isStarted() {
		return e.snapshot()
	}
	res, ok := e.send(cmdSnapshot)
	if !ok {
		// loop has exited; state is frozen
		return e.snapshot()
	}
	return res.snapshot
}

// Complete finalizes the ride. It returns false if the engine is already
// terminal. Tickers are stopped before it returns.
func (e *Engine) Complete() bool {
	if !e.isStarted() {
		return e.terminateIdle(cmdComplete)
	}
	res, ok := e.send(cmdComplete)
	return ok && res.ok
}

// Cancel abandons the ride without a fare. It returns false if the engine is
// already terminal. Tickers are stopped before it returns.
func (e *Engine) Cancel() bool {
	if !e.isStarted() {
		return e.terminateIdle(cmdCancel)
	}
	res, ok := e.send(cmdCancel)
	return ok && res.ok
}

func (e *Engine) send(kind commandKind) (result, bool) {
	cmd := command{kind: kind, reply: make(chan result, 1)}
	select {
	case e.cmds <- cmd:
		return <-cmd.reply, true
	case <-e.done:
		return result{}, false
	}
}

func (e *Engine) isStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func (e *Engine) isDone() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// terminateIdle handles Complete or Cancel on an engine that never started
func (e *Engine) terminateIdle(kind commandKind) bool {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		if kind == cmdComplete {
			return e.Complete()
		}
		return e.Cancel()
	}
	if e.isDone() {
		e.mu.Unlock()
		return false
	}
	e.ride.Status = models.RideStatusActive
	ok := e.finish(kind)
	e.mu.Unlock()
	return ok
}

func (e *Engine) loop(timeC, priceC, positionC <-chan time.Time) {
	for {
		select {
		case <-timeC:
			e.ride.ElapsedSeconds++
			e.emitTick()

		case <-priceC:
			e.advancePrice()
			e.emitTick()

		case <-positionC:
			if e.advancePosition() {
				e.listener.OnArrived(e.ride.ID)
				e.finish(cmdComplete)
				return
			}

		case cmd := <-e.cmds:
			switch cmd.kind {
			case cmdSnapshot:
				cmd.reply <- result{ok: true, snapshot: e.snapshot()}
			case cmdComplete, cmdCancel:
				cmd.reply <- result{ok: e.finish(cmd.kind)}
				return
			}
		}
	}
}

func (e *Engine) advancePrice() {
	increment := e.cfg.Rates.Increment(e.ride.IsDayMode)
	limit := e.ride.EstimatedPrice * priceCapFactor
	if e.cfg.CapAtEstimate {
		limit = e.ride.EstimatedPrice
	}
	if !e.cfg.SimulateMotion {
		e.progress = math.Min(e.progress+timerProgressStep, 100)
	}
	next := math.Min(e.ride.CurrentPrice+increment, limit)
	if next > e.ride.CurrentPrice {
		e.ride.CurrentPrice = next
	}
}

// advancePosition moves the taxi one step and reports arrival
func (e *Engine) advancePosition() bool {
	next, arrived := geo.Step(e.position, e.cfg.Target, e.cfg.StepDegrees)
	e.position = next
	e.progress = geo.Progress(e.start, e.position, e.cfg.Target)
	if arrived {
		e.arrived = true
		e.progress = 100
	}
	e.emitTick()
	return arrived
}

// finish stops the tickers, applies the terminal transition and notifies
// the listener. Called on the loop goroutine or under mu before Start.
func (e *Engine) finish(kind commandKind) bool {
	for _, t := range e.tickers {
		t.Stop()
	}

	var ok bool
	switch kind {
	case cmdComplete:
		ok = e.ride.Finalize(e.clock.Now())
	case cmdCancel:
		ok = e.ride.MarkCancelled()
	}

	defer close(e.done)

	if !ok {
		return false
	}

	if kind == cmdComplete {
		logger.Info("ride completed",
			zap.Int64("ride_id", e.ride.ID),
			zap.Float64("final_price", e.ride.FinalPrice),
			zap.Int("duration_seconds", e.ride.DurationSeconds),
		)
		e.listener.OnCompleted(e.ride)
	} else {
		logger.Info("ride cancelled", zap.Int64("ride_id", e.ride.ID))
		e.listener.OnCancelled(e.ride.ID)
	}
	return true
}

func (e *Engine) emitTick() {
	e.listener.OnTick(Tick{
		RideID:         e.ride.ID,
		ElapsedSeconds: e.ride.ElapsedSeconds,
		CurrentPrice:   e.ride.CurrentPrice,
		Position:       e.position,
		Progress:       e.progress,
	})
}

func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Ride:     e.ride,
		Position: e.position,
		Progress: e.progress,
		Arrived:  e.arrived,
	}
}
