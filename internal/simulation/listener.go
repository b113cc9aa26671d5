package simulation

import "github.com/richxcame/petit-taxi/pkg/models"

// Tick is the state reported after every elapsed, price or position tick
type Tick struct {
	RideID         int64             `json:"rideId"`
	ElapsedSeconds int               `json:"elapsedSeconds"`
	CurrentPrice   float64           `json:"currentPrice"`
	Position       models.Coordinate `json:"position"`
	Progress       float64           `json:"progress"`
}

// Listener receives engine signals. Callbacks run on the engine goroutine
// and must not call back into the same engine.
type Listener interface {
	OnTick(tick Tick)
	OnArrived(rideID int64)
	OnCompleted(ride models.Ride)
	OnCancelled(rideID int64)
}

// Listeners fans every signal out to each listener in order
type Listeners []Listener

func (ls Listeners) OnTick(tick Tick) {
	for _, l := range ls {
		l.OnTick(tick)
	}
}

func (ls Listeners) OnArrived(rideID int64) {
	for _, l := range ls {
		l.OnArrived(rideID)
	}
}

func (ls Listeners) OnCompleted(ride models.Ride) {
	for _, l := range ls {
		l.OnCompleted(ride)
	}
}

func (ls Listeners) OnCancelled(rideID int64) {
	for _, l := range ls {
		l.OnCancelled(rideID)
	}
}

// NopListener ignores every signal
type NopListener struct{}

func (NopListener) OnTick(Tick) {}
func (NopListener) OnArrived(int64) {}
func (NopListener) OnCompleted(models.Ride) {}
func (NopListener) OnCancelled(int64) {}
