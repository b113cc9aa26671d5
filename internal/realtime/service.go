package realtime

import (
	"strconv"
	"time"

	"github.com/richxcame/petit-taxi/internal/simulation"
	"github.com/richxcame/petit-taxi/pkg/models"
	ws "github.com/richxcame/petit-taxi/pkg/websocket"
)

// Outbound message types
const (
	TypeRideTick      = "ride.tick"
	TypeRideArrived   = "ride.arrived"
	TypeRideCompleted = "ride.completed"
	TypeRideCancelled = "ride.cancelled"
	TypeRideSnapshot  = "ride.snapshot"
	TypePong          = "pong"
	TypeError         = "error"
)

// Inbound message types
const (
	TypeSubscribe = "ride.subscribe"
	TypePing      = "ping"
)

// Service pushes engine signals to websocket clients. Ticks go to the ride
// room; terminal signals go to every client and close the room.
type Service struct {
	hub *ws.Hub
	now func() time.Time
}

var _ simulation.Listener = (*Service)(nil)

// NewService creates a realtime service bound to hub
func NewService(hub *ws.Hub) *Service {
	return &Service{hub: hub, now: time.Now}
}

// Hub returns the underlying hub
func (s *Service) Hub() *ws.Hub {
	return s.hub
}

// OnTick forwards the running meter to the ride's watchers
func (s *Service) OnTick(tick simulation.Tick) {
	rideID := rideKey(tick.RideID)
	s.hub.SendToRide(rideID, s.message(TypeRideTick, rideID, tickData(tick)))
}

// OnArrived announces that the taxi reached the rider
func (s *Service) OnArrived(id int64) {
	rideID := rideKey(id)
	s.hub.SendToAll(s.message(TypeRideArrived, rideID, nil))
}

// OnCompleted announces the final fare and closes the ride room
func (s *Service) OnCompleted(ride models.Ride) {
	rideID := rideKey(ride.ID)
	s.hub.SendToAll(s.message(TypeRideCompleted, rideID, map[string]interface{}{
		"finalPrice":      ride.FinalPrice,
		"durationSeconds": ride.DurationSeconds,
		"completedDate":   ride.CompletedDate,
		"completedTime":   ride.CompletedTime,
	}))
	s.hub.CloseRide(rideID)
}

// OnCancelled announces the cancellation and closes the ride room
func (s *Service) OnCancelled(id int64) {
	rideID := rideKey(id)
	s.hub.SendToAll(s.message(TypeRideCancelled, rideID, nil))
	s.hub.CloseRide(rideID)
}

func (s *Service) message(msgType, rideID string, data map[string]interface{}) *ws.Message {
	messagesSent.WithLabelValues(msgType).Inc()
	return &ws.Message{
		Type:      msgType,
		RideID:    rideID,
		Data:      data,
		Timestamp: s.now(),
	}
}

func tickData(tick simulation.Tick) map[string]interface{} {
	return map[string]interface{}{
		"elapsedSeconds": tick.ElapsedSeconds,
		"currentPrice":   tick.CurrentPrice,
		"latitude":       tick.Position.Latitude,
		"longitude":      tick.Position.Longitude,
		"progress":       tick.Progress,
	}
}

func snapshotData(snap *simulation.Snapshot) map[string]interface{} {
	data := tickData(simulation.Tick{
		RideID:         snap.Ride.ID,
		ElapsedSeconds: snap.Ride.ElapsedSeconds,
		CurrentPrice:   snap.Ride.CurrentPrice,
		Position:       snap.Position,
		Progress:       snap.Progress,
	})
	data["status"] = string(snap.Ride.Status)
	data["estimatedPrice"] = snap.Ride.EstimatedPrice
	data["driver"] = snap.Ride.Driver.Name
	data["plateNumber"] = snap.Ride.Driver.PlateNumber
	data["arrived"] = snap.Arrived
	return data
}

func rideKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
