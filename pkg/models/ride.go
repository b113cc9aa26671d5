package models

import "time"

// RideStatus represents the lifecycle state of a ride
type RideStatus string

const (
	RideStatusActive    RideStatus = "active"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// AllowedTransitions lists the states each status may move to.
// Completed and cancelled are terminal.
var AllowedTransitions = map[RideStatus][]RideStatus{
	RideStatusActive:    {RideStatusCompleted, RideStatusCancelled},
	RideStatusCompleted: {},
	RideStatusCancelled: {},
}

// CanTransition reports whether a ride may move from one status to another
func CanTransition(from, to RideStatus) bool {
	for _, allowed := range AllowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s RideStatus) IsTerminal() bool {
	return len(AllowedTransitions[s]) == 0
}

// Coordinate is a WGS84 point in decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a named pickup or destination point
type Location struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Coordinate   `json:"coordinate"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Driver is the synthetic driver attached to a booking
type Driver struct {
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	PlateNumber string  `json:"plateNumber"`
	Phone       string  `json:"phone"`
	Avatar      string  `json:"avatar"`
}

// Ride is a single booking from creation to its terminal state.
// The completion fields are only set once the ride is completed.
type Ride struct {
	ID               int64      `json:"id"`
	Pickup           Location   `json:"pickup"`
	Destination      Location   `json:"destination"`
	DistanceKm       float64    `json:"distanceKm"`
	EstimatedPrice   float64    `json:"estimatedPrice"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	CurrentPrice     float64    `json:"currentPrice"`
	Driver           Driver     `json:"driver"`
	IsDayMode        bool       `json:"isDayMode"`
	StartTime        time.Time  `json:"startTime"`
	ElapsedSeconds   int        `json:"elapsedSeconds"`
	Status           RideStatus `json:"status"`

	// Completion
	FinalPrice      float64    `json:"finalPrice,omitempty"`
	DurationSeconds int        `json:"durationSeconds,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	CompletedDate   string     `json:"completedDate,omitempty"`
	CompletedTime   string     `json:"completedTime,omitempty"`
}

// Date and time layouts of the completion stamps
const (
	CompletedDateLayout = "2006-01-02"
	CompletedTimeLayout = "15:04:05"
)

// Finalize stamps the completion fields and moves the ride to completed.
// It returns false if the ride is no longer active.
func (r *Ride) Finalize(at time.Time) bool {
	if !CanTransition(r.Status, RideStatusCompleted) {
		return false
	}
	end := at
	r.Status = RideStatusCompleted
	r.FinalPrice = r.CurrentPrice
	r.DurationSeconds = r.ElapsedSeconds
	r.EndTime = &end
	r.CompletedDate = at.Format(CompletedDateLayout)
	r.CompletedTime = at.Format(CompletedTimeLayout)
	return true
}

// MarkCancelled moves an active ride to cancelled
func (r *Ride) MarkCancelled() bool {
	if !CanTransition(r.Status, RideStatusCancelled) {
		return false
	}
	r.Status = RideStatusCancelled
	return true
}

// BookingRequest is the rider's booking input. A nil IsDayMode uses the
// current global regime.
type BookingRequest struct {
	PickupLocationID      int   `json:"pickupLocationId" binding:"required,gt=0"`
	DestinationLocationID int   `json:"destinationLocationId" binding:"required,gt=0"`
	IsDayMode             *bool `json:"isDayMode,omitempty"`
}
