package ridehistory

import (
	"time"

	"github.com/richxcame/petit-taxi/pkg/models"
)

// RideStats summarizes the completed rides in a period
type RideStats struct {
	TotalRides       int     `json:"totalRides"`
	TotalSpent       float64 `json:"totalSpent"`
	TotalDistanceKm  float64 `json:"totalDistanceKm"`
	TotalDurationSec int     `json:"totalDurationSeconds"`
	AverageFare      float64 `json:"averageFare"`
	AverageDistance  float64 `json:"averageDistanceKm"`
	DayRides         int     `json:"dayRides"`
	NightRides       int     `json:"nightRides"`
	FavoritePickup   *string `json:"favoritePickup,omitempty"`
	FavoriteDropoff  *string `json:"favoriteDropoff,omitempty"`
	Period           string  `json:"period"`
}

// FrequentRoute is a pickup/destination pair the rider takes often
type FrequentRoute struct {
	Pickup      string  `json:"pickup"`
	Destination string  `json:"destination"`
	RideCount   int     `json:"rideCount"`
	AverageFare float64 `json:"averageFare"`
	LastRideAt  string  `json:"lastRideAt"`
}

// Receipt is the printable summary of a completed ride
type Receipt struct {
	ReceiptID     string         `json:"receiptId"`
	RideID        int64          `json:"rideId"`
	IssuedAt      time.Time      `json:"issuedAt"`
	Pickup        string         `json:"pickup"`
	Destination   string         `json:"destination"`
	DistanceKm    float64        `json:"distanceKm"`
	DurationSec   int            `json:"durationSeconds"`
	TripDate      string         `json:"tripDate"`
	TripEndTime   string         `json:"tripEndTime"`
	Rate          string         `json:"rate"`
	RateLabel     string         `json:"rateLabel"`
	RouteLabel    string         `json:"routeLabel"`
	DriverLabel   string         `json:"driverLabel"`
	FareBreakdown []FareLineItem `json:"fareBreakdown"`
	Total         float64        `json:"total"`
	TotalDisplay  string         `json:"totalDisplay"`
	Currency      string         `json:"currency"`
	Language      string         `json:"language"`
	DriverName    string         `json:"driverName"`
	PlateNumber   string         `json:"plateNumber"`
}

// FareLineItem represents a line in the fare breakdown
type FareLineItem struct {
	Label   string  `json:"label"`
	Amount  float64 `json:"amount"`
	Display string  `json:"display"`
	Type    string  `json:"type"` // charge, adjustment
}

// HistoryFilters narrows List results
type HistoryFilters struct {
	FromDate *time.Time
	ToDate   *time.Time
	MinFare  *float64
	MaxFare  *float64
}

// Match reports whether ride passes every set filter
func (f *HistoryFilters) Match(ride models.Ride) bool {
	if f == nil {
		return true
	}
	if f.MinFare != nil && ride.FinalPrice < *f.MinFare {
		return false
	}
	if f.MaxFare != nil && ride.FinalPrice > *f.MaxFare {
		return false
	}
	if f.FromDate == nil && f.ToDate == nil {
		return true
	}
	at, ok := completedAt(ride)
	if !ok {
		return false
	}
	if f.FromDate != nil && at.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && !at.Before(*f.ToDate) {
		return false
	}
	return true
}

func completedAt(ride models.Ride) (time.Time, bool) {
	if ride.EndTime != nil {
		return *ride.EndTime, true
	}
	if ride.CompletedDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.CompletedDateLayout, ride.CompletedDate)
	return t, err == nil
}
