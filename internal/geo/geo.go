package geo

import (
	"math"

	"github.com/richxcame/petit-taxi/pkg/models"
)

const earthRadiusKm = 6371.0

// RateTable holds the fare parameters
type RateTable struct {
	BaseFare       float64 `json:"baseFare"`
	PerKmDay       float64 `json:"perKmDay"`
	PerKmNight     float64 `json:"perKmNight"`
	AvgSpeedKmh    float64 `json:"avgSpeedKmh"`
	DayIncrement   float64 `json:"dayIncrement"`
	NightIncrement float64 `json:"nightIncrement"`
}

// PerKm returns the per-kilometre rate of the given regime
func (r RateTable) PerKm(isDayMode bool) float64 {
	if isDayMode {
		return r.PerKmDay
	}
	return r.PerKmNight
}

// Increment returns the per-second price step of the given regime
func (r RateTable) Increment(isDayMode bool) float64 {
	if isDayMode {
		return r.DayIncrement
	}
	return r.NightIncrement
}

// Distance returns the great-circle distance between two points in kilometres
func Distance(a, b models.Coordinate) float64 {
	return haversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Fare returns the estimated price for a trip. Negative distances count as zero.
func Fare(distanceKm float64, isDayMode bool, rates RateTable) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	return rates.BaseFare + distanceKm*rates.PerKm(isDayMode)
}

// ETA returns the estimated trip duration in whole minutes, never less than one
func ETA(distanceKm, avgSpeedKmh float64) int {
	return estimateETAMinutes(distanceKm, avgSpeedKmh)
}

func estimateETAMinutes(distanceKm, avgSpeedKmh float64) int {
	if avgSpeedKmh <= 0 || distanceKm <= 0 {
		return 1
	}
	minutes := int(math.Ceil(distanceKm / avgSpeedKmh * 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Step moves from toward to by stepDeg on each axis. When the remaining
// planar distance is below stepDeg it returns to exactly and true.
func Step(from, to models.Coordinate, stepDeg float64) (models.Coordinate, bool) {
	dLat := to.Latitude - from.Latitude
	dLon := to.Longitude - from.Longitude
	remaining := math.Sqrt(dLat*dLat + dLon*dLon)

	if remaining < stepDeg || remaining == 0 {
		return to, true
	}

	return models.Coordinate{
		Latitude:  from.Latitude + dLat/remaining*stepDeg,
		Longitude: from.Longitude + dLon/remaining*stepDeg,
	}, false
}

// Progress returns how much of the path from start to target has been covered, in [0, 100]
func Progress(start, current, target models.Coordinate) float64 {
	total := planar(start, target)
	if total == 0 {
		return 100
	}
	done := 1 - planar(current, target)/total
	return math.Max(0, math.Min(1, done)) * 100
}

func planar(a, b models.Coordinate) float64 {
	dLat := b.Latitude - a.Latitude
	dLon := b.Longitude - a.Longitude
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
