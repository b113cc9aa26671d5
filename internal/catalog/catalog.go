package catalog

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/richxcame/petit-taxi/internal/geo"
	"github.com/richxcame/petit-taxi/pkg/config"
	"github.com/richxcame/petit-taxi/pkg/models"
)

// UserLocation is the rider's fixed position
var UserLocation = models.Coordinate{Latitude: 33.5731, Longitude: -7.5898}

// nearbySpreadDegrees is the width of the box idle taxis are scattered in
const nearbySpreadDegrees = 0.05

var defaultLocations = []models.Location{
	{ID: 1, Name: "Mohammed V Airport", Coordinate: models.Coordinate{Latitude: 33.3676, Longitude: -7.5898}, Neighborhood: "Airport"},
	{ID: 2, Name: "Casa-Voyageurs Station", Coordinate: models.Coordinate{Latitude: 33.5895, Longitude: -7.5897}, Neighborhood: "City Center"},
	{ID: 3, Name: "Morocco Mall", Coordinate: models.Coordinate{Latitude: 33.5478, Longitude: -7.6690}, Neighborhood: "Ain Diab"},
	{ID: 4, Name: "Twin Center", Coordinate: models.Coordinate{Latitude: 33.5831, Longitude: -7.6325}, Neighborhood: "Maarif"},
	{ID: 5, Name: "Casablanca Marina", Coordinate: models.Coordinate{Latitude: 33.6029, Longitude: -7.6308}, Neighborhood: "Marina"},
	{ID: 6, Name: "Hassan II Mosque", Coordinate: models.Coordinate{Latitude: 33.6080, Longitude: -7.6328}, Neighborhood: "Corniche"},
	{ID: 7, Name: "Habous Quarter", Coordinate: models.Coordinate{Latitude: 33.5775, Longitude: -7.6131}, Neighborhood: "Habous"},
	{ID: 8, Name: "Ain Diab", Coordinate: models.Coordinate{Latitude: 33.5762, Longitude: -7.6851}, Neighborhood: "Ain Diab"},
	{ID: 9, Name: "Zerktouni Boulevard", Coordinate: models.Coordinate{Latitude: 33.5885, Longitude: -7.6236}, Neighborhood: "Gauthier"},
	{ID: 10, Name: "Central Market", Coordinate: models.Coordinate{Latitude: 33.5933, Longitude: -7.6155}, Neighborhood: "City Center"},
}

var defaultDrivers = []models.Driver{
	{Name: "Ahmed Bennani", Rating: 4.8, Phone: "+212 6XX-XXXXXX", PlateNumber: "AB-123-CD"},
	{Name: "Driss El Amrani", Rating: 4.6, Phone: "+212 6XX-XXXXXX", PlateNumber: "AB-124-CD"},
	{Name: "Youssef Alami", Rating: 4.9, Phone: "+212 6XX-XXXXXX", PlateNumber: "AB-125-CD"},
	{Name: "Hassan Idrissi", Rating: 4.7, Phone: "+212 6XX-XXXXXX", PlateNumber: "AB-126-CD"},
	{Name: "Rachid Moussaoui", Rating: 4.9, Phone: "+212 6XX-XXXXXX", PlateNumber: "AB-127-CD"},
	{Name: "Karim Saidi", Rating: 4.5, Phone: "+212 6XX-XXXXXX", PlateNumber: "AB-128-CD"},
}

// Catalog is the static reference data used when booking
type Catalog struct {
	locations map[int]models.Location
	drivers   []models.Driver
	rates     geo.RateTable

	randMu sync.Mutex // guards intn and float
	intn   func(n int) int
	float  func() float64
}

// Option configures a Catalog
type Option func(*Catalog)

// WithRand replaces the random source (tests pass a seeded generator)
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) {
		c.intn = r.IntN
		c.float = r.Float64
	}
}

// WithDrivers replaces the driver roster
func WithDrivers(drivers []models.Driver) Option {
	return func(c *Catalog) {
		c.drivers = withAvatars(drivers)
	}
}

// New builds the Casablanca catalog with the given rate table
func New(rates geo.RateTable, opts ...Option) *Catalog {
	c := &Catalog{
		locations: make(map[int]models.Location, len(defaultLocations)),
		drivers:   withAvatars(defaultDrivers),
		rates:     rates,
		intn:      rand.IntN,
		float:     rand.Float64,
	}
	for _, loc := range defaultLocations {
		c.locations[loc.ID] = loc
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RatesFromConfig converts the configured rates into a RateTable
func RatesFromConfig(cfg config.RatesConfig) geo.RateTable {
	return geo.RateTable{
		BaseFare:       cfg.BaseFare,
		PerKmDay:       cfg.PerKmDay,
		PerKmNight:     cfg.PerKmNight,
		AvgSpeedKmh:    cfg.AvgSpeedKmh,
		DayIncrement:   cfg.DayIncrement,
		NightIncrement: cfg.NightIncrement,
	}
}

// Locations returns every location ordered by id
func (c *Catalog) Locations() []models.Location {
	out := make([]models.Location, 0, len(c.locations))
	for _, loc := range c.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Location looks a location up by id
func (c *Catalog) Location(id int) (models.Location, bool) {
	loc, ok := c.locations[id]
	return loc, ok
}

// Drivers returns a copy of the roster
func (c *Catalog) Drivers() []models.Driver {
	out := make([]models.Driver, len(c.drivers))
	copy(out, c.drivers)
	return out
}

// RandomDriver picks a driver uniformly at random
func (c *Catalog) RandomDriver() models.Driver {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.drivers[c.intn(len(c.drivers))]
}

// Rates returns the fare table
func (c *Catalog) Rates() geo.RateTable {
	return c.rates
}

// NearbyTaxis scatters n idle taxis around the rider for the overview map
func (c *Catalog) NearbyTaxis(n int) []models.Coordinate {
	if n <= 0 {
		return []models.Coordinate{}
	}
	c.randMu.Lock()
	defer c.randMu.Unlock()
	out := make([]models.Coordinate, n)
	for i := range out {
		out[i] = models.Coordinate{
			Latitude:  UserLocation.Latitude + (c.float()-0.5)*nearbySpreadDegrees,
			Longitude: UserLocation.Longitude + (c.float()-0.5)*nearbySpreadDegrees,
		}
	}
	return out
}

func withAvatars(drivers []models.Driver) []models.Driver {
	out := make([]models.Driver, len(drivers))
	for i, d := range drivers {
		if d.Avatar == "" {
			d.Avatar = initials(d.Name)
		}
		out[i] = d
	}
	return out
}

func initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		b.WriteString(strings.ToUpper(part[:1]))
		if b.Len() == 2 {
			break
		}
	}
	return b.String()
}
