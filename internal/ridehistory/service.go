package ridehistory

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	mrand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/richxcame/petit-taxi/pkg/i18n"
	"github.com/richxcame/petit-taxi/pkg/logger"
	"github.com/richxcame/petit-taxi/pkg/models"
	"github.com/richxcame/petit-taxi/pkg/resilience"
	"go.uber.org/zap"
)

// DefaultKey is the backend key holding the serialized history
const DefaultKey = "rideHistory"

const currency = "MAD"

var (
	ErrRideNotFound  = errors.New("ride not found in history")
	ErrDuplicateRide = errors.New("ride already in history")
	ErrNotCompleted  = errors.New("only completed rides can be recorded")
)

// Service is the newest-first log of completed rides, mirrored to a Backend
// as a single JSON blob
type Service struct {
	backend Backend
	key     string
	now     func() time.Time
	retry   resilience.RetryConfig

	mu      sync.Mutex
	rides   []models.Ride
	version uint64

	// writeMu orders backend writes; flushed is the newest version stored
	writeMu sync.Mutex
	flushed uint64
}

// pendingWrite is a blob encoded under mu and written after it is released
type pendingWrite struct {
	version uint64
	data    []byte
	clear   bool
}

// Option configures a Service
type Option func(*Service)

// WithRetry replaces the retry policy of blob writes
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// DefaultRetryConfig retries a failed blob write twice within a few hundred milliseconds
func DefaultRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// NewService creates a history service writing under key
func NewService(backend Backend, key string, opts ...Option) *Service {
	if key == "" {
		key = DefaultKey
	}
	s := &Service{
		backend: backend,
		key:     key,
		now:     time.Now,
		retry:   DefaultRetryConfig(),
		rides:   []models.Ride{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted one. A blob that
// cannot be decoded is logged and deleted, leaving an empty history.
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rides = []models.Ride{}
	defer func() { storedRides.Set(float64(len(s.rides))) }()

	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrBlobNotFound) {
		return
	}
	if err != nil {
		persistFailures.WithLabelValues("load").Inc()
		logger.WithContext(ctx).Error("failed to load ride history", zap.String("key", s.key), zap.Error(err))
		return
	}

	var rides []models.Ride
	if err := json.Unmarshal(data, &rides); err != nil {
		logger.WithContext(ctx).Warn("discarding corrupted ride history", zap.String("key", s.key), zap.Error(err))
		if delErr := s.backend.Delete(ctx, s.key); delErr != nil {
			persistFailures.WithLabelValues("delete").Inc()
			logger.WithContext(ctx).Error("failed to delete corrupted ride history", zap.Error(delErr))
		}
		return
	}

	s.rides = sanitize(rides)
	if dropped := len(rides) - len(s.rides); dropped > 0 {
		logger.WithContext(ctx).Warn("dropped invalid ride history entries",
			zap.String("key", s.key),
			zap.Int("dropped", dropped),
		)
	}

	logger.WithContext(ctx).Info("ride history loaded", zap.Int("rides", len(s.rides)))
}

// sanitize keeps completed rides only, and the first (newest) entry of each id
func sanitize(rides []models.Ride) []models.Ride {
	out := make([]models.Ride, 0, len(rides))
	seen := make(map[int64]bool, len(rides))
	for _, r := range rides {
		if r.Status != models.RideStatusCompleted || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// Append records a completed ride at the head of the list and persists
func (s *Service) Append(ctx context.Context, ride models.Ride) error {
	if ride.Status != models.RideStatusCompleted {
		return fmt.Errorf("append ride %d: %w", ride.ID, ErrNotCompleted)
	}

	s.mu.Lock()
	if s.indexOf(ride.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("append ride %d: %w", ride.ID, ErrDuplicateRide)
	}
	s.rides = append([]models.Ride{ride}, s.rides...)
	w := s.encodeLocked(ctx)
	s.mu.Unlock()

	s.flush(ctx, w)
	return nil
}

// Remove deletes the ride with id. It reports whether anything was removed.
func (s *Service) Remove(ctx context.Context, id int64) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	rides := make([]models.Ride, 0, len(s.rides)-1)
	rides = append(rides, s.rides[:i]...)
	rides = append(rides, s.rides[i+1:]...)
	s.rides = rides
	w := s.encodeLocked(ctx)
	s.mu.Unlock()

	s.flush(ctx, w)
	return true
}

// Clear empties the history and deletes the persisted key
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.rides = []models.Ride{}
	storedRides.Set(0)
	s.version++
	w := &pendingWrite{version: s.version, clear: true}
	s.mu.Unlock()

	s.flush(ctx, w)
}

// List returns a newest-first copy of the rides matching filters
func (s *Service) List(filters *HistoryFilters) []models.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Ride, 0, len(s.rides))
	for _, r := range s.rides {
		if filters.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the ride with id
func (s *Service) Get(id int64) (models.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Ride{}, fmt.Errorf("ride %d: %w", id, ErrRideNotFound)
	}
	return s.rides[i], nil
}

// Stats aggregates the rides completed within period
func (s *Service) Stats(period string) RideStats {
	var rides []models.Ride
	switch period {
	case "today", "this_week", "this_month", "this_year":
		from, to := periodToTimeRange(period, s.now())
		rides = s.List(&HistoryFilters{FromDate: &from, ToDate: &to})
	default:
		period = "all_time"
		rides = s.List(nil)
	}

	stats := RideStats{Period: period}
	pickups := map[string]int{}
	dropoffs := map[string]int{}
	for _, r := range rides {
		stats.TotalRides++
		stats.TotalSpent += r.FinalPrice
		stats.TotalDistanceKm += r.DistanceKm
		stats.TotalDurationSec += r.DurationSeconds
		if r.IsDayMode {
			stats.DayRides++
		} else {
			stats.NightRides++
		}
		pickups[r.Pickup.Name]++
		dropoffs[r.Destination.Name]++
	}

	if stats.TotalRides > 0 {
		stats.AverageFare = stats.TotalSpent / float64(stats.TotalRides)
		stats.AverageDistance = stats.TotalDistanceKm / float64(stats.TotalRides)
		stats.FavoritePickup = favorite(pickups)
		stats.FavoriteDropoff = favorite(dropoffs)
	}
	return stats
}

// FrequentRoutes returns the most taken pickup/destination pairs
func (s *Service) FrequentRoutes(limit int) []FrequentRoute {
	rides := s.List(nil)

	type agg struct {
		route FrequentRoute
		spent float64
		order int
	}
	byRoute := map[string]*agg{}
	for i, r := range rides {
		k := r.Pickup.Name + "\x00" + r.Destination.Name
		a, ok := byRoute[k]
		if !ok {
			// newest first, so the first sighting is the latest ride
			a = &agg{
				route: FrequentRoute{Pickup: r.Pickup.Name, Destination: r.Destination.Name, LastRideAt: r.CompletedDate},
				order: i,
			}
			byRoute[k] = a
		}
		a.route.RideCount++
		a.spent += r.FinalPrice
	}

	aggs := make([]*agg, 0, len(byRoute))
	for _, a := range byRoute {
		a.route.AverageFare = a.spent / float64(a.route.RideCount)
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].route.RideCount != aggs[j].route.RideCount {
			return aggs[i].route.RideCount > aggs[j].route.RideCount
		}
		return aggs[i].order < aggs[j].order
	})

	routes := make([]FrequentRoute, 0, len(aggs))
	for _, a := range aggs {
		if limit > 0 && len(routes) == limit {
			break
		}
		routes = append(routes, a.route)
	}
	return routes
}

// GetReceipt builds a receipt for a ride in history, labelled in lang
func (s *Service) GetReceipt(id int64, lang string) (*Receipt, error) {
	ride, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	lang = i18n.Normalize(lang)
	rate := "day"
	if !ride.IsDayMode {
		rate = "night"
	}

	receipt := &Receipt{
		ReceiptID:    generateReceiptID(),
		RideID:       ride.ID,
		IssuedAt:     s.now(),
		Pickup:       ride.Pickup.Name,
		Destination:  ride.Destination.Name,
		DistanceKm:   ride.DistanceKm,
		DurationSec:  ride.DurationSeconds,
		TripDate:     ride.CompletedDate,
		TripEndTime:  ride.CompletedTime,
		Rate:         rate,
		RateLabel:    i18n.Translate("receipt.rate."+rate, lang),
		RouteLabel:   i18n.Translate("receipt.route", lang, ride.Pickup.Name, ride.Destination.Name),
		DriverLabel:  i18n.Translate("receipt.driver", lang, ride.Driver.Name, ride.Driver.PlateNumber),
		Total:        ride.FinalPrice,
		TotalDisplay: i18n.FormatAmount(ride.FinalPrice, currency),
		Currency:     currency,
		Language:     lang,
		DriverName:   ride.Driver.Name,
		PlateNumber:  ride.Driver.PlateNumber,
	}

	receipt.FareBreakdown = []FareLineItem{
		lineItem("receipt.line.estimated", lang, ride.EstimatedPrice, "charge"),
	}
	if adj := ride.FinalPrice - ride.EstimatedPrice; adj != 0 {
		receipt.FareBreakdown = append(receipt.FareBreakdown, lineItem("receipt.line.adjustment", lang, adj, "adjustment"))
	}

	return receipt, nil
}

func lineItem(key, lang string, amount float64, kind string) FareLineItem {
	return FareLineItem{
		Label:   i18n.Translate(key, lang),
		Amount:  amount,
		Display: i18n.FormatAmount(amount, currency),
		Type:    kind,
	}
}

// encodeLocked snapshots the current list as the next blob version.
// Caller holds mu.
func (s *Service) encodeLocked(ctx context.Context) *pendingWrite {
	storedRides.Set(float64(len(s.rides)))
	s.version++

	data, err := json.Marshal(s.rides)
	if err != nil {
		persistFailures.WithLabelValues("encode").Inc()
		logger.WithContext(ctx).Error("failed to encode ride history", zap.Error(err))
		return nil
	}
	return &pendingWrite{version: s.version, data: data}
}

// flush stores w unless a newer version is already stored. Failures are
// logged and counted; the in-memory list stays authoritative. Must not be
// called with mu held.
func (s *Service) flush(ctx context.Context, w *pendingWrite) {
	if w == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if w.version <= s.flushed {
		return
	}
	s.flushed = w.version

	if w.clear {
		if err := s.backend.Delete(ctx, s.key); err != nil {
			persistFailures.WithLabelValues("delete").Inc()
			logger.WithContext(ctx).Error("failed to clear ride history", zap.String("key", s.key), zap.Error(err))
		}
		return
	}

	_, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) (interface{}, error) {
		return nil, s.backend.Set(ctx, s.key, w.data)
	})
	if err != nil {
		persistFailures.WithLabelValues("save").Inc()
		logger.WithContext(ctx).Error("failed to save ride history", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Service) indexOf(id int64) int {
	for i, r := range s.rides {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func favorite(counts map[string]int) *string {
	best, bestCount := "", 0
	for name, n := range counts {
		if n > bestCount || (n == bestCount && name < best) {
			best, bestCount = name, n
		}
	}
	if bestCount == 0 {
		return nil
	}
	return &best
}

func periodToTimeRange(period string, now time.Time) (time.Time, time.Time) {
	to := now.Add(time.Second)

	switch period {
	case "today":
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return from, to
	case "this_week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		from := time.Date(now.Year(), now.Month(), now.Day()-weekday+1, 0, 0, 0, 0, now.Location())
		return from, to
	case "this_month":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from, to
	case "this_year":
		from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return from, to
	default: // all_time
		return time.Time{}, to
	}
}

const receiptChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReceiptID() string {
	return receiptID(rand.Reader)
}

// receiptID draws from r, falling back to math/rand when r fails
func receiptID(r io.Reader) string {
	id := make([]byte, 12)
	for i := range id {
		id[i] = receiptChars[receiptIndex(r)]
	}
	return fmt.Sprintf("RCP-%s-%s", string(id[:6]), string(id[6:]))
}

func receiptIndex(r io.Reader) int {
	n, err := rand.Int(r, big.NewInt(int64(len(receiptChars))))
	if err != nil {
		return mrand.IntN(len(receiptChars))
	}
	return int(n.Int64())
}
