package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/transport"
	"github.com/dpup/tripmap/internal/lib/trip"
)

// Config holds database configuration
type Config struct {
	Path string
}

// SQLiteStore is a Store backed by a sqlite database file
type SQLiteStore struct {
	db       *sql.DB
	geoUtils geo.GeoUtils
	broker   *broker
	now      func() time.Time

	// held across a mutation and the snapshot it publishes, so subscribers
	// never see an older snapshot after a newer one
	writeMu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the database and applies pending migrations
func Open(cfg Config) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Database initialized successfully: %s", cfg.Path)
	return &SQLiteStore{
		db:       db,
		geoUtils: geo.NewGeoUtils(),
		broker:   newBroker(),
		now:      time.Now,
	}, nil
}

// Close ends all subscriptions and closes the database
func (s *SQLiteStore) Close() error {
	s.broker.closeAll()
	return s.db.Close()
}

// Subscribe implements Store
func (s *SQLiteStore) Subscribe(ctx context.Context, owner string) (<-chan []trip.Trip, error) {
	// hold the write lock so no mutation slips between the initial list and
	// registration
	s.writeMu.Lock()
	snapshot, err := s.List(ctx, owner)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	id, ch := s.broker.subscribe(owner, snapshot)
	s.writeMu.Unlock()

	go func() {
		<-ctx.Done()
		s.broker.unsubscribe(owner, id)
	}()
	return ch, nil
}

const tripColumns = `id, owner, origin_region, origin_place, origin_lat, origin_lng,
	dest_region, dest_place, dest_lat, dest_lng, date_start, time_start, date_end, time_end,
	transport, cost_amount, cost_currency, carrier_number, seat_number, seat_class, notes,
	ground_route, target_region, created_at, updated_at`

// List implements Store
func (s *SQLiteStore) List(ctx context.Context, owner string) ([]trip.Trip, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tripColumns+" FROM trips WHERE owner = ? ORDER BY created_at DESC, rowid DESC", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	trips := []trip.Trip{}
	for rows.Next() {
		t, err := s.scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trips: %w", err)
	}
	return trips, nil
}

// Get implements Store
func (s *SQLiteStore) Get(ctx context.Context, owner, id string) (trip.Trip, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tripColumns+" FROM trips WHERE owner = ? AND id = ?", owner, id)
	t, err := s.scanTrip(row)
	if err == sql.ErrNoRows {
		return trip.Trip{}, ErrNotFound
	}
	return t, err
}

// Create implements Store
func (s *SQLiteStore) Create(ctx context.Context, owner string, t trip.Trip) (trip.Trip, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t = t.Clone()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Owner = owner
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	args := s.tripArgs(&t)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trips ("+tripColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		args...)
	if err != nil {
		return trip.Trip{}, fmt.Errorf("failed to insert trip: %w", err)
	}

	s.publishLocked(ctx, owner)
	return t, nil
}

// Update implements Store
func (s *SQLiteStore) Update(ctx context.Context, owner, id string, t trip.Trip) (trip.Trip, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.Get(ctx, owner, id)
	if err != nil {
		return trip.Trip{}, err
	}

	t = t.Clone()
	t.ID, t.Owner = id, owner
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now().UTC()

	args := s.tripArgs(&t)
	// drop id, owner and created_at; append the WHERE arguments
	setArgs := append(append([]interface{}{}, args[2:len(args)-2]...), args[len(args)-1], owner, id)
	_, err = s.db.ExecContext(ctx, `UPDATE trips SET
		origin_region = ?, origin_place = ?, origin_lat = ?, origin_lng = ?,
		dest_region = ?, dest_place = ?, dest_lat = ?, dest_lng = ?,
		date_start = ?, time_start = ?, date_end = ?, time_end = ?,
		transport = ?, cost_amount = ?, cost_currency = ?, carrier_number = ?, seat_number = ?, seat_class = ?, notes = ?,
		ground_route = ?, target_region = ?, updated_at = ?
		WHERE owner = ? AND id = ?`, setArgs...)
	if err != nil {
		return trip.Trip{}, fmt.Errorf("failed to update trip: %w", err)
	}

	s.publishLocked(ctx, owner)
	return t, nil
}

// Delete implements Store
func (s *SQLiteStore) Delete(ctx context.Context, owner, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM trips WHERE owner = ? AND id = ?", owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.publishLocked(ctx, owner)
	return nil
}

func (s *SQLiteStore) publishLocked(ctx context.Context, owner string) {
	if !s.broker.hasSubscribers(owner) {
		return
	}
	snapshot, err := s.List(context.WithoutCancel(ctx), owner)
	if err != nil {
		log.Printf("Failed to load snapshot for %s after change: %v", owner, err)
		return
	}
	s.broker.publish(owner, snapshot)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanTrip(row scanner) (trip.Trip, error) {
	var (
		t                                      trip.Trip
		originLat, originLng, destLat, destLng sql.NullFloat64
		costAmount                             sql.NullFloat64
		costCurrency, groundRoute              sql.NullString
		transportKind, seatClass               string
		createdAt, updatedAt                   int64
	)
	err := row.Scan(&t.ID, &t.Owner, &t.OriginRegion, &t.OriginPlace, &originLat, &originLng,
		&t.DestRegion, &t.DestPlace, &destLat, &destLng, &t.DateStart, &t.TimeStart, &t.DateEnd, &t.TimeEnd,
		&transportKind, &costAmount, &costCurrency, &t.CarrierNumber, &t.SeatNumber, &seatClass, &t.Notes,
		&groundRoute, &t.TargetRegion, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return trip.Trip{}, err
	}
	if err != nil {
		return trip.Trip{}, fmt.Errorf("failed to scan trip: %w", err)
	}

	t.OriginLat, t.OriginLng = nullFloat(originLat), nullFloat(originLng)
	t.DestLat, t.DestLng = nullFloat(destLat), nullFloat(destLng)
	t.Transport = transport.Kind(transportKind)
	t.SeatClass = transport.SeatClass(seatClass)
	if costAmount.Valid {
		t.Cost = &trip.Money{Amount: costAmount.Float64, Currency: costCurrency.String}
	}
	if groundRoute.Valid && groundRoute.String != "" {
		points, err := s.geoUtils.DecodePolyline(groundRoute.String)
		if err != nil {
			// a corrupt route degrades to the straight-line fallback
			log.Printf("Failed to decode ground route for trip %s: %v", t.ID, err)
		} else {
			t.GroundRoute = points
		}
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return t, nil
}

// tripArgs returns column values in tripColumns order
func (s *SQLiteStore) tripArgs(t *trip.Trip) []interface{} {
	var costAmount, costCurrency, groundRoute interface{}
	if t.Cost != nil {
		costAmount, costCurrency = t.Cost.Amount, t.Cost.Currency
	}
	if len(t.GroundRoute) > 0 {
		groundRoute = s.geoUtils.EncodePolyline(t.GroundRoute)
	}
	return []interface{}{
		t.ID, t.Owner, t.OriginRegion, t.OriginPlace, floatArg(t.OriginLat), floatArg(t.OriginLng),
		t.DestRegion, t.DestPlace, floatArg(t.DestLat), floatArg(t.DestLng),
		t.DateStart, t.TimeStart, t.DateEnd, t.TimeEnd,
		string(t.Transport), costAmount, costCurrency, t.CarrierNumber, t.SeatNumber, string(t.SeatClass), t.Notes,
		groundRoute, t.TargetRegion, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
	}
}

func floatArg(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
