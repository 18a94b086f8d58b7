// Package flightlog persists received telemetry into a per-run sqlite
// file, one flight per ingest session, so recorded data can be charted or
// replayed offline.
package flightlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

// Flight is one recorded ingest session.
type Flight struct {
	ID        int64
	StartTime time.Time
	Source    string // Endpoint the records came from
	Config    *string
}

// Store handles flight log database operations. Writes go through a WAL
// connection, reads through a separate read-only connection; both are
// opened lazily and at most once.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the database at dbPath. The schema is
// initialized on first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", s.dbPath))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateFlight starts a new recorded flight and returns its ID. Config can
// be a string, []byte, or any JSON-serializable value.
func (s *Store) CreateFlight(ctx context.Context, source string, config any) (flightID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertFlightSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, source, configData)
	if err != nil {
		err = fmt.Errorf("inserting flight: %w", err)
		return
	}

	flightID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting flight ID: %w", err)
	}
	return
}

// Append stores one record under the given flight.
func (s *Store) Append(ctx context.Context, flightID int64, rec telemetry.Record) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx,
		flightID,
		rec.Timestamp,
		rec.Roll,
		rec.Pitch,
		rec.Yaw,
		rec.Latitude,
		rec.Longitude,
		rec.Altitude,
		rec.BatteryVoltage,
		rec.BatteryPercent,
		rec.Temperature,
		rec.Connected,
		rec.SignalStrength,
	); err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// Flight retrieves one flight by ID.
func (s *Store) Flight(ctx context.Context, id int64) (flight *Flight, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectFlightSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var f Flight
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&f.ID, &f.StartTime, &f.Source, &config); err != nil {
		err = fmt.Errorf("scanning flight: %w", err)
		return
	}
	if config.Valid {
		f.Config = &config.String
	}

	return &f, nil
}

// Flights returns all recorded flights ordered by start time.
func (s *Store) Flights(ctx context.Context) (flights []*Flight, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectFlightsSQL)
	if err != nil {
		err = fmt.Errorf("querying flights: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var f Flight
		var config sql.NullString
		if err = rows.Scan(&f.ID, &f.StartTime, &f.Source, &config); err != nil {
			err = fmt.Errorf("scanning flight: %w", err)
			return
		}
		if config.Valid {
			f.Config = &config.String
		}
		flights = append(flights, &f)
	}
	if err = rows.Err(); err != nil {
		return
	}
	return
}

// Records returns every record of a flight in timestamp order.
func (s *Store) Records(ctx context.Context, flightID int64) (records []telemetry.Record, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRecordsSQL, flightID)
	if err != nil {
		err = fmt.Errorf("querying records: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec telemetry.Record
		if err = rows.Scan(
			&rec.Timestamp,
			&rec.Roll,
			&rec.Pitch,
			&rec.Yaw,
			&rec.Latitude,
			&rec.Longitude,
			&rec.Altitude,
			&rec.BatteryVoltage,
			&rec.BatteryPercent,
			&rec.Temperature,
			&rec.Connected,
			&rec.SignalStrength,
		); err != nil {
			err = fmt.Errorf("scanning record: %w", err)
			return
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return
	}
	return
}

// Recorder returns an append handle bound to one flight, suitable for the
// ingest loop.
func (s *Store) Recorder(flightID int64) *Recorder {
	return &Recorder{store: s, flightID: flightID}
}

// Close releases both database connections. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.writeDB != nil {
			if err := s.writeDB.Close(); err != nil {
				errs = append(errs, err)
			}
			s.writeDB = nil
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil {
				errs = append(errs, err)
			}
			s.readDB = nil
		}

		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}

// Recorder appends records to a single flight.
type Recorder struct {
	store    *Store
	flightID int64
}

// Append implements the ingest loop's Recorder contract.
func (r *Recorder) Append(ctx context.Context, rec telemetry.Record) error {
	return r.store.Append(ctx, r.flightID, rec)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
