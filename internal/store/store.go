// Package store persists parsed flight logs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/segmentio/ksuid"

	"example.com/autellog/internal/autelfr"
)

var (
	ErrFlightExists   = errors.New("flight already imported")
	ErrFlightNotFound = errors.New("flight not found")
	ErrStoreClosed    = errors.New("store closed")
)

// Flight is one imported log.
type Flight struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	SHA256       string    `json:"sha256,omitempty"`
	AircraftSN   string    `json:"aircraftSn"`
	BatterySN    string    `json:"batterySn"`
	Location     string    `json:"location"`
	Firmware     string    `json:"firmware"`
	FlightAt     time.Time `json:"flightAt"`
	TotalRecords int       `json:"totalRecords"`
	ImportedAt   time.Time `json:"importedAt"`
}

// StoredRecord is a record row. Fields holds the JSON-encoded field map.
type StoredRecord struct {
	Kind   autelfr.Kind    `json:"kind"`
	Offset int             `json:"offset"`
	Seq    int             `json:"seq"`
	TimeMs *uint64         `json:"timeMs,omitempty"`
	Fields json.RawMessage `json:"fields"`
}

// Store handles database operations. Connections are opened on first use.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)
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
	// The schema must exist before a read-only connection can see it.
	if _, err := s.getWriteDB(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})
	return s.readDB, s.readDBErr
}

// SaveFlight stores res and all of its records in one transaction and
// returns the new flight ID. A digest already present yields
// ErrFlightExists.
func (s *Store) SaveFlight(ctx context.Context, res *autelfr.ParseResult, digest string) (id string, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return "", fmt.Errorf("getting write connection: %w", err)
	}
	header, err := json.Marshal(res.Header)
	if err != nil {
		return "", fmt.Errorf("marshaling header: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	id = ksuid.New().String()
	var sha sql.NullString
	if digest != "" {
		sha = sql.NullString{String: digest, Valid: true}
	}
	flightAt, _ := res.Header.Uint("flight_at")
	_, err = tx.ExecContext(ctx, insertFlightSQL,
		id,
		res.Filename,
		sha,
		res.Header.Text("aircraft_sn"),
		res.Header.Text("battery_sn"),
		res.Header.Text("location_name"),
		res.Header.Text(autelfr.FieldFirmwareInfo),
		clampInt64(flightAt),
		res.TotalRecords,
		string(header),
		time.Now().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrFlightExists, digest)
		}
		return "", fmt.Errorf("inserting flight: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, e := range res.Tracks.Entries() {
		rec := res.Records[e.Kind][e.Index]
		fields, mErr := json.Marshal(rec)
		if mErr != nil {
			return "", fmt.Errorf("marshaling %s record %d: %w", e.Kind, e.Index, mErr)
		}
		var ts sql.NullInt64
		if v, ok := rec.Uint(autelfr.FieldCurrentTime); ok {
			ts = sql.NullInt64{Int64: clampInt64(v), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, id, string(e.Kind), e.Offset, e.Index, ts, string(fields)); err != nil {
			return "", fmt.Errorf("inserting %s record at %d: %w", e.Kind, e.Offset, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

func (s *Store) ListFlights(ctx context.Context) (flights []Flight, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	rows, err := db.QueryContext(ctx, selectFlightsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying flights: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		f, scanErr := scanFlight(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		flights = append(flights, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flights: %w", err)
	}
	return flights, nil
}

func (s *Store) Flight(ctx context.Context, id string) (Flight, error) {
	db, err := s.getReadDB()
	if err != nil {
		return Flight{}, fmt.Errorf("getting read connection: %w", err)
	}
	f, err := scanFlight(db.QueryRowContext(ctx, selectFlightSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Flight{}, fmt.Errorf("%w: %s", ErrFlightNotFound, id)
	}
	return f, err
}

// CountRecords counts the stored records of a flight. An empty kind counts
// all of them.
func (s *Store) CountRecords(ctx context.Context, flightID string, kind autelfr.Kind) (int, error) {
	db, err := s.getReadDB()
	if err != nil {
		return 0, fmt.Errorf("getting read connection: %w", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, countRecordsSQL, flightID, string(kind), string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Records returns the stored records of a flight in file order, filtered by
// kind when it is non-empty.
func (s *Store) Records(ctx context.Context, flightID string, kind autelfr.Kind) (records []StoredRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	rows, err := db.QueryContext(ctx, selectRecordsSQL, flightID, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			r      StoredRecord
			k      string
			ts     sql.NullInt64
			fields string
		)
		if err = rows.Scan(&k, &r.Offset, &r.Seq, &ts, &fields); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Kind = autelfr.Kind(k)
		if ts.Valid {
			v := uint64(ts.Int64)
			r.TimeMs = &v
		}
		r.Fields = json.RawMessage(fields)
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Close releases both connections. Any later call returns ErrStoreClosed.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var writeErr, readErr error
		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}
		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}
		s.closeErr = errors.Join(writeErr, readErr)
	})
	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlight(row rowScanner) (Flight, error) {
	var (
		f        Flight
		sha      sql.NullString
		flightAt int64
		imported int64
	)
	err := row.Scan(&f.ID, &f.Filename, &sha, &f.AircraftSN, &f.BatterySN, &f.Location,
		&f.Firmware, &flightAt, &f.TotalRecords, &imported)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return f, err
		}
		return f, fmt.Errorf("scanning flight: %w", err)
	}
	f.SHA256 = sha.String
	if flightAt > 0 {
		f.FlightAt = time.UnixMilli(flightAt).UTC()
	}
	f.ImportedAt = time.UnixMilli(imported).UTC()
	return f, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rErr := rb.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) && *err == nil {
		*err = rErr
	}
}
