package store

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS flights (
    id            TEXT PRIMARY KEY,
    filename      TEXT NOT NULL,
    sha256        TEXT,
    aircraft_sn   TEXT NOT NULL DEFAULT '',
    battery_sn    TEXT NOT NULL DEFAULT '',
    location      TEXT NOT NULL DEFAULT '',
    firmware      TEXT NOT NULL DEFAULT '',
    flight_at_ms  INTEGER NOT NULL DEFAULT 0,
    total_records INTEGER NOT NULL,
    header        TEXT NOT NULL,
    imported_ms   INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_flights_sha256 ON flights (sha256);

CREATE TABLE IF NOT EXISTS records (
    flight_id   TEXT NOT NULL REFERENCES flights (id) ON DELETE CASCADE,
    kind        TEXT NOT NULL,
    file_offset INTEGER NOT NULL,
    seq         INTEGER NOT NULL,
    ts_ms       INTEGER,
    fields      TEXT NOT NULL,
    PRIMARY KEY (flight_id, file_offset)
);

CREATE INDEX IF NOT EXISTS idx_records_kind ON records (flight_id, kind, seq);
`

const insertFlightSQL = `
INSERT INTO flights (id, filename, sha256, aircraft_sn, battery_sn, location, firmware,
                     flight_at_ms, total_records, header, imported_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertRecordSQL = `
INSERT INTO records (flight_id, kind, file_offset, seq, ts_ms, fields)
VALUES (?, ?, ?, ?, ?, ?)`

const selectFlightColumns = `
SELECT id, filename, sha256, aircraft_sn, battery_sn, location, firmware,
       flight_at_ms, total_records, imported_ms
FROM flights`

const selectFlightsSQL = selectFlightColumns + ` ORDER BY flight_at_ms, id`

const selectFlightSQL = selectFlightColumns + ` WHERE id = ?`

const countRecordsSQL = `
SELECT COUNT(*) FROM records WHERE flight_id = ? AND (? = '' OR kind = ?)`

const selectRecordsSQL = `
SELECT kind, file_offset, seq, ts_ms, fields
FROM records
WHERE flight_id = ? AND (? = '' OR kind = ?)
ORDER BY file_offset`
