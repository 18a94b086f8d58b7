package flightlog

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS flights (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    source     TEXT     NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS records (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    flight_id       INTEGER NOT NULL REFERENCES flights (id),
    timestamp       INTEGER NOT NULL,
    roll            REAL    NOT NULL,
    pitch           REAL    NOT NULL,
    yaw             REAL    NOT NULL,
    lat             REAL    NOT NULL,
    lon             REAL    NOT NULL,
    altitude        REAL    NOT NULL,
    battery_voltage REAL    NOT NULL,
    battery_percent REAL    NOT NULL,
    temperature     REAL    NOT NULL,
    connected       INTEGER NOT NULL,
    signal_strength REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_flight_time ON records (flight_id, timestamp);
`

const (
	insertFlightSQL = `
INSERT INTO flights (start_time, source, config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	insertRecordSQL = `
INSERT INTO records (flight_id,
                     timestamp,
                     roll,
                     pitch,
                     yaw,
                     lat,
                     lon,
                     altitude,
                     battery_voltage,
                     battery_percent,
                     temperature,
                     connected,
                     signal_strength)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectFlightSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM flights
WHERE
    id = ?`

	selectFlightsSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM flights
ORDER BY start_time`

	selectRecordsSQL = `
SELECT
    timestamp,
    roll,
    pitch,
    yaw,
    lat,
    lon,
    altitude,
    battery_voltage,
    battery_percent,
    temperature,
    connected,
    signal_strength
FROM records
WHERE
    flight_id = ?
ORDER BY timestamp, id`
)
