package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source,
                      aircraft,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    aircraft,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    aircraft,
    config
FROM sessions
ORDER BY start_time`

	insertAnomalySQL = `
INSERT INTO anomalies (session_id,
                       timestamp,
                       parameter,
                       value,
                       score,
                       severity)
VALUES (?, ?, ?, ?, ?, ?)`

	insertSampleSQL = `
INSERT INTO samples (session_id,
                     timestamp,
                     parameter,
                     kind,
                     bool_value,
                     int_value,
                     real_value,
                     text_value)
VALUES `

	selectAnomaliesSQL = `
SELECT
    timestamp,
    parameter,
    value,
    score,
    severity
FROM anomalies
WHERE
    session_id = ?
ORDER BY timestamp, id`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_time ON samples (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_samples_parameter ON samples (session_id, parameter);
CREATE INDEX IF NOT EXISTS idx_anomalies_session_time ON anomalies (session_id, timestamp);`
)

//go:embed schema.sql
var initSchemaSQL string
