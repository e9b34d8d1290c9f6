package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// ErrNoData indicates either that no frame data exists for the given
// parameters, or that all available data has been read from the reader.
var ErrNoData = fmt.Errorf("no data available")

// defaultReadBatchSize is the number of sample rows fetched per page.
const defaultReadBatchSize = 4096

// ReaderOption configures a FrameReader with specific filtering criteria.
type ReaderOption func(*FrameReader)

// WithStartTime sets the start time filter for the reader. Frames with
// timestamps before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *FrameReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the reader. Frames with
// timestamps after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *FrameReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters. This is a
// convenience function equivalent to applying both WithStartTime and
// WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *FrameReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithParameters restricts the reader to the named parameters. Frames
// containing none of them are skipped entirely.
func WithParameters(parameters ...string) ReaderOption {
	return func(r *FrameReader) {
		r.parameters = parameters
	}
}

// WithBatchSize sets the number of sample rows fetched per database
// round trip.
func WithBatchSize(n int) ReaderOption {
	return func(r *FrameReader) {
		r.batchSize = n
	}
}

// FrameReader provides an iterator-based interface for reading stored
// telemetry frames with optional time and parameter filtering. Sample
// rows are paged from the database and regrouped by timestamp into
// frames.
type FrameReader struct {
	db        *sql.DB
	sessionID int64
	session   *FlightSession
	batchSize int

	startTime  *time.Time // Optional start of time range filter
	endTime    *time.Time // Optional end of time range filter
	parameters []string   // Optional parameter filter

	buf       []sampleData
	current   telemetry.Frame
	lastTS    time.Time
	lastID    int64
	hasCursor bool
	exhausted bool
	err       error
}

func newFrameReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*FrameReader, error) {
	fr := &FrameReader{
		db:        db,
		sessionID: sessionID,
		batchSize: defaultReadBatchSize,
	}
	for _, opt := range opts {
		opt(fr)
	}
	if err := fr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return fr, nil
}

func (fr *FrameReader) init(ctx context.Context) (err error) {
	if fr.db == nil {
		return errors.New("database connection required")
	}
	if fr.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if fr.batchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	stmt, err := fr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess FlightSession
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, fr.sessionID).Scan(&sess.ID, &sess.StartTime, &sess.Source, &sess.Aircraft, &config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %d: %w", fr.sessionID, ErrNoData)
		}
		return fmt.Errorf("loading session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	fr.session = &sess
	return nil
}

// Session returns metadata about the recording session this reader is
// accessing.
func (fr *FrameReader) Session() *FlightSession {
	return fr.session
}

// Next advances the iterator and returns true if there is another frame
// to read, false when the iteration is complete or if an error occurred.
func (fr *FrameReader) Next(ctx context.Context) bool {
	if fr.err != nil {
		return false
	}

	for {
		if len(fr.buf) == 0 {
			if fr.exhausted {
				return false
			}
			if fr.err = fr.fetch(ctx); fr.err != nil {
				return false
			}
			continue
		}

		ts := fr.buf[0].Timestamp
		end := 1
		for end < len(fr.buf) && fr.buf[end].Timestamp.Equal(ts) {
			end++
		}

		// The group may continue into the next page. Only seal the frame
		// once a later timestamp (or the end of data) bounds it.
		if end == len(fr.buf) && !fr.exhausted {
			if fr.err = fr.fetch(ctx); fr.err != nil {
				return false
			}
			continue
		}

		frame := telemetry.NewFrame(ts)
		for _, row := range fr.buf[:end] {
			v, err := row.value()
			if err != nil {
				fr.err = fmt.Errorf("decoding sample %d: %w", row.ID, err)
				return false
			}
			frame.Set(row.Parameter, v)
		}
		fr.buf = fr.buf[end:]
		fr.current = frame
		return true
	}
}

// Current returns the current frame in the iteration. If called after
// Next() returns false, the behavior is undefined.
func (fr *FrameReader) Current() telemetry.Frame {
	return fr.current
}

// Error returns any error that occurred during iteration. If Next()
// returns false, Error() should be checked to distinguish between end of
// data and an error condition.
func (fr *FrameReader) Error() error {
	return fr.err
}

// Close releases any resources associated with the reader. After Close
// is called, the reader should not be used.
func (fr *FrameReader) Close() error {
	fr.buf = nil
	fr.exhausted = true
	return nil
}

// fetch pages the next batch of sample rows, keyset-paginated on
// (timestamp, id) so rows are never skipped or repeated between pages.
func (fr *FrameReader) fetch(ctx context.Context) (err error) {
	var sb strings.Builder
	args := make([]interface{}, 0, 8+len(fr.parameters))

	sb.WriteString(`
SELECT
    id,
    timestamp,
    parameter,
    kind,
    bool_value,
    int_value,
    real_value,
    text_value
FROM samples
WHERE
    session_id = ?`)
	args = append(args, fr.sessionID)

	if fr.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, fr.startTime.UTC())
	}
	if fr.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, fr.endTime.UTC())
	}
	if len(fr.parameters) > 0 {
		sb.WriteString(" AND parameter IN (?")
		sb.WriteString(strings.Repeat(", ?", len(fr.parameters)-1))
		sb.WriteString(")")
		for _, id := range fr.parameters {
			args = append(args, id)
		}
	}
	if fr.hasCursor {
		sb.WriteString(" AND (timestamp > ? OR (timestamp = ? AND id > ?))")
		args = append(args, fr.lastTS, fr.lastTS, fr.lastID)
	}

	sb.WriteString(" ORDER BY timestamp, id LIMIT ?")
	args = append(args, fr.batchSize)

	rows, err := fr.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}
	defer closeWithError(rows, &err)

	fetched := 0
	for rows.Next() {
		var data sampleData
		if err = rows.Scan(
			&data.ID,
			&data.Timestamp,
			&data.Parameter,
			&data.Kind,
			&data.BoolValue,
			&data.IntValue,
			&data.RealValue,
			&data.TextValue,
		); err != nil {
			return fmt.Errorf("scanning sample: %w", err)
		}

		fr.buf = append(fr.buf, data)
		fr.lastTS = data.Timestamp
		fr.lastID = data.ID
		fr.hasCursor = true
		fetched++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterating samples: %w", err)
	}

	if fetched < fr.batchSize {
		fr.exhausted = true
	}
	return nil
}
