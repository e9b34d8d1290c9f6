package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
	"github.com/simdebrief/flight-telemetry/internal/telemetry"
)

// Store provides an interface for managing flight archive storage
// operations. It handles sessions, processed telemetry frames, and
// anomaly events in a thread-safe manner. All operations that write to
// the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new recording session and returns its
	// unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: Origin of the feed (e.g., "simfeed", "udp")
	//   - aircraft: Identifier of the simulated aircraft
	//   - config: Optional recorder configuration. Can be string, []byte,
	//     or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, source, aircraft string, config any) (sessionID int64, err error)

	// Session retrieves a specific recording session by its ID.
	Session(ctx context.Context, id int64) (session *FlightSession, err error)

	// Sessions returns all recording sessions stored in the database,
	// ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*FlightSession, err error)

	// StoreFrames saves a batch of processed telemetry frames for a
	// session. All parameter samples in the batch are stored in a single
	// atomic transaction.
	StoreFrames(ctx context.Context, sessionID int64, frames []telemetry.Frame) error

	// StoreAnomaly saves a single anomaly event for a session.
	StoreAnomaly(ctx context.Context, sessionID int64, ev telemetry.AnomalyEvent) error

	// ReadFrames creates a FrameReader iterating over the session's
	// stored frames in timestamp order. The returned reader must be
	// closed after use; each reader instance should only be used from a
	// single goroutine.
	ReadFrames(ctx context.Context, sessionID int64, opts ...ReaderOption) (*FrameReader, error)

	// ReadAnomalies returns all anomaly events recorded for a session,
	// ordered by timestamp.
	ReadAnomalies(ctx context.Context, sessionID int64) ([]telemetry.AnomalyEvent, error)

	// Close releases all database connections and resources. After Close
	// is called, the store instance cannot be reused. It is safe to call
	// Close multiple times.
	Close() error
}
