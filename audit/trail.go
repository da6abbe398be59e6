package audit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/utils"
	_ "modernc.org/sqlite"
)

const (
	ErrNilConfig           = utils.Error("config is nil")
	ErrEmptyDatabase       = utils.Error("database path is empty")
	ErrInvalidQueueSize    = utils.Error("queue size must be positive")
	ErrInvalidBatchSize    = utils.Error("batch size must be positive")
	ErrInvalidFlushInterval = utils.Error("flush interval must be positive")
	ErrTrailClosed         = utils.Error("audit trail is closed")
)

const auditTable = "audit_events"

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	client_id TEXT NOT NULL,
	remote_addr TEXT NOT NULL,
	detail TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_client ON audit_events(client_id, created_at);
`

type Config struct {
	Database        string `json:"database" default:"roadwatch_audit.db"`
	QueueSize       int    `json:"queueSize" default:"256"`
	BatchSize       int    `json:"batchSize" default:"64"`
	FlushIntervalMs int    `json:"flushIntervalMs" default:"1000"`
}

func NewConfig() *Config {
	return &Config{
		Database:        "roadwatch_audit.db",
		QueueSize:       256,
		BatchSize:       64,
		FlushIntervalMs: 1000,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Database == "" {
		return ErrEmptyDatabase
	}
	if c.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.FlushIntervalMs <= 0 {
		return ErrInvalidFlushInterval
	}
	return nil
}

// Trail persists audit events to a local sqlite database. Record never blocks
// the caller: events are queued and written in batches by a background
// goroutine, and dropped (with a counter) when the queue is full.
type Trail struct {
	db        *sqlx.DB
	dialect   goqu.DialectWrapper
	config    *Config
	logger    *log.Logger
	queue     chan Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewTrail opens (or creates) the audit database and starts the flush loop
func NewTrail(config *Config, logger *log.Logger) (*Trail, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", config.Database)
	if err != nil {
		return nil, err
	}
	// modernc sqlite is not safe for concurrent writers on one file
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newTrail(db, config, logger), nil
}

// NewTrailWithDB wraps an existing database handle; the caller owns schema
// creation. Used by tests.
func NewTrailWithDB(db *sqlx.DB, config *Config, logger *log.Logger) (*Trail, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newTrail(db, config, logger), nil
}

func newTrail(db *sqlx.DB, config *Config, logger *log.Logger) *Trail {
	if logger == nil {
		logger = log.New("audit")
	}
	t := &Trail{
		db:      db,
		dialect: goqu.Dialect("sqlite3"),
		config:  config,
		logger:  logger,
		queue:   make(chan Event, config.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.flushLoop()
	return t
}

// Record queues an event for persistence; never blocks
func (t *Trail) Record(ev Event) {
	select {
	case t.queue <- ev:
	default:
		t.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full
func (t *Trail) Dropped() uint64 {
	return t.dropped.Load()
}

func (t *Trail) flushLoop() {
	defer close(t.done)

	ticker := time.NewTicker(time.Duration(t.config.FlushIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]Event, 0, t.config.BatchSize)
	for {
		select {
		case ev := <-t.queue:
			batch = append(batch, ev)
			if len(batch) >= t.config.BatchSize {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-t.stop:
			// drain whatever is still queued
			for {
				select {
				case ev := <-t.queue:
					batch = append(batch, ev)
				default:
					if len(batch) > 0 {
						t.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (t *Trail) flush(batch []Event) {
	rows := make([]interface{}, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, goqu.Record{
			"id":          ev.ID,
			"event_type":  string(ev.Type),
			"client_id":   ev.ClientID,
			"remote_addr": ev.RemoteAddr,
			"detail":      ev.Detail,
			"created_at":  ev.CreatedAt,
		})
	}

	query, args, err := t.dialect.Insert(auditTable).Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		t.logger.Error(err, "failed to build audit insert", nil)
		return
	}
	if _, err = t.db.Exec(query, args...); err != nil {
		t.logger.Error(err, "failed to flush audit batch", map[string]interface{}{
			"batchSize": len(batch),
		})
	}
}

// Recent returns the newest events for a client identity, most recent first
func (t *Trail) Recent(clientID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := t.dialect.From(auditTable).
		Where(goqu.C("client_id").Eq(clientID)).
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var events []Event
	if err = t.db.Select(&events, query, args...); err != nil {
		return nil, err
	}
	return events, nil
}

// Close stops the flush loop, flushes pending events and closes the database
func (t *Trail) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		<-t.done
		err = t.db.Close()
	})
	return err
}
