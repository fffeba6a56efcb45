// internal/recorder/recorder.go
package recorder

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus-monitor/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	ts    INTEGER NOT NULL,
	key   TEXT    NOT NULL,
	value REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_key_ts ON samples (key, ts);
CREATE TABLE IF NOT EXISTS events (
	ts      INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	message TEXT    NOT NULL
);
`

const eventBuffer = 64

// Source is what the recorder samples.
type Source interface {
	Registers() []model.Register
	Variables() []model.Variable
}

// Sample is one stored value.
type Sample struct {
	At    time.Time
	Key   string
	Value float64
}

// Event is one stored engine notification.
type Event struct {
	At      time.Time
	Kind    string // error, connection_lost
	Message string
}

// Recorder persists register and variable values to SQLite. It also
// receives engine notifications and stores them as events.
type Recorder struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time

	events chan Event
}

// Open opens or creates the database at path.
func Open(path string, log *zap.Logger) (*Recorder, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "recorder: open %s", path)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "recorder: ping %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "recorder: create schema")
	}

	return &Recorder{
		db:     db,
		log:    log.With(zap.String("component", "recorder")),
		now:    time.Now,
		events: make(chan Event, eventBuffer),
	}, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record stores every register and variable that currently holds a
// good value, in one transaction.
func (r *Recorder) Record(at time.Time, regs []model.Register, vars []model.Variable) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "recorder: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("INSERT INTO samples (ts, key, value) VALUES (?, ?, ?)")
	if err != nil {
		return 0, errors.Wrap(err, "recorder: prepare")
	}
	defer stmt.Close()

	ts := at.UnixMilli()
	n := 0
	for i := range regs {
		reg := &regs[i]
		if !reg.HasValue || reg.Err != "" {
			continue
		}
		if _, err := stmt.Exec(ts, reg.Designator(), reg.Value); err != nil {
			return 0, errors.Wrapf(err, "recorder: insert %s", reg.Designator())
		}
		n++
	}
	for _, v := range vars {
		if !v.HasValue {
			continue
		}
		if _, err := stmt.Exec(ts, v.Name, v.Value); err != nil {
			return 0, errors.Wrapf(err, "recorder: insert %s", v.Name)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "recorder: commit")
	}
	return n, nil
}

// Query returns samples of key in [from, to], oldest first.
func (r *Recorder) Query(key string, from, to time.Time) ([]Sample, error) {
	rows, err := r.db.Query(
		"SELECT ts, value FROM samples WHERE key = ? AND ts >= ? AND ts <= ? ORDER BY ts",
		key, from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "recorder: query")
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var ts int64
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, errors.Wrap(err, "recorder: scan")
		}
		out = append(out, Sample{At: time.UnixMilli(ts), Key: key, Value: v})
	}
	return out, rows.Err()
}

// Prune deletes samples older than before.
func (r *Recorder) Prune(before time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM samples WHERE ts < ?", before.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "recorder: prune")
	}
	return res.RowsAffected()
}

// ---- events ----

func (r *Recorder) insertEvent(e Event) error {
	_, err := r.db.Exec(
		"INSERT INTO events (ts, kind, message) VALUES (?, ?, ?)",
		e.At.UnixMilli(), e.Kind, e.Message,
	)
	return errors.Wrap(err, "recorder: insert event")
}

// Events returns the newest limit events, newest first.
func (r *Recorder) Events(limit int) ([]Event, error) {
	rows, err := r.db.Query("SELECT ts, kind, message FROM events ORDER BY ts DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "recorder: query events")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ts int64
		var e Event
		if err := rows.Scan(&ts, &e.Kind, &e.Message); err != nil {
			return nil, errors.Wrap(err, "recorder: scan event")
		}
		e.At = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DataUpdated is a no-op; samples are taken on the recorder's own period.
func (r *Recorder) DataUpdated() {}

func (r *Recorder) Error(msg string) {
	r.enqueue(Event{At: r.now(), Kind: "error", Message: msg})
}

func (r *Recorder) ConnectionLost() {
	r.enqueue(Event{At: r.now(), Kind: "connection_lost", Message: "connection lost"})
}

// enqueue never blocks the notifying goroutine.
func (r *Recorder) enqueue(e Event) {
	select {
	case r.events <- e:
	default:
		r.log.Warn("event dropped", zap.String("kind", e.Kind))
	}
}

// ---- loop ----

// Run samples src every interval and drains queued events until ctx is
// cancelled. With retention > 0 older samples are pruned once per hour.
func (r *Recorder) Run(ctx context.Context, src Source, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastPrune time.Time

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return

		case e := <-r.events:
			if err := r.insertEvent(e); err != nil {
				r.log.Warn("event not recorded", zap.Error(err))
			}

		case <-ticker.C:
			now := r.now()
			if _, err := r.Record(now, src.Registers(), src.Variables()); err != nil {
				r.log.Warn("samples not recorded", zap.Error(err))
			}
			if retention > 0 && now.Sub(lastPrune) >= time.Hour {
				lastPrune = now
				n, err := r.Prune(now.Add(-retention))
				if err != nil {
					r.log.Warn("prune failed", zap.Error(err))
				} else if n > 0 {
					r.log.Debug("pruned samples", zap.Int64("rows", n))
				}
			}
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.events:
			if err := r.insertEvent(e); err != nil {
				r.log.Warn("event not recorded", zap.Error(err))
			}
		default:
			return
		}
	}
}
