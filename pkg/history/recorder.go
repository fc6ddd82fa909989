// Package history records every cache write to a sqlite database
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"avaneesh/dnp3-cache/pkg/cache"
	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/types"
)

var ErrClosed = errors.New("recorder is closed")

const schema = `
CREATE TABLE IF NOT EXISTS point_values (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	grp         INTEGER NOT NULL,
	variation   INTEGER NOT NULL,
	idx         INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	value       TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS point_values_point ON point_values (grp, variation, idx, id);
`

// Record is one recorded point value
type Record struct {
	PointType  types.PointTypeID `json:"-"`
	Index      uint16            `json:"index"`
	Value      types.PointValue  `json:"value"`
	Source     string            `json:"source"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Recorder is a cache.Observer that appends updates to sqlite from a
// single worker goroutine. Updates arriving while the queue is full are
// dropped and counted.
type Recorder struct {
	db     *sql.DB
	logger logger.Logger

	q      chan cache.Update
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	done   bool

	written atomic.Uint64
	dropped atomic.Uint64
}

var _ cache.Observer = (*Recorder)(nil)

// Open opens or creates the database at path. ":memory:" keeps it in memory.
func Open(path string, queueSize int, log logger.Logger) (*Recorder, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// Each connection to ":memory:" is its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	r := &Recorder{
		db:     db,
		logger: log,
		q:      make(chan cache.Update, queueSize),
		closed: make(chan struct{}),
	}

	go func() {
		defer close(r.closed)
		for u := range r.q {
			if err := r.write(u); err != nil {
				r.logger.Error("History: failed to record %v: %v", u.PointType, err)
			}
		}
	}()

	r.logger.Info("History recording to %s", path)
	return r, nil
}

// OnUpdate queues u for recording without blocking
func (r *Recorder) OnUpdate(u cache.Update) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.done {
		return
	}

	select {
	case r.q <- u:
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("History: queue full, dropped %d updates", r.dropped.Load())
		}
	}
}

// Written returns the number of rows written
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Dropped returns the number of updates dropped on a full queue
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) write(u cache.Update) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO point_values (grp, variation, idx, kind, value, source, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	n := 0
	for _, index := range u.Values.Indices() {
		v := u.Values[index]
		if v.IsAbsent() {
			continue
		}
		_, err := stmt.Exec(u.PointType.Group(), u.PointType.Variation(), index,
			v.Kind().String(), encodeValue(v), u.Source.String(), u.At.UnixNano())
		if err != nil {
			return err
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.written.Add(uint64(n))
	return nil
}

// Latest returns the last recorded value of every index of id
func (r *Recorder) Latest(ctx context.Context, id types.PointTypeID) (types.IndexValueMap, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT idx, kind, value FROM point_values p
		WHERE grp = ? AND variation = ? AND id = (
			SELECT MAX(id) FROM point_values
			WHERE grp = p.grp AND variation = p.variation AND idx = p.idx
		)`, id.Group, id.Variation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(types.IndexValueMap)
	for rows.Next() {
		var index uint16
		var kind, raw string
		if err := rows.Scan(&index, &kind, &raw); err != nil {
			return nil, err
		}
		v, err := decodeValue(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%v[%d]: %w", id, index, err)
		}
		out[index] = v
	}
	return out, rows.Err()
}

// History returns up to limit records of one point, newest first
func (r *Recorder) History(ctx context.Context, id types.PointTypeID, index uint16, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, value, source, recorded_at FROM point_values
		WHERE grp = ? AND variation = ? AND idx = ?
		ORDER BY id DESC LIMIT ?`, id.Group, id.Variation, index, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var kind, raw, source string
		var at int64
		if err := rows.Scan(&kind, &raw, &source, &at); err != nil {
			return nil, err
		}
		v, err := decodeValue(kind, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{
			PointType:  id,
			Index:      index,
			Value:      v,
			Source:     source,
			RecordedAt: time.Unix(0, at),
		})
	}
	return out, rows.Err()
}

// Close drains queued updates and closes the database
func (r *Recorder) Close() error {
	err := ErrClosed
	r.once.Do(func() {
		r.mu.Lock()
		r.done = true
		close(r.q)
		r.mu.Unlock()

		<-r.closed
		err = r.db.Close()
		r.logger.Info("History closed: %d rows written, %d updates dropped", r.written.Load(), r.dropped.Load())
	})
	return err
}

func encodeValue(v types.PointValue) string {
	switch v.Kind() {
	case types.ValueFloat:
		f, _ := v.Float()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case types.ValueInt:
		i, _ := v.Int()
		return strconv.FormatInt(i, 10)
	case types.ValueBool:
		b, _ := v.Bool()
		return strconv.FormatBool(b)
	default:
		return ""
	}
}

func decodeValue(kind, raw string) (types.PointValue, error) {
	switch kind {
	case types.ValueFloat.String():
		f, err := strconv.ParseFloat(raw, 64)
		return types.FloatValue(f), err
	case types.ValueInt.String():
		i, err := strconv.ParseInt(raw, 10, 64)
		return types.IntValue(i), err
	case types.ValueBool.String():
		b, err := strconv.ParseBool(raw)
		return types.BoolValue(b), err
	default:
		return types.Absent(), fmt.Errorf("unknown value kind %q", kind)
	}
}
