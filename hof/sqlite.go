package hof

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// timeFormat has a fixed width so that the text column sorts chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps entries in a SQLite table.
type SQLiteStore struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	s := &SQLiteStore{conn: conn}
	if err := s.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	zap.S().Debugf("hof: schema ensured")
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, e Entry) error {
	perf, err := json.Marshal(e.Performance)
	if err != nil {
		return fmt.Errorf("marshal performance: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO hall_of_fame (id, player, station, elapsed_time, frequency, right_per_hour, performance, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			player = excluded.player,
			station = excluded.station,
			elapsed_time = excluded.elapsed_time,
			frequency = excluded.frequency,
			right_per_hour = excluded.right_per_hour,
			performance = excluded.performance,
			recorded_at = excluded.recorded_at`,
		e.ID.String(), e.Player, e.Station, e.ElapsedTime, e.Frequency, e.RightPerHour, string(perf), e.RecordedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Top(ctx context.Context, stationName string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, player, station, elapsed_time, frequency, right_per_hour, performance, recorded_at
		FROM hall_of_fame
		WHERE ? = '' OR station = ?
		ORDER BY right_per_hour DESC, recorded_at ASC, id ASC
		LIMIT ?`,
		stationName, stationName, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		var id, perf, recordedAt string
		if err := rows.Scan(&id, &e.Player, &e.Station, &e.ElapsedTime, &e.Frequency, &e.RightPerHour, &perf, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("entry %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(perf), &e.Performance); err != nil {
			return nil, fmt.Errorf("entry %s: performance: %w", id, err)
		}
		if e.RecordedAt, err = time.Parse(timeFormat, recordedAt); err != nil {
			return nil, fmt.Errorf("entry %s: recorded at: %w", id, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
