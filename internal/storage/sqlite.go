package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cronhub/internal/cron"
	logx "cronhub/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

const defaultBusyTimeout = 5 * time.Second

// sqliteStore keeps one row per job; data holds the same JSON record the file
// driver writes, seq preserves insertion order.
type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	path string
	now  func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	// BEGIN IMMEDIATE takes the write lock up front so read-modify-write
	// transactions from other processes queue on busy_timeout instead of
	// failing at commit.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		path, busy.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, path: path, now: time.Now}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Path() string { return s.path }

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]cron.Job, error) {
	return s.List(ctx, true)
}

func (s *sqliteStore) List(ctx context.Context, includeDisabled bool) ([]cron.Job, error) {
	q := `SELECT data FROM jobs ORDER BY seq`
	if !includeDisabled {
		q = `SELECT data FROM jobs WHERE enabled = 1 ORDER BY seq`
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []cron.Job{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		j, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (cron.Job, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return cron.Job{}, false, nil
	}
	if err != nil {
		return cron.Job{}, false, err
	}
	j, err := decodeRow(data)
	if err != nil {
		return cron.Job{}, false, err
	}
	return j, true, nil
}

func (s *sqliteStore) Add(ctx context.Context, job cron.Job) (cron.Job, error) {
	var out cron.Job
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = prepareNew(job, s.now(), func(id string) (bool, error) {
			var n int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, id).Scan(&n)
			return n > 0, err
		})
		if err != nil {
			return err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO jobs(id, enabled, data) VALUES(?,?,?)`, out.ID, out.Enabled, string(data))
		return err
	})
	if err != nil {
		return cron.Job{}, err
	}
	s.log.Debug("job added", logx.String("id", out.ID), logx.String("name", out.Name))
	return out, nil
}

func (s *sqliteStore) Update(ctx context.Context, id string, fn func(*cron.Job) error) (cron.Job, bool, error) {
	var (
		out   cron.Job
		found bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ?`, id).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		cur, err := decodeRow(data)
		if err != nil {
			return err
		}
		found = true
		out, err = applyUpdate(cur, s.now(), fn)
		if err != nil {
			return err
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET enabled = ?, data = ? WHERE id = ?`, out.Enabled, string(b), id)
		return err
	})
	if err != nil {
		return cron.Job{}, false, err
	}
	return out, found, nil
}

func (s *sqliteStore) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.log.Debug("job removed", logx.String("id", id))
	}
	return n > 0, nil
}

func (s *sqliteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func decodeRow(data string) (cron.Job, error) {
	var j cron.Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return cron.Job{}, fmt.Errorf("%w: job row: %v", ErrCorrupt, err)
	}
	return j, nil
}
