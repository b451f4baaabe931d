package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cronhub/internal/cron"
	logx "cronhub/pkg/logx"
)

const fileVersion = 1

// fileStore keeps the whole job set in one JSON document.
//
// Files:
//   - <path>       the document, replaced atomically via tmp+rename
//   - <path>.lock  advisory flock serializing transactions across processes
type fileStore struct {
	log      logx.Logger
	path     string
	lockPath string
	now      func() time.Time
}

type fileDocument struct {
	Version int        `json:"version"`
	Jobs    []cron.Job `json:"jobs"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &fileStore{
		log:      log,
		path:     path,
		lockPath: path + ".lock",
		now:      time.Now,
	}, nil
}

func (s *fileStore) Path() string { return s.path }

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) ([]cron.Job, error) {
	var jobs []cron.Job
	err := s.withLock(ctx, false, func() error {
		var err error
		jobs, err = s.read()
		return err
	})
	return jobs, err
}

func (s *fileStore) List(ctx context.Context, includeDisabled bool) ([]cron.Job, error) {
	jobs, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return filterEnabled(jobs, includeDisabled), nil
}

func (s *fileStore) Get(ctx context.Context, id string) (cron.Job, bool, error) {
	jobs, err := s.Load(ctx)
	if err != nil {
		return cron.Job{}, false, err
	}
	if i := indexOf(jobs, id); i >= 0 {
		return jobs[i], true, nil
	}
	return cron.Job{}, false, nil
}

func (s *fileStore) Add(ctx context.Context, job cron.Job) (cron.Job, error) {
	// Validate before touching the file so a rejected add leaves it untouched.
	if err := job.Schedule.Validate(); err != nil {
		return cron.Job{}, err
	}
	var out cron.Job
	err := s.withLock(ctx, true, func() error {
		jobs, err := s.read()
		if err != nil {
			return err
		}
		out, err = prepareNew(job, s.now(), func(id string) (bool, error) { return indexOf(jobs, id) >= 0, nil })
		if err != nil {
			return err
		}
		return s.write(append(jobs, out))
	})
	if err != nil {
		return cron.Job{}, err
	}
	s.log.Debug("job added", logx.String("id", out.ID), logx.String("name", out.Name))
	return out, nil
}

func (s *fileStore) Update(ctx context.Context, id string, fn func(*cron.Job) error) (cron.Job, bool, error) {
	var (
		out   cron.Job
		found bool
	)
	err := s.withLock(ctx, true, func() error {
		jobs, err := s.read()
		if err != nil {
			return err
		}
		i := indexOf(jobs, id)
		if i < 0 {
			return nil
		}
		found = true
		next, err := applyUpdate(jobs[i], s.now(), fn)
		if err != nil {
			return err
		}
		jobs[i] = next
		out = next
		return s.write(jobs)
	})
	if err != nil {
		return cron.Job{}, false, err
	}
	return out, found, nil
}

func (s *fileStore) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.withLock(ctx, true, func() error {
		jobs, err := s.read()
		if err != nil {
			return err
		}
		i := indexOf(jobs, id)
		if i < 0 {
			return nil
		}
		removed = true
		return s.write(append(jobs[:i], jobs[i+1:]...))
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Debug("job removed", logx.String("id", id))
	}
	return removed, nil
}

// withLock runs fn holding the store lock. Readers of a store whose directory
// does not exist yet skip locking (there is nothing to read).
func (s *fileStore) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if !exclusive {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return fn()
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	unlock, err := lockFile(s.lockPath, exclusive)
	if err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer unlock()
	return fn()
}

// read decodes the document. Call with the lock held.
func (s *fileStore) read() ([]cron.Job, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []cron.Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", ErrCorrupt, s.path)
	}
	var doc fileDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if doc.Version != fileVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, s.path, doc.Version)
	}
	if doc.Jobs == nil {
		doc.Jobs = []cron.Job{}
	}
	return doc.Jobs, nil
}

// write replaces the document atomically. Call with the exclusive lock held.
func (s *fileStore) write(jobs []cron.Job) error {
	b, err := json.MarshalIndent(fileDocument{Version: fileVersion, Jobs: jobs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	tmp := f.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func indexOf(jobs []cron.Job, id string) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}
