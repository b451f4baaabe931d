package scheduler

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "cronhub/pkg/logx"
)

const (
	watchBackoffBase = 250 * time.Millisecond
	watchBackoffMax  = 5 * time.Second
)

// watchStore nudges the loop whenever the store file (or a sibling the driver
// owns, such as the sqlite WAL) changes. The periodic tick keeps running, so
// a broken watcher only delays observation. The watcher is recreated with a
// jittered backoff when fsnotify stops delivering events.
func (s *Service) watchStore(ctx context.Context) {
	path := s.store.Path()
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	backoff := watchBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sleep := func(reason string, err error) bool {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		s.log.Warn(reason, logx.String("dir", dir), logx.Duration("backoff", wait), logx.Err(err))
		backoff = min(backoff*2, watchBackoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
			return true
		}
	}

	for ctx.Err() == nil {
		// The store creates its directory lazily; watching needs it now.
		if err := os.MkdirAll(dir, 0o755); err != nil {
			if !sleep("store watch mkdir failed", err) {
				return
			}
			continue
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			if !sleep("store watch init failed", err) {
				return
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			if !sleep("store watch add failed", err) {
				return
			}
			continue
		}
		backoff = watchBackoffBase
		s.log.Debug("store watcher started", logx.String("dir", dir), logx.String("file", base))

		err = s.consumeEvents(ctx, w, base)
		_ = w.Close()
		if ctx.Err() != nil {
			return
		}
		if !sleep("store watcher stopped; restarting", err) {
			return
		}
	}
}

// consumeEvents returns when ctx is done or the watcher breaks.
func (s *Service) consumeEvents(ctx context.Context, w *fsnotify.Watcher, base string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if storeEvent(ev, base) {
				s.nudge()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err == nil {
				continue
			}
			// Missed events: tick once to catch up.
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				s.nudge()
				continue
			}
			if strings.Contains(strings.ToLower(err.Error()), "closed") {
				return err
			}
			s.log.Warn("store watch error", logx.Err(err))
		}
	}
}

func storeEvent(ev fsnotify.Event, base string) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	return name == base || strings.HasPrefix(name, base+"-")
}
