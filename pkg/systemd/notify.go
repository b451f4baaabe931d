// Package systemd reports service state to the systemd manager via
// sd_notify. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "cronhub/pkg/logx"
)

type Notifier struct {
	log   logx.Logger
	unset atomic.Bool
}

func NewNotifier(log logx.Logger) *Notifier {
	return &Notifier{log: log}
}

func (n *Notifier) send(state string) {
	if n.unset.Load() {
		return
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if !sent {
		// Not running under systemd; stop trying.
		n.unset.Store(true)
	}
}

func (n *Notifier) Ready()          { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping()       { n.send(daemon.SdNotifyStopping) }
func (n *Notifier) Status(s string) { n.send("STATUS=" + s) }

// Watchdog pings the watchdog at half the configured interval until ctx is
// done. It returns immediately when the unit has no WatchdogSec.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
