package cron

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on host zoneinfo

	robfig "github.com/robfig/cron/v3"
)

// Standard 5-field syntax only: no seconds, no @descriptors.
var parser = robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)

// maxWallSteps bounds the search for a candidate whose local wall clock is
// past the starting wall clock. A fall-back repeat is skipped in one jump, so
// more than two steps only happen on malformed zone data.
const maxWallSteps = 64

// Validate reports whether s is a well-formed schedule. All failures wrap
// ErrInvalidSchedule and name the offending value.
func (s Schedule) Validate() error {
	switch s.Kind {
	case KindEvery:
		if s.EveryMs <= 0 {
			return fmt.Errorf("%w: every_ms must be > 0, got %d", ErrInvalidSchedule, s.EveryMs)
		}
		if s.Expr != "" || s.TZ != "" {
			return fmt.Errorf("%w: expr/tz are not allowed for kind %q", ErrInvalidSchedule, s.Kind)
		}
		return nil
	case KindCron:
		if s.EveryMs != 0 {
			return fmt.Errorf("%w: every_ms is not allowed for kind %q", ErrInvalidSchedule, s.Kind)
		}
		sched, _, err := s.compile()
		if err != nil {
			return err
		}
		if sched.Next(time.Now()).IsZero() {
			return fmt.Errorf("%w: cron expression %q never fires", ErrInvalidSchedule, s.Expr)
		}
		return nil
	case "":
		return fmt.Errorf("%w: kind required", ErrInvalidSchedule)
	default:
		return fmt.Errorf("%w: unknown kind %q (use %q or %q)", ErrInvalidSchedule, s.Kind, KindCron, KindEvery)
	}
}

// NextAfter returns the first firing time strictly after fromMs.
//
// Cron schedules are matched against local wall-clock time in s.TZ. The result
// is the earliest instant whose local wall clock matches every field and is
// strictly later than the local wall clock of fromMs. Local times skipped by a
// spring-forward gap never match; a local time repeated by a fall-back fires
// once, at its earlier (pre-transition) instant.
func (s Schedule) NextAfter(fromMs int64) (int64, error) {
	switch s.Kind {
	case KindEvery:
		if s.EveryMs <= 0 {
			return 0, fmt.Errorf("%w: every_ms must be > 0, got %d", ErrInvalidSchedule, s.EveryMs)
		}
		return fromMs + s.EveryMs, nil
	case KindCron:
		sched, loc, err := s.compile()
		if err != nil {
			return 0, err
		}
		from := time.UnixMilli(fromMs).In(loc)
		fromWall := wallClock(from)
		t := from
		for i := 0; i < maxWallSteps; i++ {
			next := sched.Next(t)
			if next.IsZero() {
				return 0, fmt.Errorf("%w: cron expression %q never fires", ErrInvalidSchedule, s.Expr)
			}
			wall := wallClock(next)
			if wall.After(fromWall) {
				return next.UnixMilli(), nil
			}
			// next repeats a local time already passed (fall-back): jump to
			// the instant in the repeat whose wall clock equals fromWall.
			t = next.Add(fromWall.Sub(wall))
		}
		return 0, fmt.Errorf("cron %q: no firing time after %s", s.Expr, from.Format(time.RFC3339))
	default:
		return 0, s.Validate()
	}
}

// Location resolves s.TZ. Only meaningful for cron schedules.
func (s Schedule) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.TZ)
	if tz == "" {
		return nil, fmt.Errorf("%w: tz required for kind %q", ErrInvalidSchedule, KindCron)
	}
	// LoadLocation maps "" and "UTC" to UTC and "Local" to the host zone;
	// only the latter is ambiguous across processes.
	if tz == "Local" {
		return nil, fmt.Errorf("%w: unknown timezone '%s'", ErrInvalidSchedule, s.TZ)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone '%s'", ErrInvalidSchedule, s.TZ)
	}
	return loc, nil
}

// String renders the schedule for logs and listings.
func (s Schedule) String() string {
	switch s.Kind {
	case KindEvery:
		return "every " + (time.Duration(s.EveryMs) * time.Millisecond).String()
	case KindCron:
		return fmt.Sprintf("cron %q (%s)", s.Expr, s.TZ)
	default:
		return string(s.Kind)
	}
}

func (s Schedule) compile() (robfig.Schedule, *time.Location, error) {
	expr := strings.TrimSpace(s.Expr)
	if expr == "" {
		return nil, nil, fmt.Errorf("%w: expr required for kind %q", ErrInvalidSchedule, KindCron)
	}
	// The timezone lives in its own field; robfig would otherwise honour an
	// inline prefix and silently override it.
	if up := strings.ToUpper(expr); strings.HasPrefix(up, "TZ=") || strings.HasPrefix(up, "CRON_TZ=") {
		return nil, nil, fmt.Errorf("%w: cron expression %q must not carry a timezone prefix", ErrInvalidSchedule, s.Expr)
	}
	loc, err := s.Location()
	if err != nil {
		return nil, nil, err
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cron expression %q: %v", ErrInvalidSchedule, s.Expr, err)
	}
	if spec, ok := sched.(*robfig.SpecSchedule); ok {
		spec.Location = loc
	}
	return sched, loc, nil
}

// wallClock strips the zone offset, keeping only the local reading.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
