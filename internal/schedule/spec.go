package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a cadence expression cannot be parsed
// or never matches an instant within the search horizon.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Horizon bounds the search for the next matching instant of a cron
// expression. An expression with no match inside the horizon is rejected at
// parse time instead of producing a "never" deadline.
const Horizon = 4 * 365 * 24 * time.Hour

// Spec is the parsed form of a job cadence. It is parsed once at job
// creation or update time and evaluated many times after that; evaluation is
// pure, so the same reference instant always yields the same deadline.
type Spec struct {
	expr     string
	interval time.Duration
	cron     cron.Schedule
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse compiles a cadence expression. Two kinds are supported: a fixed
// interval given as a Go duration ("90s", "15m") and a five-field cron
// expression ("*/5 * * * *", "@every 1h" descriptors included). Cron
// expressions are evaluated in UTC unless timezone names a different IANA
// zone.
func Parse(expr, timezone string) (*Spec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidSchedule)
	}

	// Fixed-interval form first: a bare duration is not valid cron syntax.
	if d, err := time.ParseDuration(expr); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("%w: interval %s is below 1s", ErrInvalidSchedule, expr)
		}
		return &Spec{expr: expr, interval: d}, nil
	}

	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, timezone)
	}

	specExpr := expr
	if !strings.HasPrefix(expr, "TZ=") && !strings.HasPrefix(expr, "CRON_TZ=") {
		specExpr = "CRON_TZ=" + timezone + " " + expr
	}

	sched, err := parser.Parse(specExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	s := &Spec{expr: expr, cron: sched}

	// Guard against expressions that parse but never fire, e.g. "0 0 31 2 *".
	if _, err := s.Next(time.Now().UTC()); err != nil {
		return nil, err
	}

	return s, nil
}

// Next returns the first expected instant strictly after ref. For a fixed
// interval that is ref + interval; for a cron expression it is the soonest
// matching instant in the spec's zone. The result is reported in UTC.
func (s *Spec) Next(ref time.Time) (time.Time, error) {
	if s.interval > 0 {
		return ref.Add(s.interval).UTC(), nil
	}

	next := s.cron.Next(ref)
	if next.IsZero() || next.Sub(ref) > Horizon {
		return time.Time{}, fmt.Errorf("%w: %q matches no instant within the search horizon", ErrInvalidSchedule, s.expr)
	}
	return next.UTC(), nil
}

// Interval reports the fixed interval, or zero for cron-style specs.
func (s *Spec) Interval() time.Duration { return s.interval }

// String returns the original expression.
func (s *Spec) String() string { return s.expr }
