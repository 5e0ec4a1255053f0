package playback

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rafall04/cctv-sub000/schedule"
	"github.com/rafall04/cctv-sub000/tier"
)

// StatusHandler observes status transitions.
type StatusHandler func(Status)

type config struct {
	pauseDelay     time.Duration
	tier           tier.Tier
	autoResume     bool
	onStatusChange StatusHandler
	scheduler      schedule.Scheduler
	logger         zerolog.Logger
}

// Option configures a Controller at construction.
type Option func(*config)

// WithPauseDelay sets the grace period between losing visibility and pausing.
// A zero or negative delay selects the tier default.
func WithPauseDelay(d time.Duration) Option {
	return func(c *config) { c.pauseDelay = d }
}

// WithTier selects the device tier used for the default pause delay.
func WithTier(t tier.Tier) Option {
	return func(c *config) { c.tier = t }
}

// WithAutoResume controls whether a stream paused for visibility resumes by
// itself once visible again. Defaults to true.
func WithAutoResume(enabled bool) Option {
	return func(c *config) { c.autoResume = enabled }
}

// WithStatusHandler registers fn to be told about every transition.
func WithStatusHandler(fn StatusHandler) Option {
	return func(c *config) { c.onStatusChange = fn }
}

// WithScheduler replaces the wall clock scheduler.
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *config) { c.scheduler = s }
}

// WithLogger sets the logger for sink failures and transitions.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) config {
	c := config{
		tier:       tier.Medium,
		autoResume: true,
		scheduler:  schedule.Real{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.pauseDelay <= 0 {
		c.pauseDelay = tier.PauseDelay(c.tier)
	}
	return c
}
