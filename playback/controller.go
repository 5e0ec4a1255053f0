// Package playback decides, per stream tile, whether a live stream should be
// decoding. It combines explicit play/pause requests with viewport visibility
// and pauses off-screen tiles after a grace period.
//
// Every operation is total: calls that are invalid for the current state, or
// that arrive after Destroy, are ignored.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafall04/cctv-sub000/schedule"
)

// VideoSink is the renderable surface a controller drives. It is owned by the
// caller and never torn down by the controller.
type VideoSink interface {
	// Play starts or resumes rendering. A returned error is not fatal.
	Play() error
	Pause()
	Load()
	Paused() bool
	Src() string
}

// MediaEngine is the adaptive streaming engine attached by Initialize. The
// controller owns it from then on and destroys it exactly once.
type MediaEngine interface {
	Destroy()
}

// Controller is the playback state machine of a single stream tile.
type Controller struct {
	mu sync.Mutex

	status             Status
	sink               VideoSink
	streamURL          string
	engine             MediaEngine
	pending            schedule.Handle
	generation         uint64
	pausedByVisibility bool

	outbox   []Status
	flushing bool

	cfg config
	log zerolog.Logger
}

// New creates a controller in StatusIdle for the given sink.
func New(sink VideoSink, streamURL string, opts ...Option) *Controller {
	cfg := newConfig(opts)
	return &Controller{
		status:    StatusIdle,
		sink:      sink,
		streamURL: streamURL,
		cfg:       cfg,
		log:       cfg.logger.With().Str("url", streamURL).Logger(),
	}
}

// Initialize attaches the media engine and moves IDLE to LOADING.
func (c *Controller) Initialize(engine MediaEngine) {
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return
	}
	c.engine = engine
	c.transition(StatusLoading)
	c.mu.Unlock()
	c.flush()
}

// SetPlaying records that media is flowing. LOADING and PAUSED become
// PLAYING. Any scheduled pause is dropped.
func (c *Controller) SetPlaying() {
	c.mu.Lock()
	switch c.status {
	case StatusDestroyed, StatusIdle:
		c.mu.Unlock()
		return
	case StatusPlaying:
		c.cancelPending()
		c.pausedByVisibility = false
		c.mu.Unlock()
		return
	}
	c.cancelPending()
	c.pausedByVisibility = false
	c.transition(StatusPlaying)
	c.mu.Unlock()
	c.flush()
}

// MarkLoaded moves LOADING to PLAYING when the first media arrives and
// reports whether it did. Unlike SetPlaying it never leaves PAUSED, so a pause
// that lands before the first frame is kept.
func (c *Controller) MarkLoaded() bool {
	c.mu.Lock()
	if c.status != StatusLoading {
		c.mu.Unlock()
		return false
	}
	c.transition(StatusPlaying)
	c.mu.Unlock()
	c.flush()
	return true
}

// Pause stops playback immediately. It never waits for the pause delay.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.status == StatusDestroyed {
		c.mu.Unlock()
		return
	}
	c.cancelPending()
	c.pausedByVisibility = false
	if c.status == StatusPaused {
		c.mu.Unlock()
		return
	}
	c.sink.Pause()
	c.transition(StatusPaused)
	c.mu.Unlock()
	c.flush()
}

// Resume restarts a paused stream.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.status != StatusPaused {
		c.mu.Unlock()
		return
	}
	c.pausedByVisibility = false
	c.transition(StatusPlaying)
	c.play()
	c.mu.Unlock()
	c.flush()
}

// SetVisibility feeds the tile's viewport visibility. Losing visibility while
// playing arms a pause after the configured delay; a second loss keeps the
// original deadline. Regaining visibility disarms it, or resumes a stream
// that was paused for visibility when auto resume is on.
func (c *Controller) SetVisibility(visible bool) {
	c.mu.Lock()
	if c.status == StatusDestroyed {
		c.mu.Unlock()
		return
	}

	if !visible {
		if c.status == StatusPlaying && c.pending == nil {
			c.schedulePause()
		}
		c.mu.Unlock()
		return
	}

	if c.pending != nil {
		c.cancelPending()
		c.mu.Unlock()
		return
	}

	if c.status == StatusPaused && c.pausedByVisibility && c.cfg.autoResume {
		c.pausedByVisibility = false
		c.transition(StatusPlaying)
		c.play()
	}
	c.mu.Unlock()
	c.flush()
}

// Destroy cancels pending work, destroys the media engine and makes the
// controller inert. Calling it again does nothing.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.status == StatusDestroyed {
		c.mu.Unlock()
		return
	}
	c.cancelPending()
	if c.engine != nil {
		c.engine.Destroy()
		c.engine = nil
	}
	c.transition(StatusDestroyed)
	c.mu.Unlock()
	c.flush()
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// PausedByVisibility reports whether the current pause came from losing
// visibility rather than an explicit request.
func (c *Controller) PausedByVisibility() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pausedByVisibility
}

// PauseDelay returns the effective grace period.
func (c *Controller) PauseDelay() time.Duration {
	return c.cfg.pauseDelay
}

// StreamURL returns the URL the controller was created for.
func (c *Controller) StreamURL() string {
	return c.streamURL
}

// schedulePause must be called with mu held.
func (c *Controller) schedulePause() {
	c.generation++
	gen := c.generation
	c.pending = c.cfg.scheduler.Schedule(c.cfg.pauseDelay, func() {
		c.firePause(gen)
	})
}

func (c *Controller) firePause(gen uint64) {
	c.mu.Lock()
	// A cancel may have raced with the timer on a multi-threaded host.
	if c.pending == nil || gen != c.generation || c.status != StatusPlaying {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.sink.Pause()
	c.pausedByVisibility = true
	c.transition(StatusPaused)
	c.mu.Unlock()
	c.flush()
}

// cancelPending must be called with mu held.
func (c *Controller) cancelPending() {
	if c.pending == nil {
		return
	}
	c.pending.Cancel()
	c.pending = nil
	c.generation++
}

// play must be called with mu held.
func (c *Controller) play() {
	if err := c.sink.Play(); err != nil {
		c.log.Debug().Err(err).Msg("video sink rejected play")
	}
}

// transition must be called with mu held.
func (c *Controller) transition(s Status) {
	c.log.Debug().
		Stringer("from", c.status).
		Stringer("to", s).
		Msg("playback transition")
	c.status = s
	if c.cfg.onStatusChange != nil {
		c.outbox = append(c.outbox, s)
	}
}

// flush delivers queued transitions in order. Only one goroutine drains at a
// time; a handler that calls back into the controller has its transitions
// delivered after it returns.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	defer func() {
		c.flushing = false
		c.mu.Unlock()
	}()
	for len(c.outbox) > 0 {
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()
		c.deliver(batch)
	}
}

// deliver runs the status handler with mu released and retakes mu on return,
// including when the handler panics.
func (c *Controller) deliver(batch []Status) {
	defer c.mu.Lock()
	for _, s := range batch {
		c.cfg.onStatusChange(s)
	}
}
