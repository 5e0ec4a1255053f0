package playback

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/rafall04/cctv-sub000/schedule"
	"github.com/rafall04/cctv-sub000/tier"
)

var _ = Describe("Controller", func() {
	var (
		mockCtrl *gomock.Controller
		sink     *MockVideoSink
		engine   *MockMediaEngine
		clock    *schedule.VirtualClock
		seen     []Status
	)

	newController := func(opts ...Option) *Controller {
		opts = append([]Option{
			WithScheduler(clock),
			WithStatusHandler(func(s Status) { seen = append(seen, s) }),
		}, opts...)
		return New(sink, "rtsp://cam-1/stream", opts...)
	}

	startPlaying := func(c *Controller) {
		c.Initialize(engine)
		c.SetPlaying()
		Expect(c.Status()).To(Equal(StatusPlaying))
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sink = NewMockVideoSink(mockCtrl)
		engine = NewMockMediaEngine(mockCtrl)
		clock = schedule.NewVirtualClock()
		seen = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start idle", func() {
		c := newController()

		Expect(c.Status()).To(Equal(StatusIdle))
		Expect(c.StreamURL()).To(Equal("rtsp://cam-1/stream"))
	})

	It("should default the pause delay from the tier", func() {
		Expect(newController().PauseDelay()).To(Equal(tier.PauseDelay(tier.Medium)))
		Expect(newController(WithTier(tier.Low)).PauseDelay()).To(Equal(tier.LowPauseDelay))
		Expect(newController(WithPauseDelay(1500 * time.Millisecond)).PauseDelay()).
			To(Equal(1500 * time.Millisecond))
	})

	It("should load and then play", func() {
		c := newController()

		c.Initialize(engine)
		Expect(c.Status()).To(Equal(StatusLoading))

		c.SetPlaying()
		Expect(c.Status()).To(Equal(StatusPlaying))
	})

	It("should ignore a second initialize", func() {
		c := newController()
		c.Initialize(engine)
		c.Initialize(NewMockMediaEngine(mockCtrl))

		engine.EXPECT().Destroy().Times(1)
		c.Destroy()
		Expect(seen).To(Equal([]Status{StatusLoading, StatusDestroyed}))
	})

	It("should ignore set playing before initialize", func() {
		c := newController()
		c.SetPlaying()

		Expect(c.Status()).To(Equal(StatusIdle))
		Expect(seen).To(BeEmpty())
	})

	It("should pause from idle and loading", func() {
		idle := newController()
		sink.EXPECT().Pause().Times(2)
		idle.Pause()
		Expect(idle.Status()).To(Equal(StatusPaused))
		Expect(seen).To(Equal([]Status{StatusPaused}))

		seen = nil
		loading := newController()
		loading.Initialize(engine)
		loading.Pause()
		Expect(loading.Status()).To(Equal(StatusPaused))
		Expect(loading.PausedByVisibility()).To(BeFalse())
		Expect(seen).To(Equal([]Status{StatusLoading, StatusPaused}))
	})

	It("should move paused to playing on set playing without touching the sink", func() {
		c := newController()
		startPlaying(c)
		sink.EXPECT().Pause().Times(1)
		c.Pause()

		c.SetPlaying()

		Expect(c.Status()).To(Equal(StatusPlaying))
		Expect(c.PausedByVisibility()).To(BeFalse())
		Expect(seen).To(Equal([]Status{StatusLoading, StatusPlaying, StatusPaused, StatusPlaying}))
	})

	Context("when the first media arrives", func() {
		It("should move loading to playing", func() {
			c := newController()
			c.Initialize(engine)

			Expect(c.MarkLoaded()).To(BeTrue())
			Expect(c.Status()).To(Equal(StatusPlaying))
			Expect(c.MarkLoaded()).To(BeFalse())
			Expect(seen).To(Equal([]Status{StatusLoading, StatusPlaying}))
		})

		It("should keep a pause that landed while loading", func() {
			c := newController()
			c.Initialize(engine)
			sink.EXPECT().Pause().Times(1)
			c.Pause()

			Expect(c.MarkLoaded()).To(BeFalse())
			Expect(c.Status()).To(Equal(StatusPaused))

			sink.EXPECT().Play().Return(nil).Times(1)
			c.Resume()
			Expect(c.Status()).To(Equal(StatusPlaying))
			Expect(seen).To(Equal([]Status{StatusLoading, StatusPaused, StatusPlaying}))
		})

		It("should ignore idle and destroyed controllers", func() {
			c := newController()
			Expect(c.MarkLoaded()).To(BeFalse())

			c.Destroy()
			Expect(c.MarkLoaded()).To(BeFalse())
			Expect(c.Status()).To(Equal(StatusDestroyed))
		})
	})

	It("should pause synchronously", func() {
		c := newController()
		startPlaying(c)

		sink.EXPECT().Pause().Times(1)
		c.Pause()

		Expect(c.Status()).To(Equal(StatusPaused))
		Expect(c.PausedByVisibility()).To(BeFalse())
	})

	It("should treat a repeated pause as a no-op", func() {
		c := newController()
		startPlaying(c)

		sink.EXPECT().Pause().Times(1)
		c.Pause()
		c.Pause()

		Expect(seen).To(Equal([]Status{StatusLoading, StatusPlaying, StatusPaused}))
	})

	It("should resume from paused", func() {
		c := newController()
		startPlaying(c)
		sink.EXPECT().Pause()
		c.Pause()

		sink.EXPECT().Play().Return(nil).Times(1)
		c.Resume()

		Expect(c.Status()).To(Equal(StatusPlaying))
	})

	It("should ignore resume when not paused", func() {
		c := newController()
		c.Resume()
		startPlaying(c)
		c.Resume()

		Expect(seen).To(Equal([]Status{StatusLoading, StatusPlaying}))
	})

	It("should stay playing when the sink rejects play", func() {
		c := newController()
		startPlaying(c)
		sink.EXPECT().Pause()
		c.Pause()

		sink.EXPECT().Play().Return(errors.New("autoplay blocked"))
		c.Resume()

		Expect(c.Status()).To(Equal(StatusPlaying))
	})

	Context("when visibility is lost", func() {
		It("should pause only after the delay", func() {
			c := newController(WithPauseDelay(2000 * time.Millisecond))
			startPlaying(c)

			c.SetVisibility(false)
			clock.Advance(1000 * time.Millisecond)
			Expect(c.Status()).To(Equal(StatusPlaying))

			sink.EXPECT().Pause().Times(1)
			clock.Advance(1000 * time.Millisecond)
			Expect(c.Status()).To(Equal(StatusPaused))
			Expect(c.PausedByVisibility()).To(BeTrue())
		})

		It("should cancel the pause when visibility returns", func() {
			c := newController(WithPauseDelay(2000 * time.Millisecond))
			startPlaying(c)

			c.SetVisibility(false)
			clock.Advance(1500 * time.Millisecond)
			c.SetVisibility(true)
			clock.Advance(1500 * time.Millisecond)

			Expect(c.Status()).To(Equal(StatusPlaying))
			Expect(clock.Pending()).To(BeZero())
		})

		It("should keep the original deadline on repeated loss", func() {
			c := newController(WithPauseDelay(2000 * time.Millisecond))
			startPlaying(c)

			c.SetVisibility(false)
			clock.Advance(1500 * time.Millisecond)
			c.SetVisibility(false)
			Expect(clock.Pending()).To(Equal(1))

			sink.EXPECT().Pause().Times(1)
			clock.Advance(500 * time.Millisecond)
			Expect(c.Status()).To(Equal(StatusPaused))
		})

		It("should auto resume once visible again", func() {
			c := newController(WithPauseDelay(1000*time.Millisecond), WithAutoResume(true))
			startPlaying(c)

			sink.EXPECT().Pause()
			c.SetVisibility(false)
			clock.Advance(1000 * time.Millisecond)
			Expect(c.Status()).To(Equal(StatusPaused))

			sink.EXPECT().Play().Return(nil).Times(1)
			c.SetVisibility(true)
			Expect(c.Status()).To(Equal(StatusPlaying))
			Expect(c.PausedByVisibility()).To(BeFalse())
		})

		It("should not auto resume when disabled", func() {
			c := newController(WithPauseDelay(1000*time.Millisecond), WithAutoResume(false))
			startPlaying(c)

			sink.EXPECT().Pause()
			c.SetVisibility(false)
			clock.Advance(1000 * time.Millisecond)
			c.SetVisibility(true)

			Expect(c.Status()).To(Equal(StatusPaused))
		})

		It("should not auto resume an explicit pause", func() {
			c := newController(WithPauseDelay(1000 * time.Millisecond))
			startPlaying(c)

			sink.EXPECT().Pause().Times(1)
			c.SetVisibility(false)
			c.Pause()
			clock.Advance(2000 * time.Millisecond)
			c.SetVisibility(true)

			Expect(c.Status()).To(Equal(StatusPaused))
			Expect(clock.Pending()).To(BeZero())
		})

		It("should turn a visibility pause into an explicit one", func() {
			c := newController(WithPauseDelay(1000 * time.Millisecond))
			startPlaying(c)

			sink.EXPECT().Pause().Times(1)
			c.SetVisibility(false)
			clock.Advance(1000 * time.Millisecond)
			c.Pause()
			c.SetVisibility(true)

			Expect(c.Status()).To(Equal(StatusPaused))
		})

		It("should drop the scheduled pause on set playing", func() {
			c := newController(WithPauseDelay(1000 * time.Millisecond))
			startPlaying(c)

			c.SetVisibility(false)
			c.SetPlaying()
			clock.Advance(5000 * time.Millisecond)

			Expect(c.Status()).To(Equal(StatusPlaying))
		})

		It("should ignore visibility loss outside of playing", func() {
			c := newController(WithPauseDelay(1000 * time.Millisecond))
			c.Initialize(engine)

			c.SetVisibility(false)
			Expect(clock.Pending()).To(BeZero())
			Expect(c.Status()).To(Equal(StatusLoading))
		})
	})

	Context("when destroyed", func() {
		It("should destroy the engine exactly once", func() {
			c := newController()
			startPlaying(c)

			engine.EXPECT().Destroy().Times(1)
			c.Destroy()
			c.Destroy()

			Expect(c.Status()).To(Equal(StatusDestroyed))
		})

		It("should cancel a scheduled pause", func() {
			c := newController(WithPauseDelay(1000 * time.Millisecond))
			startPlaying(c)
			c.SetVisibility(false)

			engine.EXPECT().Destroy()
			c.Destroy()
			clock.Advance(2000 * time.Millisecond)

			Expect(clock.Pending()).To(BeZero())
			Expect(c.Status()).To(Equal(StatusDestroyed))
		})

		It("should ignore every later call", func() {
			c := newController()
			startPlaying(c)
			engine.EXPECT().Destroy()
			c.Destroy()

			c.SetPlaying()
			c.Pause()
			c.Resume()
			c.SetVisibility(false)
			c.SetVisibility(true)
			c.Initialize(engine)

			Expect(c.Status()).To(Equal(StatusDestroyed))
			Expect(clock.Pending()).To(BeZero())
		})

		It("should not need an engine", func() {
			c := newController()
			c.Destroy()

			Expect(c.Status()).To(Equal(StatusDestroyed))
			Expect(seen).To(Equal([]Status{StatusDestroyed}))
		})
	})

	It("should report transitions in order", func() {
		c := newController()
		c.Initialize(engine)
		c.SetPlaying()
		sink.EXPECT().Pause()
		c.Pause()
		engine.EXPECT().Destroy()
		c.Destroy()

		Expect(seen).To(Equal([]Status{
			StatusLoading, StatusPlaying, StatusPaused, StatusDestroyed,
		}))
	})

	It("should allow the status handler to call back in", func() {
		var c *Controller
		var order []Status
		c = New(sink, "rtsp://cam-1/stream",
			WithScheduler(clock),
			WithStatusHandler(func(s Status) {
				order = append(order, s)
				if s == StatusLoading {
					c.SetPlaying()
				}
			}),
		)

		c.Initialize(engine)

		Expect(c.Status()).To(Equal(StatusPlaying))
		Expect(order).To(Equal([]Status{StatusLoading, StatusPlaying}))
	})

	It("should keep notifying after a status handler panics", func() {
		var order []Status
		c := New(sink, "rtsp://cam-1/stream",
			WithScheduler(clock),
			WithStatusHandler(func(s Status) {
				order = append(order, s)
				if s == StatusLoading {
					panic("handler failed")
				}
			}),
		)

		Expect(func() { c.Initialize(engine) }).To(Panic())
		Expect(c.Status()).To(Equal(StatusLoading))

		c.SetPlaying()
		Expect(order).To(Equal([]Status{StatusLoading, StatusPlaying}))
	})

	It("should discard a stale timer fire", func() {
		c := newController(WithPauseDelay(1000 * time.Millisecond))
		startPlaying(c)

		c.SetVisibility(false)
		c.mu.Lock()
		stale := c.generation
		c.mu.Unlock()

		c.SetVisibility(true)
		c.SetVisibility(false)
		c.firePause(stale)
		Expect(c.Status()).To(Equal(StatusPlaying))

		sink.EXPECT().Pause().Times(1)
		clock.Advance(1000 * time.Millisecond)
		Expect(c.Status()).To(Equal(StatusPaused))
	})
})
