package schedule

import (
	"container/heap"
	"sync"
	"time"
)

// VirtualClock is a Scheduler whose time only moves when Advance is called.
// Due actions run on the goroutine calling Advance, in deadline order, with
// ties broken by scheduling order.
type VirtualClock struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	queue actionQueue
}

// NewVirtualClock creates a clock at virtual time zero.
func NewVirtualClock() *VirtualClock {
	c := &VirtualClock{}
	heap.Init(&c.queue)
	return c
}

// Schedule implements Scheduler.
func (c *VirtualClock) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	a := &action{
		clock: c,
		at:    c.now + delay,
		seq:   c.seq,
		fn:    fn,
	}
	heap.Push(&c.queue, a)
	return a
}

// Now returns the elapsed virtual time.
func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of actions that have not fired or been cancelled.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// Advance moves the clock forward by d, running every action that becomes due.
// Actions scheduled by a running action fire in the same call if they fall
// inside the window.
// A negative d is treated as zero.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	target := c.now + d

	for c.queue.Len() > 0 && c.queue[0].at <= target {
		a := heap.Pop(&c.queue).(*action)
		c.now = a.at
		a.fired = true

		c.mu.Unlock()
		a.fn()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

type action struct {
	clock *VirtualClock
	at    time.Duration
	seq   uint64
	fn    func()
	index int
	fired bool
}

func (a *action) Cancel() bool {
	c := a.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if a.fired || a.index < 0 {
		return false
	}
	heap.Remove(&c.queue, a.index)
	return true
}

type actionQueue []*action

func (q actionQueue) Len() int { return len(q) }

func (q actionQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q actionQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *actionQueue) Push(x any) {
	a := x.(*action)
	a.index = len(*q)
	*q = append(*q, a)
}

func (q *actionQueue) Pop() any {
	old := *q
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*q = old[:n-1]
	return a
}
