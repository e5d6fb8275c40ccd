package session

import (
	"sync"
	"time"
)

// TickSource delivers one tick per elapsed second until stopped.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func() TickSource

type secondTicker struct {
	t *time.Ticker
}

func (s secondTicker) C() <-chan time.Time { return s.t.C }
func (s secondTicker) Stop()               { s.t.Stop() }

// SecondTicker is the wall-clock tick source.
func SecondTicker() TickSource {
	return secondTicker{time.NewTicker(time.Second)}
}

type countdownRun struct {
	ticker   TickSource
	done     chan struct{}
	finished chan struct{}
}

// Countdown is a resend cooldown in whole seconds. It decreases by one per
// tick and stops itself at zero; it never goes negative.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	current   *countdownRun
	newTicker TickerFactory
}

func NewCountdown(f TickerFactory) *Countdown {
	if f == nil {
		f = SecondTicker
	}
	return &Countdown{newTicker: f}
}

// Start resets the countdown to seconds, replacing any running one.
func (c *Countdown) Start(seconds int) {
	c.Stop()
	if seconds <= 0 {
		return
	}

	r := &countdownRun{
		ticker:   c.newTicker(),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	c.mu.Lock()
	c.remaining = seconds
	c.current = r
	c.mu.Unlock()

	go c.run(r)
}

func (c *Countdown) run(r *countdownRun) {
	defer close(r.finished)
	defer r.ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-r.ticker.C():
			c.mu.Lock()
			if c.current != r {
				c.mu.Unlock()
				return
			}
			if c.remaining > 0 {
				c.remaining--
			}
			if c.remaining == 0 {
				c.current = nil
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Stop releases the tick source and zeroes the countdown. It returns after
// the ticking goroutine has exited.
func (c *Countdown) Stop() {
	c.mu.Lock()
	r := c.current
	c.current = nil
	c.remaining = 0
	c.mu.Unlock()

	if r != nil {
		close(r.done)
		<-r.finished
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a tick source is held.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
