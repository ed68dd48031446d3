// Package scroll decides when a message pane should follow its newest
// message and drives the eased scroll that takes it there.
//
// Each pane (the main message list, a thread panel) is its own Scrollable
// tracked under its own context key, so a thread update never moves the
// main pane and vice versa.
package scroll

import (
	"math"
	"sync"
	"time"
)

// Scrollable is the rendering layer's handle on one scrollable pane,
// measured in logical offset units.
type Scrollable interface {
	Offset() float64
	SetOffset(offset float64)
	// MaxOffset is the offset of the bottom anchor.
	MaxOffset() float64
}

// Follower remembers the previous message count per context key and
// reports whether a snapshot added messages. Reaction-only mutations keep
// the count equal and never trigger a follow.
type Follower struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewFollower() *Follower {
	return &Follower{counts: make(map[string]int)}
}

// Observe records count under key and reports whether the list grew. The
// first observation of a key counts as growth when any messages are
// present, so a freshly opened pane lands at the bottom.
func (f *Follower) Observe(key string, count int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.counts[key]
	f.counts[key] = count
	return count > prev
}

// Forget drops the recorded count for key, for when a context goes away.
func (f *Follower) Forget(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, key)
}

const (
	frameInterval = 16 * time.Millisecond
	// approach is the eased per-frame fraction of the remaining distance.
	approach = 0.25
	// settled is how close to the target counts as arrived.
	settled = 0.5
)

// Animator eases one pane toward a target offset. Calling ScrollTo while
// an animation runs does not spawn a second loop; the running loop picks
// up the new target on its next frame, superseding the old one.
type Animator struct {
	mu      sync.Mutex
	target  float64
	running bool
}

func NewAnimator() *Animator {
	return &Animator{}
}

// ScrollTo starts or redirects the animation toward offset.
func (a *Animator) ScrollTo(pane Scrollable, offset float64) {
	a.mu.Lock()
	a.target = offset
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()
	go a.run(pane)
}

// ScrollToBottom eases the pane to its bottom anchor.
func (a *Animator) ScrollToBottom(pane Scrollable) {
	a.ScrollTo(pane, pane.MaxOffset())
}

func (a *Animator) run(pane Scrollable) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for range ticker.C {
		a.mu.Lock()
		target := a.target
		a.mu.Unlock()

		current := pane.Offset()
		remaining := target - current
		if math.Abs(remaining) <= settled {
			pane.SetOffset(target)
			a.mu.Lock()
			// A retarget may have landed between the read and now; keep
			// going if the goalpost moved.
			if a.target == target {
				a.running = false
				a.mu.Unlock()
				return
			}
			a.mu.Unlock()
			continue
		}
		pane.SetOffset(current + remaining*approach)
	}
}

// followDelay gives layout a beat to settle before the scroll measures the
// bottom anchor.
const followDelay = 50 * time.Millisecond

// Controller glues Follower and per-pane Animators together: feed it every
// snapshot and it schedules a scroll-to-bottom only when the snapshot
// added messages.
type Controller struct {
	follower *Follower

	mu        sync.Mutex
	animators map[Scrollable]*Animator
}

func NewController() *Controller {
	return &Controller{
		follower:  NewFollower(),
		animators: make(map[Scrollable]*Animator),
	}
}

// OnSnapshot records the new count for key and, if the list grew,
// schedules an eased scroll of pane to its bottom anchor.
func (c *Controller) OnSnapshot(key string, count int, pane Scrollable) {
	if !c.follower.Observe(key, count) {
		return
	}
	animator := c.animatorFor(pane)
	time.AfterFunc(followDelay, func() {
		animator.ScrollToBottom(pane)
	})
}

// Release forgets a context key, for unsubscribe/navigation.
func (c *Controller) Release(key string, pane Scrollable) {
	c.follower.Forget(key)
	c.mu.Lock()
	delete(c.animators, pane)
	c.mu.Unlock()
}

func (c *Controller) animatorFor(pane Scrollable) *Animator {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.animators[pane]
	if !ok {
		a = NewAnimator()
		c.animators[pane] = a
	}
	return a
}
