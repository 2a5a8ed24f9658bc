package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long after the last filesystem event a
// collection waits before re-indexing. Editors save in bursts; the
// trailing edge collapses a burst into one run.
const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer coalesces repeated triggers per key into a single emission
// on the trailing edge of the window.
type Debouncer struct {
	window time.Duration
	out    chan string

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window: window,
		out:    make(chan string, 16),
		timers: make(map[string]*time.Timer),
	}
}

// Trigger (re)starts the window for key. The key is emitted once the
// window elapses without another trigger.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if timer, ok := d.timers[key]; ok {
		timer.Reset(d.window)
		return
	}
	d.timers[key] = time.AfterFunc(d.window, func() {
		d.fire(key)
	})
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	delete(d.timers, key)
	stopped := d.stopped
	d.mu.Unlock()

	if stopped {
		return
	}
	select {
	case d.out <- key:
	default:
		// Receiver is behind; the pending run it will do covers this
		// trigger too.
	}
}

// Output yields debounced keys.
func (d *Debouncer) Output() <-chan string {
	return d.out
}

// Stop cancels pending timers. Triggers after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}
