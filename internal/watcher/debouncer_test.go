package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger("notes")
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case key := <-d.Output():
		assert.Equal(t, "notes", key)
	case <-time.After(time.Second):
		t.Fatal("expected a debounced emission")
	}

	// The burst collapses to exactly one emission
	select {
	case key := <-d.Output():
		t.Fatalf("unexpected second emission: %q", key)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_TrailingEdge(t *testing.T) {
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	start := time.Now()
	d.Trigger("notes")
	time.Sleep(40 * time.Millisecond)
	d.Trigger("notes") // resets the window

	select {
	case <-d.Output():
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond,
			"emission must wait a full window after the LAST trigger")
	case <-time.After(time.Second):
		t.Fatal("expected an emission")
	}
}

func TestDebouncer_IndependentKeys(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Trigger("alpha")
	d.Trigger("beta")

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case key := <-d.Output():
			got[key] = true
		case <-time.After(time.Second):
			t.Fatal("expected two emissions")
		}
	}
	require.True(t, got["alpha"])
	require.True(t, got["beta"])
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	d.Trigger("notes")
	d.Stop()
	d.Trigger("late")

	select {
	case key := <-d.Output():
		t.Fatalf("emission after Stop: %q", key)
	case <-time.After(100 * time.Millisecond):
	}
}
