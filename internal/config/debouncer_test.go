package config

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Debounce(func() {
			calls.Add(1)
		})
	}

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load(), "a burst must settle into one callback")
}

func TestDebouncerRunsLatestCallback(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	got := make(chan string, 2)
	d.Debounce(func() { got <- "first" })
	d.Debounce(func() { got <- "second" })

	select {
	case v := <-got:
		assert.Equal(t, "second", v)
	case <-time.After(time.Second):
		t.Fatal("debounced callback never ran")
	}
}
