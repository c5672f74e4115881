package hopper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Start(t *testing.T) {
	c := newClock()
	assert.Equal(t, int64(0), c.current(), "new clock should start at 0")
}

func TestClock_StartAt(t *testing.T) {
	c := newClockAt(100)
	assert.Equal(t, int64(100), c.current(), "clock should start at specified value")
}

func TestClock_NextIncrementing(t *testing.T) {
	c := newClock()

	assert.Equal(t, int64(1), c.next())
	assert.Equal(t, int64(2), c.next())
	assert.Equal(t, int64(3), c.next())
	assert.Equal(t, int64(3), c.current())
}

func TestClock_NextUnique(t *testing.T) {
	c := newClock()
	const iterations = 1000

	seen := make(map[int64]bool)
	for i := 0; i < iterations; i++ {
		seq := c.next()
		assert.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}

	assert.Len(t, seen, iterations, "all seqs should be unique")
}

func TestClock_ThreadSafe(t *testing.T) {
	c := newClock()
	const goroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				seqs <- c.next()
			}
		}()
	}

	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}

	assert.Len(t, seen, goroutines*callsPerGoroutine)
}

func TestClock_CurrentDoesNotIncrement(t *testing.T) {
	c := newClock()

	c.next()
	c.next()

	assert.Equal(t, int64(2), c.current())
	assert.Equal(t, int64(2), c.current())
}
