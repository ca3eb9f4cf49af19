package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSteppingClock_Advances(t *testing.T) {
	clock := NewSteppingClock(Epoch, time.Minute)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Minute), clock.Now())
	assert.Equal(t, int64(3), clock.Calls())
}

func TestSteppingClock_Reset(t *testing.T) {
	clock := NewSteppingClock(Epoch, time.Second)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestFrozenClock(t *testing.T) {
	clock := NewFrozenClock(Epoch)
	for i := 0; i < 5; i++ {
		assert.Equal(t, Epoch, clock.Now())
	}
}

func TestSteppingClock_ConcurrentReadsAreUnique(t *testing.T) {
	clock := NewSteppingClock(Epoch, time.Nanosecond)

	const goroutines = 50
	results := make(chan time.Time, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- clock.Now()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]bool)
	for r := range results {
		assert.False(t, seen[r], "duplicate reading %v", r)
		seen[r] = true
	}
	assert.Len(t, seen, goroutines)
}
